package compose

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"qtbridge/internal/models"
	"qtbridge/pkg/telegram"
)

// RenderTelegram renders one planned send as MarkdownV2
func RenderTelegram(msg models.OutboundMessage, labels models.Labels) string {
	if len(msg.Segments) == 1 {
		switch seg := msg.Segments[0]; seg.Kind {
		case models.SegmentImage:
			return withInlineHeader(msg.SenderName, telegram.Link(labels.Image, seg.URL))
		case models.SegmentFile:
			return renderFile(seg, labels)
		}
	}

	body := telegram.Escape(TelegramText(msg.Segments, labels))
	if msg.SenderName == "" {
		return body
	}
	return telegram.Bold(msg.SenderName) + ":\n" + body
}

func withInlineHeader(sender, content string) string {
	if sender == "" {
		return content
	}
	return telegram.Bold(sender) + ": " + content
}

func renderFile(seg models.Segment, labels models.Labels) string {
	size := humanize.IBytes(uint64(max(seg.FileSize, 0)))
	return fmt.Sprintf("%s: %s\n%s: %s",
		telegram.Escape(labels.FileSize), telegram.Escape(size),
		telegram.Escape(labels.FileName), telegram.Link(seg.FileName, seg.URL))
}

// TelegramText is the plain text form of segments, joined by single spaces.
// Images and videos that reach here become their URL.
func TelegramText(segments []models.Segment, labels models.Labels) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		var part string
		switch seg.Kind {
		case models.SegmentText:
			part = strings.TrimSpace(seg.Text)
		case models.SegmentMention:
			part = "@" + mentionName(seg)
		case models.SegmentUnsupported:
			part = seg.Text
		case models.SegmentImage:
			part = seg.URL
		case models.SegmentVideo:
			part = labels.Video + " " + seg.URL
		case models.SegmentFile:
			part = seg.FileName + " " + seg.URL
		}
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

func mentionName(seg models.Segment) string {
	if seg.DisplayName != "" {
		return seg.DisplayName
	}
	return seg.Target
}
