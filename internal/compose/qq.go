package compose

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"

	"qtbridge/internal/models"
	"qtbridge/pkg/onebot"
)

// RenderQQ renders one planned send as an array message. The reply
// reference, when present, leads the message.
func RenderQQ(msg models.OutboundMessage, showSender bool) []onebot.Segment {
	out := make([]onebot.Segment, 0, len(msg.Segments)+2)

	if msg.ReplyTo != nil {
		if id, err := strconv.ParseInt(msg.ReplyTo.MessageID, 10, 64); err == nil {
			out = append(out, onebot.Reply(id))
		}
	}
	if showSender && msg.SenderName != "" {
		out = append(out, onebot.Text(msg.SenderName+": "))
	}

	for _, seg := range msg.Segments {
		switch seg.Kind {
		case models.SegmentText:
			out = append(out, onebot.Text(seg.Text))
		case models.SegmentMention:
			out = append(out, onebot.Text("@"+mentionName(seg)+" "))
		case models.SegmentImage:
			out = append(out, onebot.Image(seg.URL))
		case models.SegmentVideo:
			out = append(out, onebot.Video(seg.URL))
		case models.SegmentUnsupported:
			out = append(out, onebot.Text(seg.Text))
		case models.SegmentFile:
			out = append(out, onebot.Text(fmt.Sprintf("%s (%s) %s",
				seg.FileName, humanize.IBytes(uint64(max(seg.FileSize, 0))), seg.URL)))
		}
	}
	return out
}
