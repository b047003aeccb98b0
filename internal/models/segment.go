package models

type SegmentKind string

const (
	SegmentText        SegmentKind = "text"
	SegmentMention     SegmentKind = "mention"
	SegmentImage       SegmentKind = "image"
	SegmentVideo       SegmentKind = "video"
	SegmentReply       SegmentKind = "reply"
	SegmentUnsupported SegmentKind = "unsupported"
	SegmentFile        SegmentKind = "file"
)

// MentionAll is the mention target meaning everyone in the scope
const MentionAll = "all"

// Segment is one platform-neutral unit of message content. Which fields are
// set depends on Kind.
type Segment struct {
	Kind SegmentKind `json:"kind"`

	// Text is the body of a text segment or the label of an unsupported one
	Text string `json:"text,omitempty"`

	// Mention
	Target      string `json:"target,omitempty"`
	DisplayName string `json:"display_name,omitempty"`

	// Image, video and file
	URL      string `json:"url,omitempty"`
	FileName string `json:"file_name,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`

	// Reply; Reply is nil when the referenced message has no known counterpart
	Reply    *MessageIdentity `json:"reply,omitempty"`
	ReplyRaw string           `json:"reply_raw,omitempty"`

	// MediaKind names the unsupported native type (video, record, forward...)
	MediaKind string `json:"media_kind,omitempty"`
}

func TextSegment(text string) Segment {
	return Segment{Kind: SegmentText, Text: text}
}

func MentionSegment(target, displayName string) Segment {
	return Segment{Kind: SegmentMention, Target: target, DisplayName: displayName}
}

func ImageSegment(url string) Segment {
	return Segment{Kind: SegmentImage, URL: url}
}

func VideoSegment(url string) Segment {
	return Segment{Kind: SegmentVideo, URL: url}
}

func ReplySegment(resolved *MessageIdentity, raw string) Segment {
	return Segment{Kind: SegmentReply, Reply: resolved, ReplyRaw: raw}
}

func UnsupportedSegment(mediaKind, label string) Segment {
	return Segment{Kind: SegmentUnsupported, MediaKind: mediaKind, Text: label}
}

func FileSegment(name string, size int64, url string) Segment {
	return Segment{Kind: SegmentFile, FileName: name, FileSize: size, URL: url}
}
