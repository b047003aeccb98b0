package onebot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Post types
const (
	PostTypeMessage     = "message"
	PostTypeMessageSent = "message_sent"
	PostTypeNotice      = "notice"
	PostTypeMetaEvent   = "meta_event"
)

// Notice types handled by the bridge
const (
	NoticeGroupRecall  = "group_recall"
	NoticeFriendRecall = "friend_recall"
	NoticeGroupUpload  = "group_upload"
	NoticeOfflineFile  = "offline_file"
)

// Segment types
const (
	SegmentText    = "text"
	SegmentAt      = "at"
	SegmentFace    = "face"
	SegmentImage   = "image"
	SegmentReply   = "reply"
	SegmentVideo   = "video"
	SegmentRecord  = "record"
	SegmentForward = "forward"
)

// FlexInt decodes IDs that gateways send either as numbers or as strings
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexInt(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("cannot parse %s as integer", string(data))
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("cannot parse %q as integer: %w", s, err)
	}
	*f = FlexInt(n)
	return nil
}

func (f FlexInt) Int64() int64 {
	return int64(f)
}

// Segment is one element of an array-format OneBot message
type Segment struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// Get returns a data field as a string, formatting numbers without exponent
func (s Segment) Get(key string) string {
	switch v := s.Data[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}

// Message accepts both the array format and the plain string format; the
// latter becomes a single text segment.
type Message []Segment

func (m *Message) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Message{Text(s)}
		return nil
	}
	var segs []Segment
	if err := json.Unmarshal(data, &segs); err != nil {
		return err
	}
	*m = segs
	return nil
}

func Text(text string) Segment {
	return Segment{Type: SegmentText, Data: map[string]interface{}{"text": text}}
}

func Image(file string) Segment {
	return Segment{Type: SegmentImage, Data: map[string]interface{}{"file": file}}
}

func Video(file string) Segment {
	return Segment{Type: SegmentVideo, Data: map[string]interface{}{"file": file}}
}

func Reply(messageID int64) Segment {
	return Segment{Type: SegmentReply, Data: map[string]interface{}{"id": strconv.FormatInt(messageID, 10)}}
}

func At(userID string) Segment {
	return Segment{Type: SegmentAt, Data: map[string]interface{}{"qq": userID}}
}

type Sender struct {
	UserID   FlexInt `json:"user_id"`
	Nickname string  `json:"nickname"`
	Card     string  `json:"card"`
}

// DisplayName prefers the group card over the account nickname
func (s Sender) DisplayName() string {
	if s.Card != "" {
		return s.Card
	}
	return s.Nickname
}

// File is the payload of a file share notice
type File struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Size  FlexInt `json:"size"`
	URL   string  `json:"url"`
	BusID FlexInt `json:"busid"`
}

// Event is a raw event pushed over the event stream
type Event struct {
	PostType      string  `json:"post_type"`
	MessageType   string  `json:"message_type"`
	NoticeType    string  `json:"notice_type"`
	MetaEventType string  `json:"meta_event_type"`
	SubType       string  `json:"sub_type"`
	Time          FlexInt `json:"time"`
	SelfID        FlexInt `json:"self_id"`
	UserID        FlexInt `json:"user_id"`
	GroupID       FlexInt `json:"group_id"`
	OperatorID    FlexInt `json:"operator_id"`
	MessageID     FlexInt `json:"message_id"`
	TargetID      FlexInt `json:"target_id"`
	Message       Message `json:"message"`
	RawMessage    string  `json:"raw_message"`
	Sender        Sender  `json:"sender"`
	File          *File   `json:"file,omitempty"`
}

// IsMessage includes messages the account sent itself, which gateways
// configured to report them post as message_sent.
func (e *Event) IsMessage() bool {
	return e.PostType == PostTypeMessage || e.PostType == PostTypeMessageSent
}

// FromSelf reports whether the logged in account sent the message
func (e *Event) FromSelf() bool {
	return e.SelfID != 0 && e.UserID == e.SelfID
}

// Peer is the other party of a private conversation. For messages the
// account sent itself that is target_id, not the sender.
func (e *Event) Peer() int64 {
	if e.FromSelf() && e.TargetID != 0 {
		return e.TargetID.Int64()
	}
	return e.UserID.Int64()
}

func (e *Event) IsRecall() bool {
	return e.PostType == PostTypeNotice &&
		(e.NoticeType == NoticeGroupRecall || e.NoticeType == NoticeFriendRecall)
}

func (e *Event) IsFileShare() bool {
	return e.PostType == PostTypeNotice && e.File != nil &&
		(e.NoticeType == NoticeGroupUpload || e.NoticeType == NoticeOfflineFile)
}

// IsGroup reports whether the event happened in a group rather than a
// private conversation.
func (e *Event) IsGroup() bool {
	switch e.PostType {
	case PostTypeMessage, PostTypeMessageSent:
		return e.MessageType == "group"
	case PostTypeNotice:
		return e.NoticeType == NoticeGroupRecall || e.NoticeType == NoticeGroupUpload
	}
	return e.GroupID != 0
}

// PlainText concatenates the text segments of the message
func (e *Event) PlainText() string {
	var buf bytes.Buffer
	for _, seg := range e.Message {
		if seg.Type == SegmentText {
			buf.WriteString(seg.Get("text"))
		}
	}
	return buf.String()
}

// MemberInfo is the subset of get_group_member_info the bridge reads
type MemberInfo struct {
	GroupID  FlexInt `json:"group_id"`
	UserID   FlexInt `json:"user_id"`
	Nickname string  `json:"nickname"`
	Card     string  `json:"card"`
}

func (m MemberInfo) DisplayName() string {
	if m.Card != "" {
		return m.Card
	}
	return m.Nickname
}

type LoginInfo struct {
	UserID   FlexInt `json:"user_id"`
	Nickname string  `json:"nickname"`
}
