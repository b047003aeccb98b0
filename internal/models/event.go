package models

import (
	"time"

	"github.com/mymmrac/telego"

	"qtbridge/pkg/onebot"
)

type EventKind string

const (
	EventMessage EventKind = "message"
	EventEdit    EventKind = "edit"
	EventRecall  EventKind = "recall"
	EventFile    EventKind = "file"
)

// InboundEvent is a platform event after the receiver has classified it.
// Exactly one of QQ and Telegram carries the native payload.
type InboundEvent struct {
	ID         string          `json:"id"`
	Kind       EventKind       `json:"kind"`
	Identity   MessageIdentity `json:"identity"`
	SenderID   int64           `json:"sender_id"`
	SenderName string          `json:"sender_name"`
	FromSelf   bool            `json:"from_self"`
	Text       string          `json:"text"`
	Time       time.Time       `json:"time"`

	QQ       *onebot.Event   `json:"-"`
	Telegram *telego.Message `json:"-"`
}

func (e *InboundEvent) Platform() Platform {
	return e.Identity.Platform
}

func (e *InboundEvent) Scope() Scope {
	return e.Identity.Scope
}

// OutboundMessage is one send towards a target scope
type OutboundMessage struct {
	Scope      Scope            `json:"scope"`
	SenderName string           `json:"sender_name"`
	Segments   []Segment        `json:"segments"`
	ReplyTo    *MessageIdentity `json:"reply_to,omitempty"`
}

// Capabilities describes how a target platform accepts content
type Capabilities struct {
	// InlineImages is true when images and text travel in one message
	InlineImages bool
	// EchoesOwnMessages is true when the platform reports the bot's own
	// sends back as inbound events
	EchoesOwnMessages bool
}
