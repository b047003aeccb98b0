package models

import (
	"fmt"
	"time"
)

type Platform string

const (
	PlatformQQ       Platform = "qq"
	PlatformTelegram Platform = "telegram"
)

// Other returns the platform on the opposite side of the bridge
func (p Platform) Other() Platform {
	if p == PlatformQQ {
		return PlatformTelegram
	}
	return PlatformQQ
}

type ScopeKind string

const (
	ScopeGroup   ScopeKind = "group"
	ScopePrivate ScopeKind = "private"
)

// Scope is a conversation on one platform: a QQ group, a QQ private chat or a
// Telegram chat. Telegram chats are always ScopeGroup.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	ID   int64     `json:"id"`
}

func GroupScope(id int64) Scope   { return Scope{Kind: ScopeGroup, ID: id} }
func PrivateScope(id int64) Scope { return Scope{Kind: ScopePrivate, ID: id} }

func (s Scope) String() string {
	return fmt.Sprintf("%s:%d", s.Kind, s.ID)
}

// MessageIdentity uniquely names a message on one platform. It is comparable
// and used directly as a map key.
type MessageIdentity struct {
	Platform  Platform `json:"platform"`
	Scope     Scope    `json:"scope"`
	MessageID string   `json:"message_id"`
}

func (m MessageIdentity) String() string {
	return fmt.Sprintf("%s/%s/%s", m.Platform, m.Scope, m.MessageID)
}

func (m MessageIdentity) IsZero() bool {
	return m == MessageIdentity{}
}

// CorrelationRecord links a message to the copy the bridge produced for it
type CorrelationRecord struct {
	Source    MessageIdentity `json:"source"`
	Target    MessageIdentity `json:"target"`
	CreatedAt time.Time       `json:"created_at"`
}

// FileURLs holds both forms of a resolved platform file handle. Rewritten
// is reachable from the other side of the bridge.
type FileURLs struct {
	Native    string `json:"native"`
	Rewritten string `json:"rewritten"`
}
