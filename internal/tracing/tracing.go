package tracing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ContextKey represents keys used for context values
type ContextKey string

const (
	EventIDKey   ContextKey = "event_id"
	StartTimeKey ContextKey = "start_time"
)

// NewEventID returns a fresh identifier for an inbound event
func NewEventID() string {
	return uuid.NewString()
}

func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, EventIDKey, eventID)
}

func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, StartTimeKey, startTime)
}

// EventID returns the event id stored in ctx, or "" if none
func EventID(ctx context.Context) string {
	if id, ok := ctx.Value(EventIDKey).(string); ok {
		return id
	}
	return ""
}

func StartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return t
	}
	return time.Time{}
}

// WithEvent tags ctx with an event id and the current time
func WithEvent(ctx context.Context, eventID string) context.Context {
	if eventID == "" {
		eventID = NewEventID()
	}
	ctx = WithEventID(ctx, eventID)
	return WithStartTime(ctx, time.Now())
}

// Duration returns the time elapsed since WithEvent, zero if not set
func Duration(ctx context.Context) time.Duration {
	start := StartTime(ctx)
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}
