package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

const readLimitBytes = 4 << 20

// Stream reads events from the gateway's forward WebSocket
type Stream struct {
	url            string
	accessToken    string
	reconnectDelay time.Duration
	logger         *logrus.Logger

	mu        sync.RWMutex
	connected bool
}

func NewStream(url, accessToken string, reconnectDelay time.Duration, logger *logrus.Logger) *Stream {
	if logger == nil {
		logger = logrus.New()
	}
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	return &Stream{
		url:            url,
		accessToken:    accessToken,
		reconnectDelay: reconnectDelay,
		logger:         logger,
	}
}

// Connected reports whether a connection is currently open
func (s *Stream) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Stream) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

// Run delivers every event to handle until ctx is cancelled. Any dial or read
// failure is followed by a fixed delay and a fresh connection; there is no
// attempt limit.
func (s *Stream) Run(ctx context.Context, handle func(*Event)) error {
	for {
		err := s.readOnce(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.WithError(err).WithField("retry_in", s.reconnectDelay).
			Warn("OneBot event stream disconnected, reconnecting")

		timer := time.NewTimer(s.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Stream) readOnce(ctx context.Context, handle func(*Event)) error {
	header := http.Header{}
	if s.accessToken != "" {
		header.Set("Authorization", "Bearer "+s.accessToken)
	}

	conn, _, err := websocket.Dial(ctx, s.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("failed to dial event stream: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimitBytes)

	s.setConnected(true)
	defer s.setConnected(false)
	s.logger.Info("Connected to OneBot event stream")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			s.logger.WithError(err).Warn("Dropping undecodable OneBot event")
			continue
		}

		switch event.PostType {
		case "":
			// API responses share the socket on some gateways
			continue
		case PostTypeMetaEvent:
			s.logger.WithFields(logrus.Fields{
				"meta_event_type": event.MetaEventType,
				"self_id":         event.SelfID,
			}).Debug("OneBot meta event")
			continue
		}

		handle(&event)
	}
}
