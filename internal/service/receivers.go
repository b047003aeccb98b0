package service

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"qtbridge/internal/metrics"
	"qtbridge/internal/models"
	"qtbridge/internal/normalize"
	"qtbridge/pkg/onebot"

	"github.com/mymmrac/telego"
	"github.com/sirupsen/logrus"
)

// Receiver feeds events from one platform into a sink until ctx is done
type Receiver interface {
	Name() models.Platform
	Run(ctx context.Context) error
	Connected() bool
}

// EventStream is the QQ push channel
type EventStream interface {
	Run(ctx context.Context, handle func(*onebot.Event)) error
	Connected() bool
}

// UpdateSource is the Telegram long-polling channel
type UpdateSource interface {
	Updates(ctx context.Context) (<-chan telego.Update, error)
}

// QQReceiver converts OneBot events into inbound events
type QQReceiver struct {
	stream EventStream
	sink   EventSink
	logger *logrus.Logger
}

func NewQQReceiver(stream EventStream, sink EventSink, logger *logrus.Logger) *QQReceiver {
	return &QQReceiver{stream: stream, sink: sink, logger: logger}
}

func (r *QQReceiver) Name() models.Platform { return models.PlatformQQ }

func (r *QQReceiver) Connected() bool { return r.stream.Connected() }

// Run reconnects forever; it only returns once ctx is cancelled
func (r *QQReceiver) Run(ctx context.Context) error {
	return r.stream.Run(ctx, func(raw *onebot.Event) {
		ev := QQInboundEvent(raw)
		if ev == nil {
			r.logger.WithFields(logrus.Fields{
				"post_type":   raw.PostType,
				"notice_type": raw.NoticeType,
			}).Debug("Skipping QQ event the bridge does not handle")
			return
		}
		r.sink.Dispatch(ctx, ev)
	})
}

// QQInboundEvent classifies a OneBot event. It returns nil for events the
// bridge does not act on.
func QQInboundEvent(raw *onebot.Event) *models.InboundEvent {
	ev := &models.InboundEvent{
		SenderID: raw.UserID.Int64(),
		Time:     time.Unix(raw.Time.Int64(), 0),
		QQ:       raw,
	}

	var scope models.Scope
	if raw.IsGroup() {
		scope = models.GroupScope(raw.GroupID.Int64())
	} else {
		// Keyed on the peer so the bot's own private sends meet the echo
		// guard armed for that conversation.
		scope = models.PrivateScope(raw.Peer())
	}
	messageID := strconv.FormatInt(raw.MessageID.Int64(), 10)
	selfID := raw.SelfID.Int64()

	switch {
	case raw.IsMessage():
		ev.Kind = models.EventMessage
		ev.SenderName = raw.Sender.DisplayName()
		ev.FromSelf = raw.FromSelf()
		ev.Text = raw.PlainText()
	case raw.IsRecall():
		ev.Kind = models.EventRecall
		actor := raw.OperatorID.Int64()
		if actor == 0 {
			actor = raw.UserID.Int64()
		}
		ev.FromSelf = selfID != 0 && actor == selfID
	case raw.IsFileShare():
		ev.Kind = models.EventFile
		ev.FromSelf = raw.FromSelf()
		messageID = "file:" + raw.File.ID
	default:
		return nil
	}

	ev.Identity = models.MessageIdentity{
		Platform:  models.PlatformQQ,
		Scope:     scope,
		MessageID: messageID,
	}
	return ev
}

// TelegramReceiver polls the Bot API and restarts polling after a fixed
// delay whenever it stops.
type TelegramReceiver struct {
	source       UpdateSource
	sink         EventSink
	restartDelay time.Duration
	connected    atomic.Bool
	metrics      *metrics.Registry
	logger       *logrus.Logger
}

func NewTelegramReceiver(source UpdateSource, sink EventSink, restartDelay time.Duration, registry *metrics.Registry, logger *logrus.Logger) *TelegramReceiver {
	return &TelegramReceiver{
		source:       source,
		sink:         sink,
		restartDelay: restartDelay,
		metrics:      registry,
		logger:       logger,
	}
}

func (r *TelegramReceiver) Name() models.Platform { return models.PlatformTelegram }

func (r *TelegramReceiver) Connected() bool { return r.connected.Load() }

func (r *TelegramReceiver) Run(ctx context.Context) error {
	for {
		if err := r.poll(ctx); err != nil && ctx.Err() == nil {
			r.logger.WithError(err).Warn("Telegram polling failed")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.metrics.IncrementCounter(metrics.ReceiverReconnects, map[string]string{"platform": string(models.PlatformTelegram)}, "Receiver restarts")
		r.logger.WithField("retry_in", r.restartDelay).Warn("Telegram polling stopped, restarting")

		timer := time.NewTimer(r.restartDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *TelegramReceiver) poll(ctx context.Context) error {
	// Cancelling pollCtx stops the underlying poller when we return early.
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, err := r.source.Updates(pollCtx)
	if err != nil {
		return err
	}

	r.connected.Store(true)
	defer r.connected.Store(false)
	r.logger.Info("Telegram long polling started")

	for update := range updates {
		if ev := TelegramInboundEvent(update); ev != nil {
			r.sink.Dispatch(ctx, ev)
		}
	}
	return nil
}

// TelegramInboundEvent classifies an update. New messages and edits are
// handled; everything else returns nil.
func TelegramInboundEvent(update telego.Update) *models.InboundEvent {
	var (
		msg  *telego.Message
		kind models.EventKind
	)
	switch {
	case update.Message != nil:
		msg, kind = update.Message, models.EventMessage
	case update.EditedMessage != nil:
		msg, kind = update.EditedMessage, models.EventEdit
	default:
		return nil
	}

	ev := &models.InboundEvent{
		Kind: kind,
		Identity: models.MessageIdentity{
			Platform:  models.PlatformTelegram,
			Scope:     models.GroupScope(msg.Chat.ID),
			MessageID: strconv.Itoa(msg.MessageID),
		},
		Text:     msg.Text,
		Time:     time.Unix(msg.Date, 0),
		Telegram: msg,
	}
	if ev.Text == "" {
		ev.Text = msg.Caption
	}
	if kind == models.EventEdit && msg.EditDate != 0 {
		ev.Time = time.Unix(msg.EditDate, 0)
	}
	if msg.From != nil {
		ev.SenderID = msg.From.ID
		ev.SenderName = normalize.TelegramDisplayName(msg.From)
	}
	return ev
}
