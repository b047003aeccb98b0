package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"qtbridge/internal/compose"
	"qtbridge/internal/constants"
	"qtbridge/internal/correlation"
	apperrors "qtbridge/internal/errors"
	"qtbridge/internal/metrics"
	"qtbridge/internal/models"
	"qtbridge/internal/privacy"
	"qtbridge/internal/retry"
	"qtbridge/internal/tracing"
	"qtbridge/pkg/circuitbreaker"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Normalizer converts the native payload of an event into segments
type Normalizer interface {
	Normalize(ctx context.Context, ev *models.InboundEvent) []models.Segment
}

// CoordinatorConfig holds the behaviour switches of one forwarding direction
type CoordinatorConfig struct {
	RecallEnabled    bool
	DeleteOnlyPrefix string
	ChatIDCommand    string
	ChatIDLabel      string
	EchoWindow       time.Duration
	Retry            retry.BackoffConfig
}

// CoordinatorConfigFrom extracts the coordinator settings from cfg
func CoordinatorConfigFrom(cfg *models.Config) CoordinatorConfig {
	return CoordinatorConfig{
		RecallEnabled:    cfg.Recall.Enabled,
		DeleteOnlyPrefix: cfg.Edit.DeleteOnlyPrefix,
		ChatIDCommand:    cfg.Commands.ChatID,
		ChatIDLabel:      constants.LabelChatIDResponse,
		EchoWindow:       time.Duration(cfg.Echo.WindowSec) * time.Second,
		Retry:            retry.FixedConfig(cfg.Retry.MaxAttempts, time.Duration(cfg.Retry.DelayMs)*time.Millisecond),
	}
}

// Coordinator forwards events from one source platform to the other. Two
// instances share one correlation store so replies and recalls resolve in
// both directions.
type Coordinator struct {
	source     models.Platform
	config     CoordinatorConfig
	store      *correlation.Store
	channels   *ChannelManager
	normalizer Normalizer
	target     Outbound
	replier    Replier
	backoff    *retry.Backoff
	metrics    *metrics.Registry
	logger     *logrus.Logger
	errLogger  *apperrors.Logger
}

// NewCoordinator wires a forwarding direction. replier may be nil when the
// source platform has no commands.
func NewCoordinator(source models.Platform, config CoordinatorConfig, store *correlation.Store, channels *ChannelManager, normalizer Normalizer, target Outbound, replier Replier, registry *metrics.Registry, logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		source:     source,
		config:     config,
		store:      store,
		channels:   channels,
		normalizer: normalizer,
		target:     target,
		replier:    replier,
		backoff:    retry.NewBackoff(config.Retry),
		metrics:    registry,
		logger:     logger,
		errLogger:  apperrors.NewLogger(logger),
	}
}

func (c *Coordinator) Source() models.Platform {
	return c.source
}

// Handle runs one inbound event through echo suppression, scope filtering,
// commands, recall and edit handling and finally the forward itself.
func (c *Coordinator) Handle(ctx context.Context, ev *models.InboundEvent) error {
	ctx, span := tracing.StartSpan(ctx, "coordinator.handle",
		attribute.String("event.id", ev.ID),
		attribute.String("event.kind", string(ev.Kind)),
		attribute.String("source.platform", string(c.source)),
	)
	defer span.End()

	log := c.logger.WithFields(eventFields(ev))
	c.metrics.IncrementCounter(metrics.EventsReceived, c.labels(ev), "Inbound events received")

	if c.isEcho(ev) {
		log.Info("Suppressed echo of a bridged message")
		c.metrics.IncrementCounter(metrics.EchoesSuppressed, c.labels(ev), "Bridged messages seen again and dropped")
		return nil
	}

	scope := ev.Scope()
	if !c.channels.IsAllowed(c.source, scope) {
		log.Debug("Ignoring event from unconfigured scope")
		c.metrics.IncrementCounter(metrics.EventsIgnored, c.labels(ev), "Events from scopes without a route")
		return nil
	}

	if c.isCommand(ev) {
		// A message edited into a command replaces its forwarded copy with the answer
		if ev.Kind == models.EventEdit {
			c.dropPreviousCopy(ctx, ev)
		}
		return c.handleChatIDCommand(ctx, ev, log)
	}

	dest, ok := c.channels.Destination(c.source, scope)
	if !ok {
		log.Debug("Scope is allowed but has no route")
		return nil
	}

	switch ev.Kind {
	case models.EventRecall:
		return c.handleRecall(ctx, ev, log)
	case models.EventEdit:
		if stop := c.handleEdit(ctx, ev, log); stop {
			return nil
		}
	}

	return c.forward(ctx, ev, dest, log)
}

// isEcho only considers messages. Recall notices for copies the bridge
// deleted itself must not consume a guard set for the replacement send.
func (c *Coordinator) isEcho(ev *models.InboundEvent) bool {
	if !ev.FromSelf {
		return false
	}
	if ev.Kind != models.EventMessage && ev.Kind != models.EventFile {
		return false
	}
	return c.store.ConsumeEchoIfPending(c.source, ev.Scope(), c.config.EchoWindow)
}

func (c *Coordinator) isCommand(ev *models.InboundEvent) bool {
	if c.replier == nil || c.config.ChatIDCommand == "" {
		return false
	}
	if ev.Kind != models.EventMessage && ev.Kind != models.EventEdit {
		return false
	}
	word, _, _ := strings.Cut(strings.TrimSpace(ev.Text), " ")
	// Telegram appends the bot username in groups: /chatid@my_bot
	word, _, _ = strings.Cut(word, "@")
	return word == c.config.ChatIDCommand
}

func (c *Coordinator) handleChatIDCommand(ctx context.Context, ev *models.InboundEvent, log *logrus.Entry) error {
	scope := ev.Scope()
	text := ChatIDResponse(c.config.ChatIDLabel, scope.ID)

	c.metrics.IncrementCounter(metrics.CommandsHandled, map[string]string{"command": c.config.ChatIDCommand}, "Commands answered")
	if err := c.replier.Reply(ctx, scope, text, ev.Identity.MessageID); err != nil {
		c.errLogger.LogWarn(err, "Failed to answer chat id command", eventFields(ev))
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to answer %s: %w", c.config.ChatIDCommand, err)
	}
	log.Info("Answered chat id command")
	return nil
}

func (c *Coordinator) handleRecall(ctx context.Context, ev *models.InboundEvent, log *logrus.Entry) error {
	if !c.config.RecallEnabled {
		log.Debug("Recall propagation disabled, ignoring recall")
		return nil
	}

	target, ok := c.store.LookupTarget(ev.Identity)
	if !ok {
		log.Debug("Recalled message was never forwarded")
		return nil
	}

	err := c.target.Delete(ctx, target)
	c.store.Forget(ev.Identity)
	if err != nil {
		c.errLogger.LogWarn(err, "Failed to recall forwarded copy", eventFields(ev))
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to delete %s: %w", target, err)
	}

	c.metrics.IncrementCounter(metrics.RecallsPropagated, c.labels(ev), "Recalls propagated to the other platform")
	log.WithField("target", privacy.MaskIdentity(target)).Info("Recalled forwarded copy")
	return nil
}

// handleEdit removes the previous copy of an edited message. It reports
// whether handling should stop instead of forwarding the new content.
func (c *Coordinator) handleEdit(ctx context.Context, ev *models.InboundEvent, log *logrus.Entry) bool {
	c.dropPreviousCopy(ctx, ev)

	prefix := c.config.DeleteOnlyPrefix
	if prefix != "" && strings.HasPrefix(strings.TrimSpace(ev.Text), prefix) {
		log.Info("Edit requested deletion only")
		return true
	}
	return false
}

// dropPreviousCopy deletes the copy of an edited message best-effort
func (c *Coordinator) dropPreviousCopy(ctx context.Context, ev *models.InboundEvent) {
	target, ok := c.store.LookupTarget(ev.Identity)
	if !ok {
		return
	}
	if err := c.target.Delete(ctx, target); err != nil {
		c.errLogger.LogWarn(err, "Failed to delete previous copy of edited message", eventFields(ev))
	}
	c.store.Forget(ev.Identity)
	c.metrics.IncrementCounter(metrics.EditsPropagated, c.labels(ev), "Edits propagated to the other platform")
}

func (c *Coordinator) forward(ctx context.Context, ev *models.InboundEvent, dest models.Scope, log *logrus.Entry) error {
	start := time.Now()
	defer func() {
		c.metrics.RecordTimer(metrics.ForwardDuration, time.Since(start), map[string]string{"source": string(c.source)})
	}()

	segments := c.normalizer.Normalize(ctx, ev)
	plan := compose.Plan(dest, ev.SenderName, segments, c.target.Capabilities())
	if len(plan) == 0 {
		log.Debug("Nothing to forward after normalization")
		return nil
	}
	tracing.AddSpanAttributes(ctx, attribute.Int("forward.sends", len(plan)))

	var failed int
	var lastErr error
	for i, msg := range plan {
		id, err := c.deliver(ctx, msg)
		if err != nil {
			failed++
			lastErr = err
			c.metrics.IncrementCounter(metrics.SendFailures, c.labels(ev), "Sends dropped after retries")
			c.errLogger.LogError(err, "Dropping message after retries", eventFields(ev), logrus.Fields{
				"part":  i + 1,
				"parts": len(plan),
			})
			tracing.RecordError(ctx, err)
			continue
		}

		// Fan-out keeps only the last copy.
		c.store.Record(ev.Identity, id)
		c.metrics.IncrementCounter(metrics.MessagesForwarded, c.labels(ev), "Messages forwarded")
		log.WithFields(logrus.Fields{
			"target":     privacy.MaskIdentity(id),
			"part":       i + 1,
			"parts":      len(plan),
			"segments":   len(msg.Segments),
			"with_reply": msg.ReplyTo != nil,
		}).Debug("Forwarded message")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sends failed: %w", failed, len(plan), lastErr)
	}
	return nil
}

// deliver sends msg with bounded retries. When the target echoes its own
// sends, an echo guard is armed before every attempt and retracted if all
// attempts fail.
func (c *Coordinator) deliver(ctx context.Context, msg models.OutboundMessage) (models.MessageIdentity, error) {
	platform := c.target.Platform()
	echoes := c.target.Capabilities().EchoesOwnMessages

	var id models.MessageIdentity
	attempt := 0
	err := c.backoff.RetryWithPredicate(ctx, func() error {
		attempt++
		if echoes {
			c.store.MarkEchoExpected(platform, msg.Scope)
		}
		var err error
		id, err = c.target.Send(ctx, msg)
		if err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"attempt":      attempt,
				"max_attempts": c.backoff.MaxAttempts(),
				"scope":        privacy.MaskScope(msg.Scope),
			}).Debug("Send attempt failed")
		}
		return err
	}, isRetryableSend)
	if err != nil {
		if echoes {
			c.store.ClearEcho(platform, msg.Scope)
		}
		return models.MessageIdentity{}, err
	}
	return id, nil
}

// isRetryableSend rejects permanent failures and calls refused by an open
// breaker, which stays open longer than the whole retry budget.
func isRetryableSend(err error) bool {
	return !apperrors.IsPermanent(err) && !circuitbreaker.IsCircuitBreakerError(err)
}

func (c *Coordinator) labels(ev *models.InboundEvent) map[string]string {
	return map[string]string{
		"source": string(c.source),
		"kind":   string(ev.Kind),
	}
}

func eventFields(ev *models.InboundEvent) logrus.Fields {
	return logrus.Fields{
		"event_id":   ev.ID,
		"platform":   string(ev.Platform()),
		"scope":      privacy.MaskScope(ev.Scope()),
		"message_id": ev.Identity.MessageID,
		"kind":       string(ev.Kind),
	}
}
