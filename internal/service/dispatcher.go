package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	apperrors "qtbridge/internal/errors"
	"qtbridge/internal/metrics"
	"qtbridge/internal/models"
	"qtbridge/internal/tracing"

	"github.com/sirupsen/logrus"
)

// Handler processes one inbound event
type Handler interface {
	Handle(ctx context.Context, ev *models.InboundEvent) error
}

// EventSink accepts events from receivers
type EventSink interface {
	Dispatch(ctx context.Context, ev *models.InboundEvent)
}

// Dispatcher runs every inbound event in its own goroutine. A panic or
// error while handling one event is logged with its id and never affects
// other events.
type Dispatcher struct {
	handlers  map[models.Platform]Handler
	wg        sync.WaitGroup
	inFlight  atomic.Int64
	metrics   *metrics.Registry
	logger    *logrus.Logger
	errLogger *apperrors.Logger
}

func NewDispatcher(handlers map[models.Platform]Handler, registry *metrics.Registry, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		handlers:  handlers,
		metrics:   registry,
		logger:    logger,
		errLogger: apperrors.NewLogger(logger),
	}
}

// Dispatch hands ev to the handler of its source platform. The event keeps
// running when ctx is cancelled so shutdown can drain it with Wait.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *models.InboundEvent) {
	handler, ok := d.handlers[ev.Platform()]
	if !ok {
		d.logger.WithField("platform", ev.Platform()).Warn("No handler for platform, dropping event")
		return
	}
	if ev.ID == "" {
		ev.ID = tracing.NewEventID()
	}

	eventCtx := tracing.WithEvent(context.WithoutCancel(ctx), ev.ID)

	d.wg.Add(1)
	d.inFlight.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.inFlight.Add(-1)
		defer d.recoverPanic(ev)

		if err := handler.Handle(eventCtx, ev); err != nil {
			d.errLogger.LogRetryableError(err, "Event handling failed", eventFields(ev))
			return
		}
		d.logger.WithFields(eventFields(ev)).
			WithField("duration", tracing.Duration(eventCtx)).
			Debug("Event handled")
	}()
}

func (d *Dispatcher) recoverPanic(ev *models.InboundEvent) {
	r := recover()
	if r == nil {
		return
	}
	d.metrics.IncrementCounter(metrics.EventPanics, map[string]string{"source": string(ev.Platform())}, "Events aborted by a panic")
	d.logger.WithFields(eventFields(ev)).WithFields(logrus.Fields{
		"panic": fmt.Sprint(r),
		"stack": string(debug.Stack()),
	}).Error("Recovered from panic while handling event")
}

// InFlight returns the number of events currently being handled
func (d *Dispatcher) InFlight() int64 {
	return d.inFlight.Load()
}

// Wait blocks until every dispatched event finished or ctx is done
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%d events still in flight: %w", d.InFlight(), ctx.Err())
	}
}
