package service

import (
	"context"
	"sync"
	"time"

	"qtbridge/internal/correlation"
	"qtbridge/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Janitor periodically evicts correlation records older than maxAge
type Janitor struct {
	store    *correlation.Store
	maxAge   time.Duration
	interval time.Duration
	metrics  *metrics.Registry
	logger   *logrus.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewJanitor(store *correlation.Store, maxAge, interval time.Duration, registry *metrics.Registry, logger *logrus.Logger) *Janitor {
	return &Janitor{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
		metrics:  registry,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start blocks until ctx is cancelled or Stop is called
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.WithFields(logrus.Fields{
		"max_age":  j.maxAge,
		"interval": j.interval,
	}).Info("Starting correlation janitor")

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Janitor context cancelled, stopping")
			return
		case <-j.stopCh:
			j.logger.Info("Janitor stop signal received, stopping")
			return
		case <-ticker.C:
			j.RunOnce()
		}
	}
}

func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

// RunOnce performs a single sweep and returns how many records it removed
func (j *Janitor) RunOnce() int {
	evicted := j.store.EvictOlderThan(j.maxAge)
	stats := j.store.Stats()

	j.metrics.AddToCounter(metrics.CorrelationEvicted, float64(evicted), nil, "Correlation records evicted by age")
	j.metrics.SetGauge(metrics.CorrelationRecords, float64(stats.Records), nil, "Live correlation records")

	j.logger.WithFields(logrus.Fields{
		"evicted":        evicted,
		"records":        stats.Records,
		"pending_echoes": stats.PendingEchoes,
		"cached_files":   stats.CachedFiles,
	}).Debug("Correlation sweep completed")
	return evicted
}
