package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"qtbridge/internal/constants"
	"qtbridge/internal/correlation"
	"qtbridge/internal/facemap"
	"qtbridge/internal/metrics"
	"qtbridge/internal/models"
	"qtbridge/internal/normalize"
	"qtbridge/internal/privacy"
	"qtbridge/internal/service"
	"qtbridge/internal/tracing"
	"qtbridge/pkg/circuitbreaker"
	"qtbridge/pkg/onebot"
	"qtbridge/pkg/telegram"

	"github.com/sirupsen/logrus"
)

// App holds every long-lived component of a running bridge
type App struct {
	cfg        *models.Config
	logger     *logrus.Logger
	registry   *metrics.Registry
	store      *correlation.Store
	channels   *service.ChannelManager
	qqAPI      onebot.API
	dispatcher *service.Dispatcher
	receivers  []service.Receiver
	breakers   []*circuitbreaker.CircuitBreaker
	janitor    *service.Janitor
	tracing    *tracing.Manager
	server     *Server
	startedAt  time.Time
}

func newApp(cfg *models.Config, logger *logrus.Logger) (*App, error) {
	registry := metrics.NewRegistry()

	store, err := correlation.NewStore(cfg.Correlation.MaxRecords)
	if err != nil {
		return nil, err
	}

	channels, err := service.NewChannelManager(cfg.Forward)
	if err != nil {
		return nil, fmt.Errorf("failed to create channel manager: %w", err)
	}

	qqAPI := onebot.NewClient(cfg.QQ.HTTPURL, cfg.QQ.AccessToken, &http.Client{
		Timeout: time.Duration(cfg.QQ.TimeoutSec) * time.Second,
	}, logger)

	tgClient, err := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.APIURL, cfg.Telegram.PollTimeoutSec, logger)
	if err != nil {
		return nil, err
	}

	members := service.NewMemberDirectory(qqAPI, constants.DefaultMemberCacheSize,
		time.Duration(constants.DefaultMemberCacheMinutes)*time.Minute, logger)
	faces := facemap.New(cfg.Faces, cfg.Labels.UnknownFace)
	normalizer := normalize.NewNormalizer(store, members, tgClient, faces, cfg.Labels, logger)

	qqBreaker := service.NewOutboundBreaker("qq", circuitbreaker.WithLogger(logger))
	tgBreaker := service.NewOutboundBreaker("telegram", circuitbreaker.WithLogger(logger))
	qqOut := service.NewQQOutbound(qqAPI, cfg.QQ.ShowSenderName, qqBreaker)
	tgOut := service.NewTelegramOutbound(tgClient, cfg.Labels, tgBreaker)

	coordCfg := service.CoordinatorConfigFrom(cfg)
	qqToTelegram := service.NewCoordinator(models.PlatformQQ, coordCfg, store, channels, normalizer, tgOut, nil, registry, logger)
	telegramToQQ := service.NewCoordinator(models.PlatformTelegram, coordCfg, store, channels, normalizer, qqOut, tgOut, registry, logger)

	dispatcher := service.NewDispatcher(map[models.Platform]service.Handler{
		models.PlatformQQ:       qqToTelegram,
		models.PlatformTelegram: telegramToQQ,
	}, registry, logger)

	reconnectDelay := time.Duration(cfg.ReconnectDelaySec) * time.Second
	stream := onebot.NewStream(cfg.QQ.WSURL, cfg.QQ.AccessToken, reconnectDelay, logger)

	receivers := []service.Receiver{
		service.NewQQReceiver(stream, dispatcher, logger),
		service.NewTelegramReceiver(tgClient, dispatcher, reconnectDelay, registry, logger),
	}
	janitor := service.NewJanitor(store,
		time.Duration(cfg.Correlation.MaxAgeHours)*time.Hour,
		time.Duration(cfg.Correlation.CleanupIntervalMin)*time.Minute,
		registry, logger)

	app := &App{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		store:      store,
		channels:   channels,
		qqAPI:      qqAPI,
		dispatcher: dispatcher,
		receivers:  receivers,
		breakers:   []*circuitbreaker.CircuitBreaker{qqBreaker, tgBreaker},
		janitor:    janitor,
		tracing:    tracing.NewManager(cfg.Tracing, logger),
		startedAt:  time.Now(),
	}
	if cfg.Server.Enabled {
		app.server = NewServer(app, registry, logger)
	}

	logger.WithFields(logrus.Fields{
		"routes":       channels.RouteCount(),
		"qq_http":      cfg.QQ.HTTPURL,
		"telegram_api": privacy.MaskURL(cfg.Telegram.APIURL, cfg.Telegram.Token),
		"recall":       cfg.Recall.Enabled,
	}).Info("Bridge configured")
	return app, nil
}

// Run starts every component and blocks until ctx is cancelled, then
// drains in-flight events.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.tracing.Initialize(ctx); err != nil {
		a.logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := a.tracing.Shutdown(context.Background()); err != nil {
			a.logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	a.logLogin(ctx)

	var wg sync.WaitGroup
	for _, r := range a.receivers {
		wg.Add(1)
		go func(r service.Receiver) {
			defer wg.Done()
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.WithError(err).WithField("platform", r.Name()).Error("Receiver stopped")
			}
		}(r)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.janitor.Start(ctx)
	}()

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() {
			if err := a.server.Start(a.cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	a.logger.Info("qtbridge is running")

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("status server failed: %w", err)
		cancel()
	}

	return errors.Join(runErr, a.shutdown(&wg))
}

func (a *App) shutdown(wg *sync.WaitGroup) error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownSec*time.Second)
	defer cancel()

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop status server: %w", err))
		}
	}

	a.janitor.Stop()
	wg.Wait()

	if err := a.dispatcher.Wait(ctx); err != nil {
		errs = append(errs, err)
	}

	a.logger.WithField("correlations", a.store.Len()).Info("qtbridge stopped")
	return errors.Join(errs...)
}

func (a *App) logLogin(ctx context.Context) {
	info, err := a.qqAPI.GetLoginInfo(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Could not read QQ login info; the gateway may still be starting")
		return
	}
	a.logger.WithFields(logrus.Fields{
		"self_id":  privacy.MaskID(info.UserID.Int64()),
		"nickname": info.Nickname,
	}).Info("Connected to QQ gateway")
}

// Status implements StatusProvider
func (a *App) Status() Status {
	stats := a.store.Stats()
	receivers := make(map[string]bool, len(a.receivers))
	for _, r := range a.receivers {
		receivers[string(r.Name())] = r.Connected()
	}
	breakers := make([]circuitbreaker.Stats, 0, len(a.breakers))
	for _, cb := range a.breakers {
		breakers = append(breakers, cb.GetStats())
	}
	return Status{
		Version:      Version,
		Uptime:       time.Since(a.startedAt).Round(time.Second).String(),
		Routes:       a.channels.RouteCount(),
		Correlations: stats.Records,
		PendingEcho:  stats.PendingEchoes,
		CachedFiles:  stats.CachedFiles,
		InFlight:     a.dispatcher.InFlight(),
		Receivers:    receivers,
		Breakers:     breakers,
	}
}

func printRoutes(w io.Writer, cfg *models.Config) error {
	channels, err := service.NewChannelManager(cfg.Forward)
	if err != nil {
		return fmt.Errorf("invalid forwarding routes: %w", err)
	}

	fmt.Fprintf(w, "Configuration OK: %d routes\n", channels.RouteCount())
	for _, route := range channels.Routes() {
		fmt.Fprintf(w, "  qq %s <-> telegram %d\n", route.QQ, route.Telegram.ID)
	}
	for _, chatID := range cfg.Forward.Allow {
		fmt.Fprintf(w, "  telegram %d (commands only)\n", chatID)
	}
	return nil
}
