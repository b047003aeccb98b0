package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"qtbridge/internal/constants"
	"qtbridge/internal/facemap"
	"qtbridge/internal/models"
	"qtbridge/internal/security"
	"qtbridge/internal/tracing"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingQQWSURL      = models.ConfigError{Message: "missing QQ websocket URL (qq.ws_url)"}
	ErrMissingQQHTTPURL    = models.ConfigError{Message: "missing QQ HTTP API URL (qq.http_url)"}
	ErrMissingTelegramBot  = models.ConfigError{Message: "missing Telegram bot token (telegram.token or QTBRIDGE_TELEGRAM_TOKEN)"}
	ErrNoForwardingRoutes  = models.ConfigError{Message: "forward.groups or forward.users must contain at least one route"}
	ErrInvalidRetryAttempt = models.ConfigError{Message: "retry.max_attempts must be at least 1"}
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

// Default returns a configuration with every optional field filled in.
// Files and environment variables are applied on top of it.
func Default() *models.Config {
	return &models.Config{
		LogLevel:          "info",
		LogFormat:         "text",
		ReconnectDelaySec: constants.DefaultReconnectDelaySec,
		QQ: models.QQConfig{
			TimeoutSec:     constants.DefaultQQTimeoutSec,
			ShowSenderName: true,
		},
		Telegram: models.TelegramConfig{
			APIURL:         constants.DefaultTelegramAPIURL,
			PollTimeoutSec: constants.DefaultTelegramPollTimeout,
		},
		Recall: models.RecallConfig{Enabled: true},
		Edit:   models.EditConfig{DeleteOnlyPrefix: constants.DefaultDeleteOnlyPrefix},
		Echo:   models.EchoConfig{WindowSec: constants.DefaultEchoWindowSec},
		Retry: models.RetryConfig{
			MaxAttempts: constants.DefaultRetryMaxAttempts,
			DelayMs:     constants.DefaultRetryDelayMs,
		},
		Commands: models.CommandsConfig{ChatID: constants.DefaultChatIDCommand},
		Correlation: models.CorrelationConfig{
			MaxRecords:         constants.DefaultMaxCorrelations,
			MaxAgeHours:        constants.DefaultCorrelationMaxAgeHours,
			CleanupIntervalMin: constants.DefaultCleanupIntervalMin,
		},
		Labels:  DefaultLabels(),
		Server:  models.ServerConfig{Port: constants.DefaultServerPort},
		Tracing: tracing.DefaultTracingConfig(),
	}
}

func DefaultLabels() models.Labels {
	return models.Labels{
		Everyone:    constants.LabelEveryone,
		Image:       constants.LabelImage,
		Video:       constants.LabelVideo,
		Voice:       constants.LabelVoice,
		Forward:     constants.LabelForward,
		Document:    constants.LabelDocument,
		UnknownFace: constants.LabelUnknownFace,
		FileSize:    constants.LabelFileSize,
		FileName:    constants.LabelFileName,
	}
}

// LoadConfig reads a JSON or YAML file, applies QTBRIDGE_* environment
// overrides and validates the result.
func LoadConfig(path string) (*models.Config, error) {
	format, err := security.ValidateConfigPath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateConfigPath above
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	switch format {
	case security.FormatYAML:
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s config: %w", format, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults restores defaults for fields a file explicitly zeroed
func applyDefaults(c *models.Config) {
	if c.ReconnectDelaySec <= 0 {
		c.ReconnectDelaySec = constants.DefaultReconnectDelaySec
	}
	if c.QQ.TimeoutSec <= 0 {
		c.QQ.TimeoutSec = constants.DefaultQQTimeoutSec
	}
	if c.Telegram.APIURL == "" {
		c.Telegram.APIURL = constants.DefaultTelegramAPIURL
	}
	if c.Telegram.PollTimeoutSec <= 0 {
		c.Telegram.PollTimeoutSec = constants.DefaultTelegramPollTimeout
	}
	if c.Echo.WindowSec <= 0 {
		c.Echo.WindowSec = constants.DefaultEchoWindowSec
	}
	if c.Retry.DelayMs < 0 {
		c.Retry.DelayMs = constants.DefaultRetryDelayMs
	}
	if c.Commands.ChatID == "" {
		c.Commands.ChatID = constants.DefaultChatIDCommand
	}
	if c.Correlation.MaxRecords <= 0 {
		c.Correlation.MaxRecords = constants.DefaultMaxCorrelations
	}
	if c.Correlation.MaxAgeHours <= 0 {
		c.Correlation.MaxAgeHours = constants.DefaultCorrelationMaxAgeHours
	}
	if c.Correlation.CleanupIntervalMin <= 0 {
		c.Correlation.CleanupIntervalMin = constants.DefaultCleanupIntervalMin
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}

	defaults := DefaultLabels()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&c.Labels.Everyone, defaults.Everyone)
	fill(&c.Labels.Image, defaults.Image)
	fill(&c.Labels.Video, defaults.Video)
	fill(&c.Labels.Voice, defaults.Voice)
	fill(&c.Labels.Forward, defaults.Forward)
	fill(&c.Labels.Document, defaults.Document)
	fill(&c.Labels.UnknownFace, defaults.UnknownFace)
	fill(&c.Labels.FileSize, defaults.FileSize)
	fill(&c.Labels.FileName, defaults.FileName)
}

// Validate checks required fields. Route uniqueness is checked by the
// channel manager.
func Validate(c *models.Config) error {
	if c.QQ.WSURL == "" {
		return ErrMissingQQWSURL
	}
	if c.QQ.HTTPURL == "" {
		return ErrMissingQQHTTPURL
	}
	if c.Telegram.Token == "" {
		return ErrMissingTelegramBot
	}
	if !strings.HasSuffix(strings.TrimRight(c.Telegram.APIURL, "/"), "/bot") {
		return models.ConfigError{Message: fmt.Sprintf("telegram.api_url must end in /bot, got %q", c.Telegram.APIURL)}
	}
	if len(c.Forward.Groups) == 0 && len(c.Forward.Users) == 0 {
		return ErrNoForwardingRoutes
	}
	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidRetryAttempt
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return models.ConfigError{Message: fmt.Sprintf("invalid log_level %q", c.LogLevel)}
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return models.ConfigError{Message: fmt.Sprintf("invalid log_format %q (want text or json)", c.LogFormat)}
	}
	if !facemap.ValidFallback(c.Labels.UnknownFace) {
		return models.ConfigError{Message: fmt.Sprintf("labels.unknown_face %q must contain exactly one %%s and no other verbs", c.Labels.UnknownFace)}
	}
	if err := tracing.Validate(c.Tracing); err != nil {
		return models.ConfigError{Message: err.Error()}
	}
	return nil
}
