package models

// Config holds the application configuration. It is loaded once and passed
// explicitly to every component.
type Config struct {
	LogLevel          string `json:"log_level" yaml:"log_level" env:"QTBRIDGE_LOG_LEVEL"`
	LogFormat         string `json:"log_format" yaml:"log_format" env:"QTBRIDGE_LOG_FORMAT"`
	ReconnectDelaySec int    `json:"reconnect_delay_sec" yaml:"reconnect_delay_sec" env:"QTBRIDGE_RECONNECT_DELAY_SEC"`

	QQ          QQConfig          `json:"qq" yaml:"qq"`
	Telegram    TelegramConfig    `json:"telegram" yaml:"telegram"`
	Forward     ForwardConfig     `json:"forward" yaml:"forward"`
	Recall      RecallConfig      `json:"recall" yaml:"recall"`
	Edit        EditConfig        `json:"edit" yaml:"edit"`
	Echo        EchoConfig        `json:"echo" yaml:"echo"`
	Retry       RetryConfig       `json:"retry" yaml:"retry"`
	Commands    CommandsConfig    `json:"commands" yaml:"commands"`
	Correlation CorrelationConfig `json:"correlation" yaml:"correlation"`
	Faces       map[string]string `json:"faces" yaml:"faces"`
	Labels      Labels            `json:"labels" yaml:"labels"`
	Server      ServerConfig      `json:"server" yaml:"server"`
	Tracing     TracingConfig     `json:"tracing" yaml:"tracing"`
}

// QQConfig holds the OneBot gateway endpoints
type QQConfig struct {
	WSURL          string `json:"ws_url" yaml:"ws_url" env:"QTBRIDGE_QQ_WS_URL"`
	HTTPURL        string `json:"http_url" yaml:"http_url" env:"QTBRIDGE_QQ_HTTP_URL"`
	AccessToken    string `json:"access_token" yaml:"access_token" env:"QTBRIDGE_QQ_ACCESS_TOKEN"`
	TimeoutSec     int    `json:"timeout_sec" yaml:"timeout_sec"`
	ShowSenderName bool   `json:"show_sender_name" yaml:"show_sender_name"`
}

// TelegramConfig holds Bot API settings. APIURL ends in "/bot" like the
// public endpoint so a self-hosted server can be swapped in.
type TelegramConfig struct {
	Token          string `json:"token" yaml:"token" env:"QTBRIDGE_TELEGRAM_TOKEN"`
	APIURL         string `json:"api_url" yaml:"api_url" env:"QTBRIDGE_TELEGRAM_API_URL"`
	PollTimeoutSec int    `json:"poll_timeout_sec" yaml:"poll_timeout_sec"`
}

// ForwardConfig maps QQ scopes to Telegram chats. Allow lists extra
// Telegram chats that may use commands without being bridged.
type ForwardConfig struct {
	Groups map[int64]int64 `json:"groups" yaml:"groups"`
	Users  map[int64]int64 `json:"users" yaml:"users"`
	Allow  []int64         `json:"allow" yaml:"allow"`
}

type RecallConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" env:"QTBRIDGE_RECALL_ENABLED"`
}

type EditConfig struct {
	DeleteOnlyPrefix string `json:"delete_only_prefix" yaml:"delete_only_prefix"`
}

type EchoConfig struct {
	WindowSec int `json:"window_sec" yaml:"window_sec"`
}

// RetryConfig holds the outbound delivery policy
type RetryConfig struct {
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
	DelayMs     int `json:"delay_ms" yaml:"delay_ms"`
}

type CommandsConfig struct {
	ChatID string `json:"chat_id" yaml:"chat_id"`
}

// CorrelationConfig bounds the in-memory message mapping
type CorrelationConfig struct {
	MaxRecords         int `json:"max_records" yaml:"max_records"`
	MaxAgeHours        int `json:"max_age_hours" yaml:"max_age_hours"`
	CleanupIntervalMin int `json:"cleanup_interval_min" yaml:"cleanup_interval_min"`
}

// Labels are the user visible strings rendered for content that has no
// direct counterpart on the other side.
type Labels struct {
	Everyone    string `json:"everyone" yaml:"everyone"`
	Image       string `json:"image" yaml:"image"`
	Video       string `json:"video" yaml:"video"`
	Voice       string `json:"voice" yaml:"voice"`
	Forward     string `json:"forward" yaml:"forward"`
	Document    string `json:"document" yaml:"document"`
	UnknownFace string `json:"unknown_face" yaml:"unknown_face"`
	FileSize    string `json:"file_size" yaml:"file_size"`
	FileName    string `json:"file_name" yaml:"file_name"`
}

type ServerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Port    int  `json:"port" yaml:"port" env:"QTBRIDGE_SERVER_PORT"`
}

// TracingConfig contains OpenTelemetry configuration
type TracingConfig struct {
	ServiceName    string  `json:"service_name" yaml:"service_name"`
	ServiceVersion string  `json:"service_version" yaml:"service_version"`
	Environment    string  `json:"environment" yaml:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint" yaml:"otlp_endpoint" env:"QTBRIDGE_OTLP_ENDPOINT"`
	SampleRate     float64 `json:"sample_rate" yaml:"sample_rate"`
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	UseStdout      bool    `json:"use_stdout" yaml:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
