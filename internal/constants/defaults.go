package constants

// Transport defaults
const (
	DefaultReconnectDelaySec   = 5
	DefaultQQTimeoutSec        = 10
	DefaultTelegramAPIURL      = "https://api.telegram.org/bot"
	DefaultTelegramPollTimeout = 20
	DefaultServerPort          = 8085
)

// Delivery defaults
const (
	DefaultRetryMaxAttempts = 3
	DefaultRetryDelayMs     = 1000
	DefaultEchoWindowSec    = 8
	DefaultDeleteOnlyPrefix = "/del"
	DefaultChatIDCommand    = "/chatid"
)

// Correlation store defaults
const (
	DefaultMaxCorrelations        = 10000
	DefaultCorrelationMaxAgeHours = 72
	DefaultCleanupIntervalMin     = 30
	DefaultMemberCacheSize        = 2048
	DefaultMemberCacheMinutes     = 30
)

// Timeouts
const (
	DefaultGracefulShutdownSec    = 30
	DefaultServerReadTimeoutSec   = 15
	DefaultServerWriteTimeoutSec  = 15
	DefaultServerIdleTimeoutSec   = 60
	DefaultWebSocketReadLimitByte = 4 << 20
)

// Privacy settings
const (
	DefaultIDMaskLength = 4
)
