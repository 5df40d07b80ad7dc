package constants

// Default rate limiting configuration
const (
	DefaultRateLimitPerHour   = 100
	DefaultRateLimitWindowMin = 60
	RateLimitKeyPrefix        = "ratelimit:"
)

// Default dispatch configuration
const (
	DefaultDispatchPacingMs     = 1200
	DefaultGatewayTimeoutSec    = 30
	DefaultConnectPollInitialMs = 500
	DefaultConnectPollMaxSec    = 5
	DefaultConnectPollAttempts  = 12
)

// Default server configuration
const (
	DefaultServerPort            = 8084
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
)

// Phone number normalization. Local numbers are Nigerian MSISDNs: an
// 11-digit number with a leading zero maps to the 234 country-code form.
const (
	LocalNumberDigits = 11
	CountryCodePrefix = "234"
)

// Privacy settings for log output
const (
	DefaultPhoneMaskLength = 4
	DefaultMessageIDLength = 8
)

// Encryption parameters for at-rest recipient data
const (
	EncryptionSalt       = "smartflow-audit-salt-v1"
	EncryptionLookupSalt = "smartflow-lookup-salt-v1"
)
