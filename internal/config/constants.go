package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout    = 60 * time.Second
	TutorRequestTimeout   = 30 * time.Second
	WorkerShutdownTimeout = 30 * time.Second
	TestTimeout           = 100 * time.Millisecond

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute

	// Session timeouts
	SessionMaxAge = 7 * 24 * time.Hour // 7 days

	// Worker timeouts
	WorkerCheckInterval     = 1 * time.Minute
	WorkerHeartbeatInterval = 30 * time.Second
)

// Session configuration constants
const (
	// Session settings
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS

	// Session name
	SessionName = "practicehub-session"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data:;"

	// Per-IP request budget for rate limited endpoints
	DefaultRateLimitPerMinute = 60

	// Sweep cadence for the in-process rate limiter and tutor cache
	RateLimitSweepInterval = 5 * time.Minute
)

// Selection constants
const (
	// Questions returned when the client does not ask for a count
	DefaultSelectionLimit = 10
)

// Tutor budget constants
const (
	DefaultTutorPromptBudget   = 2000
	DefaultTutorResponseBudget = 1500
	DefaultTutorCacheTTL       = 1 * time.Hour
)
