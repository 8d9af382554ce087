package ports

import "errors"

// Standard application-level errors.
// Adapters and core components wrap underlying errors with these sentinels so
// callers can classify failures with errors.Is.
var (
	// User errors: rejected immediately, never retried.
	ErrInvalidInterval  = errors.New("interval is not one of the supported set")
	ErrInvalidRange     = errors.New("time range is malformed (start must not be after end)")
	ErrInvalidStrategy  = errors.New("unknown strategy identifier")
	ErrInsufficientData = errors.New("not enough historical bars for the strategy warm-up")
	ErrInvalidRequest   = errors.New("invalid request parameters or format")

	// Transient/infrastructure errors.
	ErrUpstreamUnavailable = errors.New("upstream exchange is unavailable (retry budget exhausted)")
	ErrConnectionFailed    = errors.New("failed to connect to the exchange")
	ErrRateLimited         = errors.New("API rate limit exceeded")
	ErrTimeout             = errors.New("operation timed out")
	ErrContextCanceled     = errors.New("operation canceled via context")

	// General.
	ErrNotFound = errors.New("resource not found")
	ErrUnknown  = errors.New("unknown error occurred")

	// Database.
	ErrQueryFailed = errors.New("database query failed")
)
