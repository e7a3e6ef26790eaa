package constants

import "time"

// Centralized default values for timeouts, intervals, and related settings.
// These provide sane defaults; environment/config may override where supported.

const (
	// Database
	DBReadTimeoutDefault  = 8 * time.Second
	DBWriteTimeoutDefault = 6 * time.Second

	// Google Maps geocoder
	GeocodeOperationTimeout  = 10 * time.Second
	GeocodeOpenFor           = 30 * time.Second
	GeocodeSlowCallThreshold = 1500 * time.Millisecond
	GeocodeRateBurst         = 5

	// Duplicate reviewer (OpenAI)
	ReviewerDefaultAPITimeout = 60 * time.Second
	ReviewerOperationTimeout  = 50 * time.Second
	ReviewerOpenFor           = 45 * time.Second
	ReviewerSlowCallThreshold = 20 * time.Second

	// Events store SQL operations
	EventsSQLTimeoutDefault = 5 * time.Second

	// App shutdown
	GracefulShutdownTimeoutDefault = 10 * time.Second

	// Circuit breaker rate thresholds
	CircuitFailureRate          = 0.6
	CircuitSlowCallRate         = 0.7
	ReviewerCircuitFailureRate  = 0.5
	ReviewerCircuitSlowCallRate = 0.5
)
