package resilience

import (
	"time"
)

// FromRetryConfig builds a RetryConfig from raw config values. Zero or
// negative inputs keep the defaults, so a config file only needs to set
// what it wants to change.
func FromRetryConfig(maxAttempts, waitSecs int, multiplier float64) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if waitSecs > 0 {
		cfg.InitialBackoff = time.Duration(waitSecs) * time.Second
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if multiplier > 0 {
		cfg.Multiplier = multiplier
	}
	if cfg.Multiplier == 1.0 {
		cfg.JitterFraction = 0
	}
	return cfg
}

// FromCircuitConfig builds a CircuitBreakerConfig from raw config values.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}
