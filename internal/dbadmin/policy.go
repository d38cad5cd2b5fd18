package dbadmin

import "time"

// RetryPolicy configures retries of idempotent remote reads.
type RetryPolicy struct {
	MaxRetries    int           `json:"max_retries"    yaml:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"  yaml:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"      yaml:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor"`
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    2,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// MutationLimits bounds in-flight remote mutations issued by the manager.
type MutationLimits struct {
	GlobalMax   int `json:"global_max"   yaml:"max_in_flight"`
	PerDatabase int `json:"per_database" yaml:"per_database"`
}
