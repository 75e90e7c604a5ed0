package limit

import "time"

// Decision is the outcome of a rate-limit check for one identifier.
type Decision struct {
	Allowed   bool
	Remaining int
	// ResetIn is how long the caller should wait before the next attempt
	// can succeed. Zero when Allowed.
	ResetIn time.Duration
	// Limit is the effective request limit that produced this decision.
	// For the adaptive strategy this is the computed current limit.
	Limit int
}

// BucketState is the persisted token bucket for one (namespace, identifier).
// Tokens stays within [0, capacity]; the refill clock advances on every
// check, allowed or not.
type BucketState struct {
	Tokens       float64   `json:"tokens"`
	LastRefillAt time.Time `json:"last_refill_at"`
}

// WindowState is the persisted sliding window for one (namespace, identifier):
// timestamps (unix milliseconds) of admitted requests, pruned to the trailing
// window on every check.
type WindowState struct {
	Timestamps []int64 `json:"timestamps"`
}

// SystemMetrics carries externally computed load signals consumed by the
// adaptive limiter. The engine never derives these itself.
type SystemMetrics struct {
	ErrorRate       float64
	AvgResponseTime time.Duration
}
