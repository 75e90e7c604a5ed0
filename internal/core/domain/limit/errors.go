package limit

import (
	"fmt"
	"time"
)

// RateLimitExceededError reports that an identifier exhausted its quota.
// Recoverable: the caller can wait RetryAfter and try again.
type RateLimitExceededError struct {
	RetryAfter time.Duration
	Limit      int
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit of %d exceeded, retry after %s", e.Limit, e.RetryAfter)
}

// CircuitOpenError reports that a breaker is OPEN and no fallback was
// supplied. The dependency is known-bad; callers should not retry immediately.
type CircuitOpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open", e.Name)
}

// BulkheadFullError reports that a resource's concurrency and queue capacity
// are both exhausted; the call was rejected without queuing.
type BulkheadFullError struct {
	Name string
}

func (e *BulkheadFullError) Error() string {
	return fmt.Sprintf("bulkhead %q is full", e.Name)
}

// StoreUnavailableError wraps a shared-store failure. It never reaches
// callers of the rate limiters: strategies convert it to a fail-open
// decision at the store boundary and log a warning.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("state store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }
