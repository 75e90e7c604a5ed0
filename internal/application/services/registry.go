package services

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// BreakerRegistry owns the one-breaker-per-dependency-name contract. It is
// constructed once at the composition root and passed to everything that
// wraps outbound calls, instead of hiding a mutable global. Instances are
// created on first access and never evicted. Process-local: each process
// keeps its own failure view of a dependency; synchronizing breaker state
// across a fleet would need consensus this design does not attempt.
type BreakerRegistry struct {
	defaults *BreakerConfig
	logger   *logrus.Logger

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

func NewBreakerRegistry(defaults *BreakerConfig, logger *logrus.Logger) *BreakerRegistry {
	return &BreakerRegistry{defaults: defaults, logger: logger, breakers: make(map[string]*CircuitBreaker)}
}

// Get returns the breaker for name, creating it with the registry defaults
// on first access.
func (r *BreakerRegistry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := NewCircuitBreaker(name, r.defaults, r.logger)
	r.breakers[name] = b
	return b
}

// Names returns the registered breaker names, for metrics export.
func (r *BreakerRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.breakers))
	for n := range r.breakers {
		names = append(names, n)
	}
	return names
}

// BulkheadRegistry is the bulkhead counterpart of BreakerRegistry: one
// process-local instance per resource name, created on first access.
type BulkheadRegistry struct {
	defaults *BulkheadConfig
	logger   *logrus.Logger

	mu        sync.Mutex
	bulkheads map[string]*Bulkhead
}

func NewBulkheadRegistry(defaults *BulkheadConfig, logger *logrus.Logger) *BulkheadRegistry {
	return &BulkheadRegistry{defaults: defaults, logger: logger, bulkheads: make(map[string]*Bulkhead)}
}

// Get returns the bulkhead for name, creating it with the registry defaults
// on first access.
func (r *BulkheadRegistry) Get(name string) *Bulkhead {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.bulkheads[name]; ok {
		return h
	}
	h := NewBulkhead(name, r.defaults, r.logger)
	r.bulkheads[name] = h
	return h
}
