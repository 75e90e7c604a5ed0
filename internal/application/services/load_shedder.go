package services

import (
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"
)

// highPriority is the cutoff below which work may be shed under severe
// overload. Priorities at or above it are always admitted.
const highPriority = 5

// LoadShedder is the admission gate in front of everything else. Under
// severe overload it rejects low-priority work with a weighted coin flip
// rather than a hard cutoff, so rejected clients do not retry in lockstep.
// The "queue" is bookkeeping only: admitted requests run immediately, the
// counter just signals pressure to callers and metrics.
type LoadShedder struct {
	cfg    ShedderConfig
	logger *logrus.Logger

	mu     sync.Mutex
	active int
	queued int
	rng    *rand.Rand
}

// ShedderConfig groups load shedding parameters.
type ShedderConfig struct {
	MaxConcurrent   int
	MaxQueueSize    int
	ShedProbability float64
}

func NewLoadShedder(cfg *ShedderConfig, logger *logrus.Logger, seed int64) *LoadShedder {
	// Apply defaults
	c := ShedderConfig{MaxConcurrent: 100, MaxQueueSize: 50, ShedProbability: 0.5}
	if cfg != nil {
		if cfg.MaxConcurrent > 0 {
			c.MaxConcurrent = cfg.MaxConcurrent
		}
		if cfg.MaxQueueSize > 0 {
			c.MaxQueueSize = cfg.MaxQueueSize
		}
		if cfg.ShedProbability > 0 {
			c.ShedProbability = cfg.ShedProbability
		}
	}
	return &LoadShedder{cfg: c, logger: logger, rng: rand.New(rand.NewSource(seed))}
}

// Admit decides whether a request of the given priority may proceed. It
// returns a release func that MUST be called when the request finishes
// (success or client disconnect), and false when the request was shed.
func (s *LoadShedder) Admit(priority int) (release func(), admitted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active < s.cfg.MaxConcurrent {
		s.active++
		return s.releaseActive, true
	}

	if s.queued >= s.cfg.MaxQueueSize && priority < highPriority && s.rng.Float64() < s.cfg.ShedProbability {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"priority": priority, "active": s.active, "queued": s.queued}).Warn("shedding request under overload")
		}
		return nil, false
	}

	s.queued++
	return s.releaseQueued, true
}

func (s *LoadShedder) releaseActive() {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
}

func (s *LoadShedder) releaseQueued() {
	s.mu.Lock()
	s.queued--
	s.mu.Unlock()
}

// ActiveCount returns the number of requests admitted within the concurrency
// budget.
func (s *LoadShedder) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// QueuedCount returns the number of requests admitted over budget.
func (s *LoadShedder) QueuedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queued
}
