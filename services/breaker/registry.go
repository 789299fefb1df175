package breaker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the circuit state of a single provider
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Decision is the outcome of asking the registry for permission to call
type Decision int

const (
	// Permit means the breaker is closed; the call may proceed.
	Permit Decision = iota
	// Probe means the half-open probe slot was acquired; the caller must
	// report an outcome.
	Probe
	// Reject means the breaker is open, or half-open with the probe slot
	// already taken. No upstream attempt may be made.
	Reject
)

// Outcome is what a caller reports back after a permitted or probe call
type Outcome int

const (
	// Success closes the circuit (or resets the failure count).
	Success Outcome = iota
	// Failure counts toward opening the circuit.
	Failure
	// Abort releases the probe slot without a state transition. Used when
	// the call never reached the provider (caller-side cancellation), so
	// the breaker is neither penalized nor rewarded.
	Abort
)

// Config holds circuit breaker tuning
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	FailureThreshold int

	// Cooldown is how long an open circuit waits before granting a
	// half-open probe. Evaluated lazily on the next Allow; no background
	// timer runs.
	Cooldown time.Duration
}

// DefaultConfig returns the default breaker configuration
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// state is the per-provider state machine. All fields are guarded by the
// registry mutex.
type state struct {
	current             State
	consecutiveFailures int
	openedAt            time.Time
	probeInFlight       bool
}

// Registry owns one circuit breaker per provider identity. State is shared
// across all concurrent requests targeting a provider and lives for the
// process lifetime; every breaker starts closed.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*state
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewRegistry creates a new circuit breaker registry
func NewRegistry(config Config, logger *zap.Logger) *Registry {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultConfig().Cooldown
	}
	return &Registry{
		breakers: make(map[string]*state),
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Allow asks whether a call to the provider may proceed. A Probe decision
// acquires the single half-open probe slot atomically with the state read;
// callers receiving Permit or Probe must report an outcome. Prefer Execute,
// which binds the two together.
func (r *Registry) Allow(provider string) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.get(provider)
	switch s.current {
	case StateClosed:
		return Permit

	case StateOpen:
		if r.now().Sub(s.openedAt) < r.config.Cooldown {
			return Reject
		}
		// Cooldown elapsed: this caller takes the single probe slot.
		s.current = StateHalfOpen
		s.probeInFlight = true
		r.logger.Info("circuit breaker half-open, granting probe",
			zap.String("provider", provider))
		return Probe

	case StateHalfOpen:
		if s.probeInFlight {
			return Reject
		}
		s.probeInFlight = true
		return Probe
	}
	return Reject
}

// ReportOutcome applies the transition table for the provider's breaker.
// It must be called exactly once after every Permit or Probe decision.
func (r *Registry) ReportOutcome(provider string, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.get(provider)
	switch s.current {
	case StateHalfOpen:
		s.probeInFlight = false
		switch outcome {
		case Success:
			s.current = StateClosed
			s.consecutiveFailures = 0
			r.logger.Info("circuit breaker closed after successful probe",
				zap.String("provider", provider))
		case Failure:
			s.current = StateOpen
			s.openedAt = r.now()
			r.logger.Warn("circuit breaker reopened after failed probe",
				zap.String("provider", provider))
		case Abort:
			// The probe never reached the provider; fall back to open
			// without refreshing openedAt so the next caller may retry
			// the probe immediately.
			s.current = StateOpen
		}

	case StateClosed:
		switch outcome {
		case Success:
			s.consecutiveFailures = 0
		case Failure:
			s.consecutiveFailures++
			if s.consecutiveFailures >= r.config.FailureThreshold {
				s.current = StateOpen
				s.openedAt = r.now()
				r.logger.Warn("circuit breaker opened",
					zap.String("provider", provider),
					zap.Int("consecutive_failures", s.consecutiveFailures))
			}
		}

	case StateOpen:
		// Late outcome from a call permitted before the circuit opened.
		// The circuit is already open; nothing to apply.
	}
}

// ErrOpen is returned by Execute when the breaker rejects the call
type ErrOpen struct {
	Provider string
}

func (e *ErrOpen) Error() string {
	return "circuit breaker open for provider " + e.Provider
}

// Execute runs fn under the breaker for the provider. It guarantees an
// outcome is reported on every exit path, including panics: a panic counts
// as a failure and is re-raised. classify translates fn's error into the
// breaker outcome, letting callers exempt application-level errors from
// the failure count. A nil classify treats any non-nil error as Failure.
func (r *Registry) Execute(provider string, classify func(error) Outcome, fn func() error) error {
	decision := r.Allow(provider)
	if decision == Reject {
		return &ErrOpen{Provider: provider}
	}

	reported := false
	defer func() {
		if !reported {
			// fn panicked; count it as a provider failure.
			r.ReportOutcome(provider, Failure)
		}
	}()

	err := fn()

	outcome := Failure
	if err == nil {
		outcome = Success
	} else if classify != nil {
		outcome = classify(err)
	}
	reported = true
	r.ReportOutcome(provider, outcome)
	return err
}

// Snapshot returns the current state of a provider's breaker for
// observability. Breakers are created on first use, so unknown providers
// report closed.
func (r *Registry) Snapshot(provider string) (State, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.get(provider)
	return s.current, s.consecutiveFailures
}

// get returns the breaker for the provider, creating it closed if absent.
// Caller must hold r.mu.
func (r *Registry) get(provider string) *state {
	s, ok := r.breakers[provider]
	if !ok {
		s = &state{current: StateClosed}
		r.breakers[provider] = s
	}
	return s
}
