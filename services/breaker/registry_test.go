package breaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return NewRegistry(DefaultConfig(), logger)
}

// advance replaces the registry clock with one offset into the future
func advance(r *Registry, d time.Duration) {
	base := time.Now()
	r.now = func() time.Time { return base.Add(d) }
}

func TestBreakerStartsClosed(t *testing.T) {
	r := newTestRegistry(t)

	assert.Equal(t, Permit, r.Allow("openai"))

	state, failures := r.Snapshot("openai")
	assert.Equal(t, StateClosed, state)
	assert.Equal(t, 0, failures)
}

func TestBreakerOpensAfterThresholdFailures(t *testing.T) {
	r := newTestRegistry(t)

	for i := 0; i < 5; i++ {
		require.Equal(t, Permit, r.Allow("anthropic"))
		r.ReportOutcome("anthropic", Failure)
	}

	// The very next Allow must reject without any upstream attempt.
	assert.Equal(t, Reject, r.Allow("anthropic"))

	state, _ := r.Snapshot("anthropic")
	assert.Equal(t, StateOpen, state)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	r := newTestRegistry(t)

	for i := 0; i < 4; i++ {
		r.Allow("openai")
		r.ReportOutcome("openai", Failure)
	}
	r.Allow("openai")
	r.ReportOutcome("openai", Success)

	_, failures := r.Snapshot("openai")
	assert.Equal(t, 0, failures)

	// Four more failures must not open the circuit after the reset.
	for i := 0; i < 4; i++ {
		r.Allow("openai")
		r.ReportOutcome("openai", Failure)
	}
	assert.Equal(t, Permit, r.Allow("openai"))
}

func TestOpenBreakerGrantsProbeAfterCooldown(t *testing.T) {
	r := newTestRegistry(t)

	for i := 0; i < 5; i++ {
		r.Allow("openai")
		r.ReportOutcome("openai", Failure)
	}
	assert.Equal(t, Reject, r.Allow("openai"))

	advance(r, 31*time.Second)

	assert.Equal(t, Probe, r.Allow("openai"))
}

func TestHalfOpenGrantsExactlyOneProbe(t *testing.T) {
	r := newTestRegistry(t)

	for i := 0; i < 5; i++ {
		r.Allow("openai")
		r.ReportOutcome("openai", Failure)
	}
	advance(r, 31*time.Second)

	const callers = 32
	var probes, rejects int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := r.Allow("openai")
			mu.Lock()
			defer mu.Unlock()
			switch d {
			case Probe:
				probes++
			case Reject:
				rejects++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, probes, "exactly one concurrent probe is ever granted")
	assert.Equal(t, callers-1, rejects)
}

func TestSuccessfulProbeClosesCircuit(t *testing.T) {
	r := newTestRegistry(t)

	for i := 0; i < 5; i++ {
		r.Allow("openai")
		r.ReportOutcome("openai", Failure)
	}
	advance(r, 31*time.Second)
	require.Equal(t, Probe, r.Allow("openai"))

	r.ReportOutcome("openai", Success)

	state, failures := r.Snapshot("openai")
	assert.Equal(t, StateClosed, state)
	assert.Equal(t, 0, failures)
	assert.Equal(t, Permit, r.Allow("openai"))
}

func TestFailedProbeReopensWithFreshTimestamp(t *testing.T) {
	r := newTestRegistry(t)

	for i := 0; i < 5; i++ {
		r.Allow("openai")
		r.ReportOutcome("openai", Failure)
	}
	advance(r, 31*time.Second)
	require.Equal(t, Probe, r.Allow("openai"))

	r.ReportOutcome("openai", Failure)

	// openedAt was refreshed, so another 31s from the original open is
	// not enough for a new probe.
	advance(r, 40*time.Second)
	assert.Equal(t, Reject, r.Allow("openai"))

	// A full cooldown after the failed probe grants one again.
	advance(r, 62*time.Second)
	assert.Equal(t, Probe, r.Allow("openai"))
}

func TestAbortedProbeReleasesSlotWithoutPenalty(t *testing.T) {
	r := newTestRegistry(t)

	for i := 0; i < 5; i++ {
		r.Allow("openai")
		r.ReportOutcome("openai", Failure)
	}
	advance(r, 31*time.Second)
	require.Equal(t, Probe, r.Allow("openai"))

	r.ReportOutcome("openai", Abort)

	// openedAt was not refreshed: the next caller may probe immediately.
	assert.Equal(t, Probe, r.Allow("openai"))
}

func TestBreakersAreIsolatedPerProvider(t *testing.T) {
	r := newTestRegistry(t)

	for i := 0; i < 5; i++ {
		r.Allow("anthropic")
		r.ReportOutcome("anthropic", Failure)
	}

	assert.Equal(t, Reject, r.Allow("anthropic"))
	assert.Equal(t, Permit, r.Allow("openai"), "a failing provider must not affect others")
}

func TestExecuteReportsSuccess(t *testing.T) {
	r := newTestRegistry(t)

	err := r.Execute("openai", nil, func() error { return nil })
	require.NoError(t, err)

	_, failures := r.Snapshot("openai")
	assert.Equal(t, 0, failures)
}

func TestExecuteReportsFailure(t *testing.T) {
	r := newTestRegistry(t)

	for i := 0; i < 5; i++ {
		err := r.Execute("openai", nil, func() error { return errors.New("upstream 500") })
		require.Error(t, err)
	}

	err := r.Execute("openai", nil, func() error {
		t.Fatal("fn must not run when the breaker rejects")
		return nil
	})

	var open *ErrOpen
	require.ErrorAs(t, err, &open)
	assert.Equal(t, "openai", open.Provider)
}

func TestExecuteClassifierExemptsApplicationErrors(t *testing.T) {
	r := newTestRegistry(t)
	badRequest := errors.New("upstream 400")
	classify := func(err error) Outcome {
		if errors.Is(err, badRequest) {
			return Success // application error: provider infrastructure is fine
		}
		return Failure
	}

	for i := 0; i < 10; i++ {
		_ = r.Execute("openai", classify, func() error { return badRequest })
	}

	state, failures := r.Snapshot("openai")
	assert.Equal(t, StateClosed, state)
	assert.Equal(t, 0, failures)
}

func TestExecuteReportsFailureOnPanic(t *testing.T) {
	r := newTestRegistry(t)

	assert.Panics(t, func() {
		_ = r.Execute("openai", nil, func() error { panic("adapter bug") })
	})

	_, failures := r.Snapshot("openai")
	assert.Equal(t, 1, failures, "a panicking call must still report a breaker outcome")
}

func TestConcurrentFailuresOpenOnce(t *testing.T) {
	r := newTestRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Allow("openai") == Permit {
				r.ReportOutcome("openai", Failure)
			}
		}()
	}
	wg.Wait()

	state, _ := r.Snapshot("openai")
	assert.Equal(t, StateOpen, state)
	assert.Equal(t, Reject, r.Allow("openai"))
}
