package retry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder collects the sleep durations a policy requested.
type recorder struct {
	slept []time.Duration
}

func (r *recorder) sleep(d time.Duration) { r.slept = append(r.slept, d) }

func TestDoFirstAttemptSucceeds(t *testing.T) {
	rec := &recorder{}
	p := Policy{MaxAttempts: 5, Backoff: Linear(40 * time.Millisecond), Sleep: rec.sleep}

	calls := 0
	err := p.Do(func(attempt int) error {
		calls++
		require.Equal(t, calls, attempt)
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Empty(t, rec.slept, "no sleep before the first attempt")
}

func TestDoRecoversWithLinearBackoff(t *testing.T) {
	rec := &recorder{}
	p := Policy{MaxAttempts: 5, Backoff: Linear(40 * time.Millisecond), Sleep: rec.sleep}

	calls := 0
	err := p.Do(func(attempt int) error {
		calls++
		if attempt < 3 {
			return fmt.Errorf("attempt %d failed", attempt)
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, []time.Duration{40 * time.Millisecond, 80 * time.Millisecond}, rec.slept)
}

func TestDoExhaustionJoinsFailures(t *testing.T) {
	rec := &recorder{}
	p := Policy{MaxAttempts: 2, Backoff: Linear(25 * time.Millisecond), Sleep: rec.sleep}

	first := errors.New("first failure")
	second := errors.New("second failure")
	fails := []error{first, second}

	err := p.Do(func(attempt int) error { return fails[attempt-1] })

	require.Error(t, err)
	require.ErrorIs(t, err, first)
	require.ErrorIs(t, err, second)
	require.Equal(t, []time.Duration{25 * time.Millisecond}, rec.slept)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Policy{}.Do(func(int) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestLinear(t *testing.T) {
	backoff := Linear(25 * time.Millisecond)
	require.Equal(t, 25*time.Millisecond, backoff(1))
	require.Equal(t, 50*time.Millisecond, backoff(2))
	require.Equal(t, 100*time.Millisecond, backoff(4))
}
