// Package retry implements the bounded retry policies used by certificate
// import. Policies carry their own sleep function so tests run without
// real delays.
package retry

import (
	"errors"
	"time"
)

// Policy describes a bounded retry loop.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Backoff returns the delay before the given attempt (1-based).
	// The first attempt runs immediately; Backoff is consulted for
	// attempts 2..MaxAttempts.
	Backoff func(attempt int) time.Duration

	// Sleep blocks for the given duration. Defaults to time.Sleep.
	Sleep func(d time.Duration)
}

// Linear returns a backoff of step multiplied by the attempt number.
func Linear(step time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		return step * time.Duration(attempt)
	}
}

// Do runs fn until it succeeds or the attempts are exhausted.
// On exhaustion it returns all accumulated failures joined together.
func (p Policy) Do(fn func(attempt int) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var failures []error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && p.Backoff != nil {
			sleep(p.Backoff(attempt - 1))
		}
		if err := fn(attempt); err != nil {
			failures = append(failures, err)
			continue
		}
		return nil
	}
	return errors.Join(failures...)
}
