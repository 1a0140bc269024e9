package publisher

import (
	"context"
	"time"
)

// stepRunner runs the HTTP steps of one publish. Every step gets at most
// one retry after a transient failure.
type stepRunner struct {
	backoff time.Duration
	retries int
}

func newStepRunner(backoff time.Duration) *stepRunner {
	return &stepRunner{backoff: backoff}
}

func (s *stepRunner) run(ctx context.Context, step func(ctx context.Context) error) error {
	err := step(ctx)
	if err == nil || !isTransient(err) {
		return err
	}

	timer := time.NewTimer(s.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	s.retries++
	return step(ctx)
}
