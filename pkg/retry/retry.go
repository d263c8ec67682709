// Package retry runs fallible external calls under a bounded exponential
// backoff policy. It keeps no state between calls; every invocation builds
// its own backoff sequence.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workflow-agent-be/pkg/apperror"

	goretry "github.com/sethvargo/go-retry"
)

// Attempt describes one invocation of the wrapped operation.
type Attempt struct {
	Stage   string
	Number  int // 1-based
	Err     error
	Elapsed time.Duration
}

// Hook observes every attempt, successful or not.
type Hook func(Attempt)

// Policy bounds how an operation is retried.
type Policy struct {
	Stage       string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      time.Duration
	Timeout     time.Duration // per attempt, 0 means none
	Retryable   func(error) bool
	OnAttempt   Hook
}

// WithHook returns a copy of the policy reporting attempts to h.
func (p Policy) WithHook(h Hook) Policy {
	p.OnAttempt = h
	return p
}

// WithStage returns a copy of the policy labelled with stage.
func (p Policy) WithStage(stage string) Policy {
	p.Stage = stage
	return p
}

// ExhaustedError is returned once the policy gives up. The cause chain of the
// last failure is preserved.
type ExhaustedError struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Stage, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// AttemptsOf reports how many attempts produced err, 0 if err did not come from Do.
func AttemptsOf(err error) int {
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		return ex.Attempts
	}
	return 0
}

// DefaultRetryable retries everything except validation failures and
// caller cancellation.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !apperror.Is(err, apperror.KindValidation)
}

func (p Policy) backoff() goretry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	b := goretry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = goretry.WithCappedDuration(p.MaxDelay, b)
	}
	if p.Jitter > 0 {
		b = goretry.WithJitter(p.Jitter, b)
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return goretry.WithMaxRetries(uint64(attempts-1), b)
}

// Do invokes op until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}

	var (
		result   T
		attempts int
		lastErr  error
	)

	err := goretry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempts++
		start := time.Now()
		actx, cancel := attemptCtx(ctx, p.Timeout)
		v, err := op(actx)
		cancel()
		if p.OnAttempt != nil {
			p.OnAttempt(Attempt{Stage: p.Stage, Number: attempts, Err: err, Elapsed: time.Since(start)})
		}
		if err != nil {
			lastErr = err
			// An attempt that hit its own deadline is retried; the caller's is not.
			attemptTimedOut := p.Timeout > 0 && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded)
			if attemptTimedOut || retryable(err) {
				return goretry.RetryableError(err)
			}
			return err
		}
		result = v
		return nil
	})
	if err == nil {
		return result, nil
	}

	var zero T
	// Cancellation while waiting between attempts surfaces as ctx.Err().
	if lastErr == nil || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
		return zero, err
	}
	return zero, &ExhaustedError{Stage: p.Stage, Attempts: attempts, Err: lastErr}
}

func attemptCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
