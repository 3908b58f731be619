package upstream

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/unkn0wn-root/quizgate"
)

// Policy is a retry combinator around any upstream operation.
type Policy struct {
	MaxAttempts int                             // total attempts, first included; <= 0 => 3
	Backoff     func(attempt int) time.Duration // wait after failed attempt n (1-based); nil => Linear(1s)
	Retryable   func(error) bool                // nil => IsTransient
	Timeout     time.Duration                   // per attempt; <= 0 => 10s

	// OnRetry is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: quizgate.DefaultMaxAttempts,
		Backoff:     Linear(quizgate.DefaultBackoffStep),
		Retryable:   IsTransient,
		Timeout:     quizgate.DefaultUpstreamTimeout,
	}
}

// Linear waits step*attempt: 1s, 2s, 3s... for step=1s.
func Linear(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration { return step * time.Duration(attempt) }
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = d.Backoff
	}
	if p.Retryable == nil {
		p.Retryable = d.Retryable
	}
	if p.Timeout <= 0 {
		p.Timeout = d.Timeout
	}
	return p
}

// attemptBackOff adapts an attempt-indexed schedule to backoff.BackOff.
type attemptBackOff struct {
	next func(int) time.Duration
	n    int
}

func (b *attemptBackOff) NextBackOff() time.Duration {
	b.n++
	return b.next(b.n)
}

func (b *attemptBackOff) Reset() { b.n = 0 }

// Retry runs op under p and returns its value, the number of attempts made and
// the last error. Each attempt gets its own context bounded by p.Timeout, so op
// must finish reading whatever it needs before returning.
func Retry[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, int, error) {
	p = p.normalized()
	attempts := 0

	v, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		actx, cancel := context.WithTimeout(ctx, p.Timeout)
		defer cancel()
		v, err := op(actx)
		if err != nil && !p.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(&attemptBackOff{next: p.Backoff}),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if p.OnRetry != nil {
				p.OnRetry(attempts, wait, err)
			}
		}),
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	return v, attempts, err
}
