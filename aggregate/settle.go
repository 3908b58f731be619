package aggregate

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Outcome is the settled result of one fan-out branch.
type Outcome[T any] struct {
	Value T
	Err   error
}

func (o *Outcome[T]) OK() bool { return o.Err == nil }

// Settle runs branches concurrently and waits for all of them. A failing
// branch never cancels its siblings; each one reports through its Outcome.
type Settle struct {
	g errgroup.Group
}

// Go starts fn as a branch of s. The returned Outcome is valid after s.Wait.
func Go[T any](s *Settle, fn func() (T, error)) *Outcome[T] {
	out := new(Outcome[T])
	s.g.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				out.Err = fmt.Errorf("branch panic: %v", r)
			}
		}()
		out.Value, out.Err = fn()
		return nil
	})
	return out
}

func (s *Settle) Wait() { _ = s.g.Wait() }
