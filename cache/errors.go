package cache

import "fmt"

// InvalidateError reports which tier failed during a pattern invalidation.
// Keys deleted from the other tier stay deleted.
type InvalidateError struct {
	Pattern   string
	RemoteErr error
	LocalErr  error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.RemoteErr != nil && e.LocalErr != nil:
		return fmt.Sprintf("invalidate %q failed on both tiers: remote=%v; local=%v",
			e.Pattern, e.RemoteErr, e.LocalErr)
	case e.RemoteErr != nil:
		return fmt.Sprintf("invalidate %q: remote tier failed: %v", e.Pattern, e.RemoteErr)
	case e.LocalErr != nil:
		return fmt.Sprintf("invalidate %q: local tier failed: %v", e.Pattern, e.LocalErr)
	default:
		return fmt.Sprintf("invalidate %q: unknown error", e.Pattern)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.RemoteErr != nil {
		errs = append(errs, e.RemoteErr)
	}
	if e.LocalErr != nil {
		errs = append(errs, e.LocalErr)
	}
	return errs
}
