package upstream

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/unkn0wn-root/quizgate"
)

type Class int

const (
	ClassUnknown     Class = iota
	ClassTransient         // connection refused/reset/aborted; retried
	ClassTimeout           // attempt deadline exceeded; never retried
	ClassApplication       // upstream answered non-2xx; propagated as is
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassTimeout:
		return "timeout"
	case ClassApplication:
		return "application"
	default:
		return "unknown"
	}
}

func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	var app *quizgate.UpstreamError
	if errors.As(err, &app) {
		return ClassApplication
	}
	var te *quizgate.TimeoutError
	if errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ClassTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return ClassTransient
	}
	return ClassUnknown
}

// IsTransient is the default retry predicate.
func IsTransient(err error) bool { return Classify(err) == ClassTransient }
