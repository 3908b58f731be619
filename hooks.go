package quizgate

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// They are called on request hot paths.
type Hooks interface {
	// The remote cache tier was marked disconnected after a transport error.
	RemoteDown(err error)
	// The remote cache tier answered again (ping or new connection).
	RemoteRestored()
	// A remote tier operation failed; op ∈ {"get", "set", "del", "scan"}.
	RemoteOpFailed(op, key string, err error)

	// The local tier dropped its oldest entry to make room.
	LocalEvicted(key string)
	// A stored entry could not be decoded and was deleted; tier ∈ {"remote", "local"}.
	CorruptEntry(tier, key string)

	// A forwarded request is about to be retried after wait.
	UpstreamRetry(service string, attempt int, wait time.Duration, err error)
	// A non-primary fan-out branch failed and was defaulted.
	BranchFailed(handler, branch string, err error)

	// A realtime frame was dropped because the connection send buffer was full.
	FrameDropped(connID, event string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) RemoteDown(error)                                {}
func (NopHooks) RemoteRestored()                                 {}
func (NopHooks) RemoteOpFailed(string, string, error)            {}
func (NopHooks) LocalEvicted(string)                             {}
func (NopHooks) CorruptEntry(string, string)                     {}
func (NopHooks) UpstreamRetry(string, int, time.Duration, error) {}
func (NopHooks) BranchFailed(string, string, error)              {}
func (NopHooks) FrameDropped(string, string)                     {}
