// Package asynchook moves hook callbacks off the request path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    RemoteOpEvery:     10, // ~every 10th remote failure
//	    FrameDroppedEvery: 100,
//	})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
// Events are dropped when the queue is full.
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/quizgate"
)

type Hooks struct {
	inner   quizgate.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

var _ quizgate.Hooks = (*Hooks)(nil)

func New(inner quizgate.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports events lost to a full queue.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if h.closed.Load() {
		return
	}
	defer func() { _ = recover() }() // send on closed queue during shutdown
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) RemoteDown(err error)  { h.try(func() { h.inner.RemoteDown(err) }) }
func (h *Hooks) RemoteRestored()       { h.try(func() { h.inner.RemoteRestored() }) }
func (h *Hooks) LocalEvicted(k string) { h.try(func() { h.inner.LocalEvicted(k) }) }
func (h *Hooks) CorruptEntry(tier, k string) {
	h.try(func() { h.inner.CorruptEntry(tier, k) })
}
func (h *Hooks) RemoteOpFailed(op, k string, err error) {
	h.try(func() { h.inner.RemoteOpFailed(op, k, err) })
}
func (h *Hooks) UpstreamRetry(svc string, n int, wait time.Duration, err error) {
	h.try(func() { h.inner.UpstreamRetry(svc, n, wait, err) })
}
func (h *Hooks) BranchFailed(handler, branch string, err error) {
	h.try(func() { h.inner.BranchFailed(handler, branch, err) })
}
func (h *Hooks) FrameDropped(conn, event string) {
	h.try(func() { h.inner.FrameDropped(conn, event) })
}
