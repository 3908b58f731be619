package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/quizgate"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	RemoteOpEvery     uint64
	FrameDroppedEvery uint64
	BranchFailedEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	remoteOpCtr atomic.Uint64
	droppedCtr  atomic.Uint64
	branchCtr   atomic.Uint64
}

var _ quizgate.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) RemoteDown(err error) {
	if h.l == nil {
		return
	}
	h.l.Error("quizgate.remote_down", "err", err)
}

func (h *Hooks) RemoteRestored() {
	if h.l == nil {
		return
	}
	h.l.Info("quizgate.remote_restored")
}

func (h *Hooks) RemoteOpFailed(op, key string, err error) {
	if h.l == nil || !sample(h.opts.RemoteOpEvery, &h.remoteOpCtr) {
		return
	}
	h.l.Warn("quizgate.remote_op_failed",
		"op", op,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) LocalEvicted(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("quizgate.local_evicted", "key", h.redact(key))
}

func (h *Hooks) CorruptEntry(tier, key string) {
	if h.l == nil {
		return
	}
	h.l.Warn("quizgate.corrupt_entry",
		"tier", tier,
		"key", h.redact(key))
}

func (h *Hooks) UpstreamRetry(service string, attempt int, wait time.Duration, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("quizgate.upstream_retry",
		"service", service,
		"attempt", attempt,
		"wait", wait,
		"err", err)
}

func (h *Hooks) BranchFailed(handler, branch string, err error) {
	if h.l == nil || !sample(h.opts.BranchFailedEvery, &h.branchCtr) {
		return
	}
	h.l.Warn("quizgate.branch_failed",
		"handler", handler,
		"branch", branch,
		"err", err)
}

func (h *Hooks) FrameDropped(connID, event string) {
	if h.l == nil || !sample(h.opts.FrameDroppedEvery, &h.droppedCtr) {
		return
	}
	h.l.Warn("quizgate.frame_dropped",
		"conn", connID,
		"event", event)
}
