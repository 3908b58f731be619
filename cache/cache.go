package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/quizgate"
	c "github.com/unkn0wn-root/quizgate/codec"
	"github.com/unkn0wn-root/quizgate/internal/util"
	"github.com/unkn0wn-root/quizgate/internal/wire"
	pr "github.com/unkn0wn-root/quizgate/provider"
)

const (
	tierRemote = "remote"
	tierLocal  = "local"
)

var ErrNoLocal = errors.New("cache: local provider is required")

// TwoTier reads remote first and falls back to the local tier; writes go to
// both. It never fails a read: tier errors are logged and counted as misses.
type TwoTier struct {
	remote   pr.Provider
	local    pr.Provider
	codec    c.Codec[json.RawMessage]
	log      quizgate.Logger
	hooks    quizgate.Hooks
	enabled  bool
	ttl      time.Duration
	opTO     time.Duration
	related  []string
	keyLimit int
	now      func() time.Time

	hits, misses, sets, deletes     atomic.Int64
	remoteHits, localHits, remoteErr atomic.Int64
}

func New(opts Options) (*TwoTier, error) {
	if opts.Local == nil {
		return nil, ErrNoLocal
	}
	t := &TwoTier{
		remote:   opts.Remote,
		local:    opts.Local,
		codec:    opts.Codec,
		log:      opts.Logger,
		hooks:    opts.Hooks,
		enabled:  !opts.Disabled,
		ttl:      util.Coalesce(opts.DefaultTTL, quizgate.DefaultCacheTTL),
		opTO:     util.Coalesce(opts.OpTimeout, 2*time.Second),
		related:  opts.RelatedPrefixes,
		keyLimit: util.Coalesce(opts.StatsKeyLimit, 100),
		now:      opts.Now,
	}
	if t.codec == nil {
		t.codec = c.JSON{}
	}
	if t.log == nil {
		t.log = quizgate.NopLogger{}
	}
	if t.hooks == nil {
		t.hooks = quizgate.NopHooks{}
	}
	if t.related == nil {
		t.related = quizgate.RelatedPrefixes
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t, nil
}

func (t *TwoTier) Enabled() bool { return t.enabled }

// DefaultTTL is the expiry applied by Set when ttl <= 0.
func (t *TwoTier) DefaultTTL() time.Duration { return t.ttl }

func (t *TwoTier) Close(ctx context.Context) error {
	var errs []error
	if t.remote != nil {
		if err := t.remote.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := t.local.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (t *TwoTier) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	if !t.enabled {
		return nil, false
	}
	if t.remoteUp() {
		rctx, cancel := context.WithTimeout(ctx, t.opTO)
		v, ok := t.read(rctx, t.remote, tierRemote, key)
		cancel()
		if ok {
			t.hits.Add(1)
			t.remoteHits.Add(1)
			return v, true
		}
	}
	if v, ok := t.read(ctx, t.local, tierLocal, key); ok {
		t.hits.Add(1)
		t.localHits.Add(1)
		return v, true
	}
	t.misses.Add(1)
	return nil, false
}

// GetInto decodes a hit into dst. A hit that does not fit dst is a miss.
func (t *TwoTier) GetInto(ctx context.Context, key string, dst any) bool {
	raw, ok := t.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		t.log.Warn("cached document does not match target", quizgate.Fields{"key": key, "err": err})
		return false
	}
	return true
}

// Set stores value (JSON-marshalled) in both tiers. ttl <= 0 selects the
// default TTL. Only an unencodable value is an error; tier failures are logged.
func (t *TwoTier) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !t.enabled {
		return nil
	}
	if ttl <= 0 {
		ttl = t.ttl
	}
	raw, err := marshal(value)
	if err != nil {
		return err
	}
	payload, err := t.codec.Encode(raw)
	if err != nil {
		return err
	}
	b := wire.Encode(t.now(), ttl, payload)

	if t.remoteUp() {
		rctx, cancel := context.WithTimeout(ctx, t.opTO)
		ok, err := t.remote.Set(rctx, key, b, 1, ttl)
		cancel()
		switch {
		case err != nil:
			t.remoteFailed("set", key, err)
		case !ok:
			t.log.Debug("remote set rejected", quizgate.Fields{"key": key})
		}
	}
	if ok, err := t.local.Set(ctx, key, b, 1, ttl); err != nil || !ok {
		t.log.Warn("local set failed", quizgate.Fields{"key": key, "ok": ok, "err": err})
	}
	t.sets.Add(1)
	return nil
}

// Delete removes key from both tiers (best effort).
func (t *TwoTier) Delete(ctx context.Context, key string) {
	if t.remoteUp() {
		rctx, cancel := context.WithTimeout(ctx, t.opTO)
		if err := t.remote.Del(rctx, key); err != nil {
			t.remoteFailed("del", key, err)
		}
		cancel()
	}
	_ = t.local.Del(ctx, key)
	t.deletes.Add(1)
}

func (t *TwoTier) read(ctx context.Context, p pr.Provider, tier, key string) (json.RawMessage, bool) {
	b, ok, err := p.Get(ctx, key)
	if err != nil {
		if tier == tierRemote {
			t.remoteFailed("get", key, err)
		} else {
			t.log.Warn("local get failed", quizgate.Fields{"key": key, "err": err})
		}
		return nil, false
	}
	if !ok {
		return nil, false
	}
	e, err := wire.Decode(b)
	if err != nil {
		t.corrupt(ctx, p, tier, key, err)
		return nil, false
	}
	if e.Expired(t.now()) {
		_ = p.Del(ctx, key)
		return nil, false
	}
	v, err := t.codec.Decode(e.Payload)
	if err != nil {
		t.corrupt(ctx, p, tier, key, err)
		return nil, false
	}
	return v, true
}

func (t *TwoTier) corrupt(ctx context.Context, p pr.Provider, tier, key string, err error) {
	t.log.Warn("dropping corrupt cache entry", quizgate.Fields{"tier": tier, "key": key, "err": err})
	t.hooks.CorruptEntry(tier, key)
	_ = p.Del(ctx, key)
}

func (t *TwoTier) remoteFailed(op, key string, err error) {
	t.remoteErr.Add(1)
	t.log.Warn("remote cache "+op+" failed", quizgate.Fields{"key": key, "err": err})
	t.hooks.RemoteOpFailed(op, key, err)
}

func (t *TwoTier) remoteUp() bool {
	if t.remote == nil {
		return false
	}
	if cn, ok := t.remote.(pr.Connectivity); ok {
		return cn.Connected()
	}
	return true
}

func marshal(v any) (json.RawMessage, error) {
	switch x := v.(type) {
	case json.RawMessage:
		return x, nil
	case []byte:
		return json.RawMessage(x), nil
	default:
		return json.Marshal(v)
	}
}
