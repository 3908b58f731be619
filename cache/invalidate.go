package cache

import (
	"context"
	"errors"
	"sort"

	"github.com/unkn0wn-root/quizgate"
	pr "github.com/unkn0wn-root/quizgate/provider"
)

// InvalidatePattern deletes every key matching the glob pattern from both
// tiers and returns how many distinct keys were removed; a key held by both
// tiers counts once. Tiers that cannot enumerate keys are skipped and age
// out by TTL.
func (t *TwoTier) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	var (
		removed = make(map[string]struct{})
		ierr    InvalidateError
	)
	if t.remoteUp() {
		if sc, ok := t.remote.(pr.Scanner); ok {
			keys, err := t.purge(ctx, t.remote, sc, pattern)
			for _, k := range keys {
				removed[k] = struct{}{}
			}
			if err != nil {
				ierr.RemoteErr = err
				t.remoteFailed("scan", pattern, err)
			}
		}
	}
	if sc, ok := t.local.(pr.Scanner); ok {
		keys, err := t.purge(ctx, t.local, sc, pattern)
		for _, k := range keys {
			removed[k] = struct{}{}
		}
		if err != nil {
			ierr.LocalErr = err
		}
	}
	n := len(removed)
	t.deletes.Add(int64(n))
	t.log.Debug("invalidated pattern", quizgate.Fields{"pattern": pattern, "removed": n})

	if ierr.RemoteErr != nil || ierr.LocalErr != nil {
		ierr.Pattern = pattern
		return n, &ierr
	}
	return n, nil
}

// InvalidateRelated busts every key containing key plus the configured
// related prefixes. Every pattern is attempted even if one fails.
func (t *TwoTier) InvalidateRelated(ctx context.Context, key string) (int, error) {
	patterns := make([]string, 0, len(t.related)+1)
	patterns = append(patterns, "*"+key+"*")
	for _, p := range t.related {
		patterns = append(patterns, p+"*")
	}

	total := 0
	var errs []error
	for _, p := range patterns {
		n, err := t.InvalidatePattern(ctx, p)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// purge returns the keys it deleted. A bulk delete that fails part way
// reports the keys it got through, in scan order.
func (t *TwoTier) purge(ctx context.Context, p pr.Provider, sc pr.Scanner, pattern string) ([]string, error) {
	keys, err := sc.Keys(ctx, pattern)
	if err != nil || len(keys) == 0 {
		return nil, err
	}
	if bd, ok := p.(pr.BulkDeleter); ok {
		n, err := bd.DelMany(ctx, keys)
		if err != nil {
			return keys[:min(max(n, 0), len(keys))], err
		}
		return keys, nil
	}
	for i, k := range keys {
		if err := p.Del(ctx, k); err != nil {
			return keys[:i], err
		}
	}
	return keys, nil
}

// Stats snapshots both tiers and the counters.
func (t *TwoTier) Stats(ctx context.Context) Stats {
	s := Stats{
		Remote: RemoteStats{Enabled: t.remote != nil, Connected: t.remoteUp()},
		Local:  LocalStats{Keys: []string{}},
		Counters: Counters{
			Hits:         t.hits.Load(),
			Misses:       t.misses.Load(),
			Sets:         t.sets.Load(),
			Deletes:      t.deletes.Load(),
			RemoteHits:   t.remoteHits.Load(),
			LocalHits:    t.localHits.Load(),
			RemoteErrors: t.remoteErr.Load(),
		},
	}
	if total := s.Counters.Hits + s.Counters.Misses; total > 0 {
		s.Counters.HitRate = float64(s.Counters.Hits) / float64(total)
	}
	if sz, ok := t.local.(pr.Sizer); ok {
		s.Local.Size = sz.Len()
	}
	if sc, ok := t.local.(pr.Scanner); ok {
		if keys, err := sc.Keys(ctx, "*"); err == nil {
			if s.Local.Size == 0 {
				s.Local.Size = len(keys)
			}
			sort.Strings(keys)
			if len(keys) > t.keyLimit {
				keys = keys[:t.keyLimit]
			}
			s.Local.Keys = keys
		}
	}
	return s
}
