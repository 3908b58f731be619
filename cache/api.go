package cache

import (
	"encoding/json"
	"time"

	"github.com/unkn0wn-root/quizgate"
	c "github.com/unkn0wn-root/quizgate/codec"
	pr "github.com/unkn0wn-root/quizgate/provider"
)

// Options tune the two-tier cache.
// Only Local is required; others have sensible defaults.
type Options struct {
	// Required
	Local pr.Provider // always written; serves reads when remote misses or is down

	Remote     pr.Provider              // nil => local only. Implement provider.Connectivity to be skipped while down
	Codec      c.Codec[json.RawMessage] // nil => codec.JSON
	Logger     quizgate.Logger          // if nil, NopLogger is used
	Hooks      quizgate.Hooks           // if nil, NopHooks is used
	DefaultTTL time.Duration            // 0 => 300s
	OpTimeout  time.Duration            // bound on each remote call; 0 => 2s
	Disabled   bool                     // default false (enabled)

	// RelatedPrefixes are the key families InvalidateRelated busts in addition
	// to keys containing the related key. nil => quizgate.RelatedPrefixes.
	RelatedPrefixes []string

	// StatsKeyLimit caps the local keys listed by Stats; 0 => 100.
	StatsKeyLimit int

	Now func() time.Time // nil => time.Now
}

// Stats is a point-in-time snapshot of both tiers and the access counters.
type Stats struct {
	Remote   RemoteStats `json:"redis"`
	Local    LocalStats  `json:"memory"`
	Counters Counters    `json:"stats"`
}

type RemoteStats struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

type LocalStats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

type Counters struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	Sets         int64   `json:"sets"`
	Deletes      int64   `json:"deletes"`
	RemoteHits   int64   `json:"remoteHits"`
	LocalHits    int64   `json:"localHits"`
	RemoteErrors int64   `json:"remoteErrors"`
	HitRate      float64 `json:"hitRate"`
}
