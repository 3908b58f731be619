package quizgate

import "time"

const (
	DefaultCacheTTL        = 300 * time.Second
	DefaultUpstreamTimeout = 10 * time.Second
	DefaultMaxAttempts     = 3
	DefaultBackoffStep     = time.Second
	DefaultLocalMaxEntries = 1000
)

// RelatedPrefixes are the key families busted by a related-key invalidation.
var RelatedPrefixes = []string{"quiz_", "user_", "category_", "search_"}
