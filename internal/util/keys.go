package util

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"
)

// maxParamsLen bounds the readable parameter part of a key; longer
// parameter sets are replaced by a short hash.
const maxParamsLen = 160

// Key returns "<endpoint>_<part>_<part>..." skipping empty parts.
func Key(endpoint string, parts ...string) string {
	var b strings.Builder
	b.WriteString(endpoint)
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteByte('_')
		b.WriteString(p)
	}
	return b.String()
}

// ParamsKey returns a deterministic key for a parameter set: empty values
// dropped, the rest query-escaped and sorted by name ("k=v&k=v"), so a
// value containing '&' or '=' cannot alias another set. Oversized sets are
// hashed.
func ParamsKey(endpoint string, params map[string]string) string {
	vals := make(url.Values, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		vals.Set(k, v)
	}
	if len(vals) == 0 {
		return endpoint
	}
	joined := vals.Encode()
	if len(joined) <= maxParamsLen {
		return endpoint + "_" + joined
	}
	sum := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("%s_%x", endpoint, sum)[:len(endpoint)+1+16] // endpoint + "_" + first 16 hex chars
}

// Coalesce returns def when v is the zero value of T - otherwise v.
func Coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
