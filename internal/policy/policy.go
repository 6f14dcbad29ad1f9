// Package policy holds the static lookup tables (C5) the dispatch
// engine consults: which methods bypass the cache, and which
// upstream-returned error messages trigger failover rather than being
// returned to the client. Both tables are built once at startup from
// configuration and are immutable afterwards; membership lookup is
// O(1); a missing table is treated as an empty set.
package policy

// Tables is the immutable set of policy lookups consulted per request.
type Tables struct {
	cacheExcludeMethods     map[string]struct{}
	tryNextUpstreamOnErrors map[string]struct{}
}

// NewTables builds Tables from the configured sets. Keys mapped to
// true are members; any other value, or a nil map, leaves the key out
// of the set.
func NewTables(cacheExclude, tryNextOnErrors map[string]bool) *Tables {
	return &Tables{
		cacheExcludeMethods:     toSet(cacheExclude),
		tryNextUpstreamOnErrors: toSet(tryNextOnErrors),
	}
}

func toSet(m map[string]bool) map[string]struct{} {
	set := make(map[string]struct{}, len(m))
	for k, v := range m {
		if v {
			set[k] = struct{}{}
		}
	}
	return set
}

// CacheExcludesMethod reports whether method must bypass the cache.
func (t *Tables) CacheExcludesMethod(method string) bool {
	if t == nil {
		return false
	}
	_, ok := t.cacheExcludeMethods[method]
	return ok
}

// IsTryNextError reports whether an upstream rpc_error with this exact
// message should trigger failover to the next upstream rather than
// being returned to the client. Matching is exact, case-sensitive
// string equality against the configured set; error codes vary too
// much across upstream implementations to key on instead.
func (t *Tables) IsTryNextError(message string) bool {
	if t == nil {
		return false
	}
	_, ok := t.tryNextUpstreamOnErrors[message]
	return ok
}
