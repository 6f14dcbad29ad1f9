// Package ratelimit implements the per-upstream rate-limit registry
// (C1): one token-bucket limiter per configured upstream URL, built
// once at startup and read-only for the lifetime of the engine.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// rateSpecPattern matches "<count>[K]/<n> <unit>", e.g. "10/1 s",
// "5K/1 m". The unit group is deliberately permissive; unrecognized
// units fall back to seconds rather than failing the parse.
var rateSpecPattern = regexp.MustCompile(`^\s*(\d+)(K|k)?\s*/\s*(\d+)\s*([a-zA-Z]*)\s*$`)

// Policy is a parsed rate-limit spec: capacity admitted per rolling
// period.
type Policy struct {
	Capacity int
	Period   time.Duration
}

// ParsePolicy parses a human rate-limit string of the form
// "<count>[K]/<n> <unit>". An empty string yields (nil, nil): no
// limiter should be installed. A non-empty string that does not match
// the pattern, or has a zero count or period, yields an error;
// NewRegistry logs that error and leaves the upstream unlimited.
func ParsePolicy(spec string) (*Policy, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	m := rateSpecPattern.FindStringSubmatch(spec)
	if m == nil {
		return nil, fmt.Errorf("ratelimit: unparseable spec %q", spec)
	}
	count, err := strconv.Atoi(m[1])
	if err != nil || count <= 0 {
		return nil, fmt.Errorf("ratelimit: invalid count in spec %q", spec)
	}
	if strings.EqualFold(m[2], "k") {
		count *= 1000
	}
	n, err := strconv.Atoi(m[3])
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("ratelimit: invalid period in spec %q", spec)
	}
	unit := time.Second
	switch strings.ToLower(m[4]) {
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "s", "":
		unit = time.Second
	default:
		unit = time.Second
	}
	return &Policy{Capacity: count, Period: time.Duration(n) * unit}, nil
}

// Decision is the outcome of a non-blocking Check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Registry holds one limiter per upstream URL. It is built once at
// startup and never mutated afterwards; all operations are safe under
// concurrent callers because the underlying *rate.Limiter is.
type Registry struct {
	limiters map[string]*rate.Limiter
}

// NewRegistry builds a Registry from a set of (url, rateLimitSpec)
// pairs. An unparseable spec disables limiting for that URL and logs a
// diagnostic rather than failing startup.
func NewRegistry(specs map[string]string, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{limiters: make(map[string]*rate.Limiter, len(specs))}
	for url, spec := range specs {
		if strings.TrimSpace(spec) == "" {
			continue
		}
		policy, err := ParsePolicy(spec)
		if err != nil {
			log.Warn("rate limit spec unparseable, upstream is unlimited", "upstream", url, "spec", spec, "error", err)
			continue
		}
		if policy == nil {
			continue
		}
		perSecond := float64(policy.Capacity) / policy.Period.Seconds()
		r.limiters[url] = rate.NewLimiter(rate.Limit(perSecond), policy.Capacity)
	}
	return r
}

// Check performs a non-blocking admission check for url. When no
// limiter is registered for url, the request is always allowed.
func (r *Registry) Check(url string) Decision {
	lim, ok := r.limiters[url]
	if !ok {
		return Decision{Allowed: true}
	}
	res := lim.Reserve()
	if !res.OK() {
		return Decision{Allowed: false, RetryAfter: 0}
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return Decision{Allowed: false, RetryAfter: delay}
	}
	return Decision{Allowed: true}
}

// Wait blocks until a token is available for url, then consumes it.
// It is a no-op when no limiter is registered for url. It returns
// early with ctx.Err() if ctx is cancelled first.
func (r *Registry) Wait(ctx context.Context, url string) error {
	lim, ok := r.limiters[url]
	if !ok {
		return nil
	}
	return lim.Wait(ctx)
}

// HasLimiter reports whether url has a configured limiter, for
// diagnostics and tests.
func (r *Registry) HasLimiter(url string) bool {
	_, ok := r.limiters[url]
	return ok
}
