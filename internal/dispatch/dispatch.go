// Package dispatch implements the request-dispatch engine (C4): the
// per-request state machine that fuses cache lookup, upstream
// selection, rate-limit gating, failover policy, error classification,
// and cache population into a single ordered decision process.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/malbeclabs/rpcproxy/internal/cache"
	"github.com/malbeclabs/rpcproxy/internal/jsonrpc"
	"github.com/malbeclabs/rpcproxy/internal/metrics"
	"github.com/malbeclabs/rpcproxy/internal/policy"
	"github.com/malbeclabs/rpcproxy/internal/ratelimit"
	"github.com/malbeclabs/rpcproxy/internal/upstream"
)

// ExhaustedCode and ExhaustedMessage form the fixed synthesized error
// emitted when the upstream loop exhausts without returning.
const (
	ExhaustedCode    int16  = -32603
	ExhaustedMessage string = "No upstream was able to process this request"
)

// Upstream is a configured upstream descriptor.
type Upstream struct {
	URL      string
	Failover bool
}

// Engine orchestrates dispatch. All fields are read-only after
// construction; Dispatch is safe for concurrent callers.
type Engine struct {
	upstreams []Upstream
	limiters  *ratelimit.Registry
	cache     *cache.Cache
	client    *upstream.Client
	tables    *policy.Tables
	cacheOn   bool
	log       *slog.Logger
	metrics   *metrics.Metrics
}

// Config groups the Engine's dependencies.
type Config struct {
	Upstreams    []Upstream
	Limiters     *ratelimit.Registry
	Cache        *cache.Cache
	Client       *upstream.Client
	Tables       *policy.Tables
	CacheEnabled bool
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// New builds an Engine from cfg.
func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Engine{
		upstreams: cfg.Upstreams,
		limiters:  cfg.Limiters,
		cache:     cfg.Cache,
		client:    cfg.Client,
		tables:    cfg.Tables,
		cacheOn:   cfg.CacheEnabled,
		log:       log,
		metrics:   m,
	}
}

// Dispatch runs the state machine for req. It never returns a Go error
// except when ctx is cancelled before a response could be produced; in
// every other case it returns a complete *jsonrpc.Response, which may
// itself carry a JSON-RPC error (including the synthesized exhaustion
// error).
func (e *Engine) Dispatch(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	cachePermitted := e.cacheOn && !e.tables.CacheExcludesMethod(req.Method)

	fp, fpErr := jsonrpc.Fingerprint(req.Method, req.Params)
	if fpErr != nil {
		e.log.Warn("failed to compute cache fingerprint, bypassing cache for this request", "method", req.Method, "error", fpErr)
		cachePermitted = false
	}

	if cachePermitted {
		if result, ok := e.cache.Get(fp); ok {
			e.metrics.CacheHit(req.Method)
			id := req.ID
			return &jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: &id, Result: result}, nil
		}
		e.metrics.CacheMiss(req.Method)
	}

	for _, up := range e.upstreams {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if e.limiters != nil {
			decision := e.limiters.Check(up.URL)
			if !decision.Allowed {
				if !up.Failover {
					e.log.Debug("rate limit exceeded, skipping upstream", "upstream", up.URL, "retry_after", decision.RetryAfter)
					e.metrics.RateLimitSkip(up.URL)
					continue
				}
				e.log.Debug("rate limit exceeded, waiting for upstream", "upstream", up.URL)
				e.metrics.RateLimitWait(up.URL)
				if err := e.limiters.Wait(ctx, up.URL); err != nil {
					return nil, err
				}
			}
		}

		outcome, err := e.client.Post(ctx, up.URL, req)
		if err != nil {
			return nil, err
		}
		e.metrics.UpstreamCall(up.URL)

		switch outcome.Kind {
		case upstream.KindTransportError:
			e.log.Warn("upstream transport error, trying next upstream", "upstream", up.URL, "error", outcome.Detail)
			continue

		case upstream.KindRPCNull:
			e.log.Debug("upstream returned null result, trying next upstream", "upstream", up.URL)
			continue

		case upstream.KindRPCError:
			if e.tables.IsTryNextError(outcome.Err.Message) {
				e.log.Debug("upstream returned retryable error, trying next upstream", "upstream", up.URL, "message", outcome.Err.Message)
				continue
			}
			id := req.ID
			return &jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: &id, Error: outcome.Err}, nil

		case upstream.KindRPCOK:
			if cachePermitted {
				e.cache.Put(fp, outcome.Result)
			}
			id := req.ID
			return &jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: &id, Result: outcome.Result}, nil
		}
	}

	e.metrics.Exhausted()
	return e.exhausted(req.ID), nil
}

func (e *Engine) exhausted(_ uint64) *jsonrpc.Response {
	return &jsonrpc.Response{
		JSONRPC: jsonrpc.Version,
		ID:      nil,
		Result:  []byte("null"),
		Error: &jsonrpc.ErrorObject{
			Code:    ExhaustedCode,
			Message: ExhaustedMessage,
		},
	}
}
