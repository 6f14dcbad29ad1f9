// Package upstream implements the upstream client (C3): a stateless
// wrapper over an injected *http.Client that posts a JSON-RPC request
// and classifies the outcome into the four variants the dispatch
// engine's state machine branches on.
//
// JSON encode/decode on this boundary uses github.com/segmentio/encoding/json,
// a drop-in faster replacement for encoding/json, the same way
// attest-framework-attest/engine uses it at its own I/O boundaries.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	segjson "github.com/segmentio/encoding/json"

	"github.com/malbeclabs/rpcproxy/internal/jsonrpc"
)

// Kind classifies the outcome of a single upstream call.
type Kind int

const (
	KindTransportError Kind = iota
	KindRPCError
	KindRPCNull
	KindRPCOK
)

// Outcome is the result of a single Post call.
type Outcome struct {
	Kind   Kind
	Result json.RawMessage
	Err    *jsonrpc.ErrorObject
	Detail error
}

// Client posts JSON-RPC requests to upstream URLs.
type Client struct {
	http *http.Client
}

// New builds a Client around the given HTTP client. The caller owns
// timeouts, TLS configuration, and connection pooling on httpClient;
// this package does not configure any of that itself.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient}
}

// Post sends req to url and classifies the response. It never returns
// a Go error for anything short of a caller-context cancellation;
// every transport or protocol failure is folded into
// Outcome{Kind: KindTransportError}.
func (c *Client) Post(ctx context.Context, url string, req *jsonrpc.Request) (Outcome, error) {
	body, err := segjson.Marshal(req.ToWire())
	if err != nil {
		return Outcome{Kind: KindTransportError, Detail: fmt.Errorf("marshal request: %w", err)}, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: KindTransportError, Detail: fmt.Errorf("build request: %w", err)}, nil
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return Outcome{Kind: KindTransportError, Detail: err}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Outcome{Kind: KindTransportError, Detail: fmt.Errorf("upstream returned HTTP %d", resp.StatusCode)}, nil
	}

	var wire jsonrpc.Response
	if err := segjson.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return Outcome{Kind: KindTransportError, Detail: fmt.Errorf("decode response: %w", err)}, nil
	}

	if wire.Error != nil {
		return Outcome{Kind: KindRPCError, Err: wire.Error}, nil
	}
	if len(wire.Result) == 0 || string(wire.Result) == "null" {
		return Outcome{Kind: KindRPCNull}, nil
	}
	return Outcome{Kind: KindRPCOK, Result: wire.Result}, nil
}
