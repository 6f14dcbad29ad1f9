package upstream_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/rpcproxy/internal/jsonrpc"
	"github.com/malbeclabs/rpcproxy/internal/upstream"
)

func testRequest() *jsonrpc.Request {
	return &jsonrpc.Request{JSONRPC: jsonrpc.Version, ID: 1, Method: "getBlock"}
}

func TestClient_Post_RPCOK(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":"X"}`)
	}))
	defer srv.Close()

	c := upstream.New(srv.Client())
	out, err := c.Post(t.Context(), srv.URL, testRequest())
	require.NoError(t, err)
	assert.Equal(t, upstream.KindRPCOK, out.Kind)
	assert.Equal(t, `"X"`, string(out.Result))
}

func TestClient_Post_RPCError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"bad_param"}}`)
	}))
	defer srv.Close()

	c := upstream.New(srv.Client())
	out, err := c.Post(t.Context(), srv.URL, testRequest())
	require.NoError(t, err)
	assert.Equal(t, upstream.KindRPCError, out.Kind)
	require.NotNil(t, out.Err)
	assert.Equal(t, "bad_param", out.Err.Message)
}

func TestClient_Post_RPCNull(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":null}`)
	}))
	defer srv.Close()

	c := upstream.New(srv.Client())
	out, err := c.Post(t.Context(), srv.URL, testRequest())
	require.NoError(t, err)
	assert.Equal(t, upstream.KindRPCNull, out.Kind)
}

func TestClient_Post_NonParseableBodyIsTransportError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer srv.Close()

	c := upstream.New(srv.Client())
	out, err := c.Post(t.Context(), srv.URL, testRequest())
	require.NoError(t, err)
	assert.Equal(t, upstream.KindTransportError, out.Kind)
}

func TestClient_Post_Non2xxIsTransportError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := upstream.New(srv.Client())
	out, err := c.Post(t.Context(), srv.URL, testRequest())
	require.NoError(t, err)
	assert.Equal(t, upstream.KindTransportError, out.Kind)
}

func TestClient_Post_UnreachableIsTransportError(t *testing.T) {
	t.Parallel()
	c := upstream.New(nil)
	out, err := c.Post(t.Context(), "http://127.0.0.1:1", testRequest())
	require.NoError(t, err)
	assert.Equal(t, upstream.KindTransportError, out.Kind)
}
