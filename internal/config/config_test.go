package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/rpcproxy/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 8080
cache:
  enabled: true
  exclude_methods:
    getStatus: true
upstreams:
  - http_url: http://u1
    rate_limit: "10/1 s"
    failover: true
  - http_url: http://u2
try_next_upstream_on_errors:
  busy: true
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.True(t, cfg.Cache.Enabled)
	assert.True(t, cfg.Cache.ExcludeMethods["getStatus"])
	require.Len(t, cfg.Upstreams, 2)
	assert.Equal(t, "http://u1", cfg.Upstreams[0].HTTPURL)
	assert.True(t, cfg.Upstreams[0].Failover)
	assert.False(t, cfg.Upstreams[1].Failover)
	assert.True(t, cfg.TryNextUpstreamOnErrors["busy"])
}

func TestLoad_MissingPortIsInvalid(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
upstreams:
  - http_url: http://u1
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_NoUpstreamsIsInvalid(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
server:
  port: 8080
upstreams: []
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_DuplicateUpstreamIsInvalid(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
server:
  port: 8080
upstreams:
  - http_url: http://u1
  - http_url: http://u1
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFileIsError(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_DefaultsHost(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
server:
  port: 9000
upstreams:
  - http_url: http://u1
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
}
