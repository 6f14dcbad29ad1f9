// Package config loads and validates the proxy's YAML configuration
// document: required-field checks plus default-filling for optional
// fields. Loading config from disk and constructing the engine from it
// stays outside the dispatch engine itself.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the local HTTP listener configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port uint16 `yaml:"port"`
}

// CacheConfig is the response cache configuration.
type CacheConfig struct {
	Enabled        bool            `yaml:"enabled"`
	ExcludeMethods map[string]bool `yaml:"exclude_methods"`
}

// UpstreamConfig is a single configured upstream descriptor.
type UpstreamConfig struct {
	HTTPURL   string `yaml:"http_url"`
	RateLimit string `yaml:"rate_limit"`
	Failover  bool   `yaml:"failover"`
}

// Config is the full proxy configuration document.
type Config struct {
	Server                  ServerConfig     `yaml:"server"`
	Cache                   CacheConfig      `yaml:"cache"`
	Upstreams               []UpstreamConfig `yaml:"upstreams"`
	TryNextUpstreamOnErrors map[string]bool  `yaml:"try_next_upstream_on_errors"`
}

// Load reads and parses the YAML document at path, then validates it.
// A malformed or invalid document is a startup-fatal error; there is
// no partial/degraded load here.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks required fields and fills in defaults for optional
// ones. It is exported so callers constructing a Config in-process
// (tests, or an embedding application) get the same checks Load does.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if len(c.Upstreams) == 0 {
		return fmt.Errorf("at least one upstream is required")
	}
	seen := make(map[string]struct{}, len(c.Upstreams))
	for i, u := range c.Upstreams {
		if u.HTTPURL == "" {
			return fmt.Errorf("upstreams[%d].http_url is required", i)
		}
		if _, dup := seen[u.HTTPURL]; dup {
			return fmt.Errorf("upstreams[%d].http_url %q is configured more than once", i, u.HTTPURL)
		}
		seen[u.HTTPURL] = struct{}{}
	}
	return nil
}

// Addr returns the host:port the server should listen on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
