// Command rpcproxy is the entrypoint: it loads configuration, wires
// the dispatch engine's collaborators, and serves the JSON-RPC HTTP
// front door until interrupted. This wiring — config loading, the
// listener, the HTTP client used to reach upstreams, and logging —
// stays outside the core dispatch engine.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/malbeclabs/rpcproxy/internal/cache"
	"github.com/malbeclabs/rpcproxy/internal/config"
	"github.com/malbeclabs/rpcproxy/internal/dispatch"
	"github.com/malbeclabs/rpcproxy/internal/metrics"
	"github.com/malbeclabs/rpcproxy/internal/policy"
	"github.com/malbeclabs/rpcproxy/internal/ratelimit"
	"github.com/malbeclabs/rpcproxy/internal/server"
	"github.com/malbeclabs/rpcproxy/internal/upstream"
)

const (
	defaultConfigPath   = "config.yaml"
	defaultLogLevel     = "info"
	upstreamHTTPTimeout = 10 * time.Second
)

var (
	configPath string
	logLevel   string

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: slogLevel, AddSource: level == "debug"}
	var handler slog.Handler
	if level == "debug" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

var rootCmd = &cobra.Command{
	Use:   "rpcproxy",
	Short: "Caching, failover-capable reverse proxy for JSON-RPC 2.0 over HTTP",
	RunE:  run,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rpcproxy %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to the proxy's YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := newLogger(logLevel)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		return err
	}

	engine, reg := buildEngine(cfg, log)

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		log.Error("failed to bind listener", "addr", cfg.Addr(), "error", err)
		return err
	}

	srv := server.New(log, engine, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("rpcproxy listening", "addr", cfg.Addr(), "upstreams", len(cfg.Upstreams))
	return srv.Serve(ctx, listener)
}

func buildEngine(cfg *config.Config, log *slog.Logger) (*dispatch.Engine, *prometheus.Registry) {
	specs := make(map[string]string, len(cfg.Upstreams))
	upstreams := make([]dispatch.Upstream, 0, len(cfg.Upstreams))
	for _, u := range cfg.Upstreams {
		specs[u.HTTPURL] = u.RateLimit
		upstreams = append(upstreams, dispatch.Upstream{URL: u.HTTPURL, Failover: u.Failover})
	}

	reg := prometheus.NewRegistry()

	engine := dispatch.New(dispatch.Config{
		Upstreams:    upstreams,
		Limiters:     ratelimit.NewRegistry(specs, log),
		Cache:        cache.New(cache.DefaultTTL, cache.DefaultCapacity),
		Client:       upstream.New(&http.Client{Timeout: upstreamHTTPTimeout}),
		Tables:       policy.NewTables(cfg.Cache.ExcludeMethods, cfg.TryNextUpstreamOnErrors),
		CacheEnabled: cfg.Cache.Enabled,
		Logger:       log,
		Metrics:      metrics.New(reg),
	})
	return engine, reg
}
