package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dargan-lbruder/cacheproxy/internal/cache"
	"github.com/dargan-lbruder/cacheproxy/internal/config"
	"github.com/dargan-lbruder/cacheproxy/internal/logging"
	"github.com/dargan-lbruder/cacheproxy/internal/metrics"
	"github.com/dargan-lbruder/cacheproxy/internal/proxy"
	"github.com/dargan-lbruder/cacheproxy/internal/tracing"
)

// main wires configuration, the ambient observability stack, the shared
// cache store, and the proxy listener together, then blocks until a
// termination signal triggers graceful shutdown: config load, start in a
// goroutine, wait on signal, bounded shutdown.
// Time Complexity: O(1) setup, then blocks until a termination signal
// arrives.
// Space Complexity: O(1) fixed ambient structures, plus whatever the
// accept loop allocates per connection for the life of the process.
func main() {
	var configPath = flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	port, err := portArgument()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := config.LoadConfig(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := config.GetInstance()
	if port != 0 {
		cfg.Server.Port = port
	}

	logger := logging.New(cfg.Tracing.ServiceName, logging.ParseLevel(cfg.Logging.Level))

	shutdownTracing, err := tracing.Init(cfg.Tracing)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize tracing: %v\n", err)
		os.Exit(1)
	}
	defer shutdownTracing()

	connMetrics := metrics.New()
	cacheMetrics := cache.NewMetrics(connMetrics.Registry())
	store := cache.New(cfg.Cache.CapacityBytes, cfg.Cache.ObjectMaxBytes, cacheMetrics)

	server := proxy.NewServer(cfg, store, connMetrics, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsServer := &http.Server{Addr: config.MetricsAddr, Handler: connMetrics.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "metrics listener failed", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info(ctx, "starting proxy", slog.Int("port", cfg.Server.Port))
		if err := server.Start(ctx); err != nil {
			logger.Error(ctx, "server failed to start", err)
			os.Exit(1)
		}
	}()

	<-sigChan
	logger.Info(ctx, "received termination signal, shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "error during shutdown", err)
	}
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info(ctx, "proxy stopped")
}

// portArgument reads the proxy's listening port from the first positional
// command-line argument, the way the original proxy took its port as
// argv[1]. Returning 0 with no error means "no override, use config.yaml /
// defaults" (flag.Args() is empty when the proxy is run with only flags).
// Time Complexity: O(1) - a fixed number of argument checks and a conversion.
// Space Complexity: O(1) - no allocations.
func portArgument() (int, error) {
	args := flag.Args()
	if len(args) == 0 {
		return 0, nil
	}
	port, err := strconv.Atoi(args[0])
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port argument %q", args[0])
	}
	return port, nil
}
