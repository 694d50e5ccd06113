// Command uringblkd serves virtual block devices described by a config
// file and environment overrides. It creates the device registry, keeps
// it running until SIGINT or SIGTERM, and optionally exposes Prometheus
// metrics and the golang web profiler.
package main

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ehrlich-b/go-uringblk"
	"github.com/ehrlich-b/go-uringblk/internal/config"
	"github.com/ehrlich-b/go-uringblk/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "uringblkd: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogging(cfg)

	registry, err := uringblk.NewRegistry(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to create device registry")
		os.Exit(1)
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logger.WithError(err).Error("error closing registry")
		}
	}()

	for _, dev := range registry.Devices() {
		logger.Info("serving device",
			"device", dev.ID(),
			"capacity_bytes", dev.Capacity(),
			"lbs", dev.LogicalBlockSize(),
			"queues", dev.QueueCount(),
			"features", dev.Features())
	}

	if cfg.Metrics.Enabled {
		stopMetrics := serveMetrics(cfg.Metrics.Port, registry, logger)
		defer stopMetrics()
	}

	if cfg.Profiler {
		go func() {
			addr := fmt.Sprintf("localhost:%d", cfg.ProfilerPort)
			logger.Info("profiler listening", "addr", addr)
			if err := http.ListenAndServe(addr, nil); err != nil {
				logger.WithError(err).Error("profiler server stopped")
			}
		}()
	}

	// SIGUSR1 dumps goroutine stacks without stopping the daemon.
	dumpCh := make(chan os.Signal, 1)
	signal.Notify(dumpCh, syscall.SIGUSR1)
	go func() {
		for range dumpCh {
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "=== goroutine stacks ===\n%s\n", buf[:n])
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())
}

func setupLogging(cfg config.Config) *logging.Logger {
	logCfg := logging.DefaultConfig()
	switch cfg.Log.Level {
	case "debug":
		logCfg.Level = logging.LevelDebug
	case "info":
		logCfg.Level = logging.LevelInfo
	case "warn":
		logCfg.Level = logging.LevelWarn
	case "error":
		logCfg.Level = logging.LevelError
	}
	logCfg.Format = "json"
	if cfg.Log.Pretty {
		logCfg.Format = "text"
	}

	logger := logging.NewLogger(logCfg)
	logging.SetDefault(logger)
	return logger
}
