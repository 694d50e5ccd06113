package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ehrlich-b/go-uringblk"
	"github.com/ehrlich-b/go-uringblk/internal/logging"
)

var (
	// Prometheus metrics (gauges)
	promMetrics = struct {
		deviceStat *prometheus.GaugeVec
		uptime     prometheus.Gauge
		devices    prometheus.Gauge
	}{
		deviceStat: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "uringblk_device_stat",
			Help: "Per-device counter from the stats engine, labeled by stat name",
		}, []string{"device", "stat"}),
		uptime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uringblk_uptime_seconds",
			Help: "Seconds since the daemon started",
		}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uringblk_devices",
			Help: "Number of devices currently served",
		}),
	}
)

func initPrometheusMetrics() {
	prometheus.MustRegister(
		promMetrics.deviceStat,
		promMetrics.uptime,
		promMetrics.devices,
	)
}

func updatePrometheusMetrics(registry *uringblk.Registry, started time.Time) {
	devices := registry.Devices()
	promMetrics.devices.Set(float64(len(devices)))
	promMetrics.uptime.Set(time.Since(started).Seconds())

	for _, dev := range devices {
		label := fmt.Sprintf("%d", dev.ID())
		for name, value := range dev.StatsMap() {
			promMetrics.deviceStat.WithLabelValues(label, name).Set(float64(value))
		}
	}
}

// serveMetrics registers the gauges, starts a poller that refreshes them
// from the device stats engines, and serves /metrics. The returned
// function stops the poller.
func serveMetrics(port int, registry *uringblk.Registry, logger *logging.Logger) func() {
	initPrometheusMetrics()

	started := time.Now()
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				updatePrometheusMetrics(registry, started)
			case <-stop:
				return
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.WithError(err).Error("metrics server stopped")
		}
	}()

	return func() { close(stop) }
}
