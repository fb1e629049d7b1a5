/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the extension
host, tracking HTTP requests, bus traffic, installer outcomes, runtime
lifecycle, and pending call pressure.

# Features

- HTTP request metrics (latency, throughput, size)
- Controller operation metrics (duration, status)
- Bus message counters by direction and kind
- Installer outcome counters by source
- Runtime lifecycle metrics (liveness, restarts, crashes)
- Pending call gauge and timeout counter
- WebSocket connection and event metrics
- System metrics (uptime)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record custom metrics
	metrics.SetExtensionsActive(5)
	metrics.RecordInstall("store", "success")
	metrics.RecordOperation("install", "success", elapsed)

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
