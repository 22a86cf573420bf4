/*
Package monitoring provides metrics collection for the simulated kernel.

# Overview

This package implements Prometheus-based metrics on a private registry,
tracking system calls, process lifecycle, kernel arena occupancy, filesystem
lock contention and the admin HTTP API.

# Features

- System call counts and latency per call
- Forced terminations by reason
- Process starts, exits and active count
- Live objects per kernel arena (pages, handshakes)
- Global filesystem lock wait time

A nil *Metrics records nothing, so kernel components can run without it.

# Usage

	metrics := monitoring.NewMetrics()

	timer := monitoring.NewTimer(metrics, "open")
	// ... handle the call ...
	timer.Stop()

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(monitoring.Handler(metrics)))
*/
package monitoring
