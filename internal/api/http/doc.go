// Package http provides the read-only admin endpoints for a running kernel.
//
// Endpoints:
//   - /healthz: boot id, uptime and power state
//   - /api/processes: live user processes
//   - /api/files: filesystem listing with detected content types
//   - /api/files/:name: raw file contents
//   - /api/metrics: JSON snapshot of the kernel counters
//
// Example Usage:
//
//	handlers := http.NewHandlers(machine, metrics)
//	router.GET("/healthz", handlers.Health)
package http
