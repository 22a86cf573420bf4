// Package server runs the optional admin HTTP server next to a machine.
//
// Middleware stack, outermost first: recovery, request id, request logging,
// metrics, CORS and, when enabled, per-client rate limiting.
//
// Routes:
//   - GET /healthz
//   - GET /metrics (Prometheus exposition)
//   - GET /api/processes, /api/files, /api/files/:name, /api/metrics
//   - GET /api/console (websocket)
//
// Example Usage:
//
//	srv := server.NewServer(cfg, machine, machine.Metrics(), logger.Component("admin"))
//	err := srv.Run(ctx)
package server
