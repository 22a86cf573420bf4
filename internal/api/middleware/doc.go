// Package middleware provides the HTTP middleware used by the admin API.
//
// Middleware stack includes:
//   - CORS: read-only cross-origin access, no credentials
//   - RateLimit: per-IP token buckets, idle clients forgotten after ten minutes
//   - RequestID: X-Request-ID propagation
//   - Logger: one debug entry per request
//
// Example Usage:
//
//	router.Use(middleware.RequestID())
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
