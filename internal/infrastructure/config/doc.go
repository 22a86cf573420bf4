// Package config loads machine configuration.
//
// Values are layered: built-in defaults, then an optional config file
// (TOML, YAML or JSON, chosen by extension), then environment variables.
// Each variable is looked up under its prefixed name first and its short
// name second, so PINTOS_SERVER_ADMIN_PORT and ADMIN_PORT both work.
//
// Configuration Sections:
//   - Kernel: page, handshake and thread limits
//   - Filesys: host import directory, include globs, snapshot path
//   - Logging: log level and output format
//   - Server: admin HTTP API
//   - RateLimit: per-IP rate limiting of the admin API
//
// Example Usage:
//
//	cfg, err := config.Load("pintos.toml")
//	if err != nil {
//		return err
//	}
package config
