// Package main boots a kernel, runs one command line as the initial user
// process, and exits with that process's status.
//
// Configuration:
//   - Defaults, then an optional TOML/YAML/JSON file (-config)
//   - Environment variables prefixed PINTOS_
//   - CLI flags (override both)
//
// Usage:
//
//	# Run a program
//	./pintos -- echo hello world
//
//	# Seed the filesystem from a host directory and keep it across runs
//	./pintos -import ./disk -snapshot fs.snap -- spawn cat motd
//
//	# Serve the admin API while the program runs (colored debug logs)
//	./pintos -dev -admin 127.0.0.1:8040 -- halt
//
// Signals:
//   - SIGINT, SIGTERM: power off without waiting for the program
package main
