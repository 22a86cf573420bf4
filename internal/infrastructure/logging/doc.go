// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON lines on stderr
//   - Development: colored console output with callers and stack traces
//
// Kernel subsystems log through named sub-loggers (sched, process,
// syscall, filesys, machine, admin) and every entry of a run carries the
// boot id.
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info"})
//	if err != nil {
//		return err
//	}
//	sched.New(0, logger.WithBoot(bootID).Component("sched"))
package logging
