// Package pkg provides shared utilities for the softkbd keyboard stack.
//
// This package contains common functionality used across both the driver
// and device-simulator stacks, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for transport and lifecycle errors
//   - Component identifiers for log filtering
//
// The package is designed to have zero external dependencies, relying
// only on the Go standard library.
//
// # Logging
//
// The logging subsystem wraps [log/slog] with keyboard-stack context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentDriver, "keyboard opened", "bus", busDir)
//
// # Errors
//
// Common errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrEndOfStream) {
//	    // Input exhausted, begin teardown
//	}
package pkg
