// Package logging provides a minimal logging interface and adapters for Deskmate.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the runner, agent and connector use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - DeskmateLogger with contextual helpers (component, session, run)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	r := runner.New(assistant, func(o *runner.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
