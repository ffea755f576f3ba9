// Package logging provides a minimal logging interface and slog adapters for RAGMesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the router, control loop, decision gate and build pipeline use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - RAGLogger, a slog wrapper with component/session scoping and helpers
//     for tool calls, model calls, searches and branch decisions
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	router := tool.NewRouter(services, tool.WithLogger(logger.WithComponent("router")))
//
// Components default to NoOpLogger when no logger is supplied.
package logging
