package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a case-insensitive level name to a LogLevel. Unknown names
// yield LogLevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger defines the minimal logging interface used by every RAGMesh component.
// Args are slog-style alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}

// RAGLogger wraps slog.Logger with component scoping and helpers for the
// recurring events of a retrieval session (tool calls, model calls, searches,
// branch decisions). With* methods return copies.
type RAGLogger struct {
	logger    *slog.Logger
	component string
	sessionID string
	runID     string
	attrs     map[string]any
}

// LoggerConfig configures construction of a RAGLogger.
type LoggerConfig struct {
	Level       LogLevel
	Format      string // json or text
	Output      io.Writer
	AddSource   bool
	Component   string
	CustomAttrs map[string]any
}

// DefaultLoggerConfig returns a baseline text info level configuration on stderr.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "text", Output: os.Stderr, CustomAttrs: map[string]any{}}
}

// NewLogger builds a RAGLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *RAGLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	attrs := map[string]any{}
	for k, v := range cfg.CustomAttrs {
		attrs[k] = v
	}
	return &RAGLogger{logger: slog.New(handler), component: cfg.Component, attrs: attrs}
}

// NewSlogLogger creates a RAGLogger with the given level and format.
func NewSlogLogger(level LogLevel, format string, addSource bool) *RAGLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *RAGLogger) clone() *RAGLogger {
	nl := *l
	nl.attrs = make(map[string]any, len(l.attrs))
	for k, v := range l.attrs {
		nl.attrs[k] = v
	}
	return &nl
}

// With adds a key/value attribute attached to every entry.
func (l *RAGLogger) With(key string, value any) *RAGLogger {
	nl := l.clone()
	nl.attrs[key] = value
	return nl
}

// WithComponent sets the logical component (router, agent, gate, ...).
func (l *RAGLogger) WithComponent(c string) *RAGLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithSession attaches session and run identifiers.
func (l *RAGLogger) WithSession(sessionID, runID string) *RAGLogger {
	nl := l.clone()
	nl.sessionID = sessionID
	nl.runID = runID
	return nl
}

func (l *RAGLogger) baseAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.attrs)+3)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.sessionID != "" {
		attrs = append(attrs, slog.String("session_id", l.sessionID))
	}
	if l.runID != "" {
		attrs = append(attrs, slog.String("run_id", l.runID))
	}
	for k, v := range l.attrs {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (l *RAGLogger) log(level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, 0)
	r.AddAttrs(l.baseAttrs()...)
	r.Add(args...)
	_ = l.logger.Handler().Handle(ctx, r)
}

// Debug logs at debug level.
func (l *RAGLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (l *RAGLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *RAGLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

// Error logs at error level.
func (l *RAGLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

func outcome(l Logger, okMsg, failMsg string, err error, args ...any) {
	if err != nil {
		l.Error(failMsg, append(args, "success", false, "error", err.Error())...)
		return
	}
	l.Info(okMsg, append(args, "success", true)...)
}

// LogToolCall records execution details for a tool dispatch on any Logger.
func LogToolCall(l Logger, tool string, dur time.Duration, err error) {
	outcome(OrNoOp(l), "tool call completed", "tool call failed", err, "tool_name", tool, "duration", dur)
}

// LogModelCall records model call latency and success on any Logger.
func LogModelCall(l Logger, model string, dur time.Duration, err error) {
	outcome(OrNoOp(l), "model call completed", "model call failed", err, "model", model, "duration", dur)
}

// LogSearch records a retrieval query and the number of hits returned.
func LogSearch(l Logger, mode string, k, hits int, dur time.Duration, err error) {
	outcome(OrNoOp(l), "search completed", "search failed", err, "mode", mode, "k", k, "hits", hits, "duration", dur)
}

// LogDecision records a branch decision.
func LogDecision(l Logger, branch, reason string, count, limit int, err error) {
	outcome(OrNoOp(l), "branch decision", "branch decision rejected", err, "branch", branch, "reason", reason, "count", count, "limit", limit)
}

// LogToolCall records execution details for a tool dispatch.
func (l *RAGLogger) LogToolCall(tool string, dur time.Duration, err error) {
	LogToolCall(l, tool, dur, err)
}

// LogModelCall records model call latency and success.
func (l *RAGLogger) LogModelCall(model string, dur time.Duration, err error) {
	LogModelCall(l, model, dur, err)
}

// LogSearch records a retrieval query.
func (l *RAGLogger) LogSearch(mode string, k, hits int, dur time.Duration, err error) {
	LogSearch(l, mode, k, hits, dur, err)
}

// LogDecision records a branch decision.
func (l *RAGLogger) LogDecision(branch, reason string, count, limit int, err error) {
	LogDecision(l, branch, reason, count, limit, err)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug discards the message.
func (NoOpLogger) Debug(string, ...any) {}

// Info discards the message.
func (NoOpLogger) Info(string, ...any) {}

// Warn discards the message.
func (NoOpLogger) Warn(string, ...any) {}

// Error discards the message.
func (NoOpLogger) Error(string, ...any) {}
