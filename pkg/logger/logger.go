// Package logger configures the process-wide slog.Logger used by every
// package in this module: the pipeline executor, adapters, and the
// config loader all log through slog.Default() rather than taking a
// logger as a dependency, so Init is called once at startup and nowhere
// else.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

var defaultLogger *slog.Logger

// modulePathPrefix identifies stack frames belonging to this module, so
// third-party library chatter (koanf's own diagnostics, the underlying
// HTTP transport) can be suppressed at non-debug levels.
const modulePathPrefix = "github.com/researchd/researchd"

// ParseLevel maps a config string to a slog.Level. An unrecognized value
// falls back to Warn rather than erroring, since a typo in a log-level
// setting shouldn't be fatal.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, nil
	}
}

// moduleFilter wraps a slog.Handler and, below debug level, drops
// records whose call site isn't in this module's own source tree. At
// debug level everything passes through, since dependency-level detail
// is exactly what debug logging is for.
type moduleFilter struct {
	next     slog.Handler
	minLevel slog.Level
}

func (f *moduleFilter) Enabled(ctx context.Context, level slog.Level) bool {
	if level < f.minLevel {
		return false
	}
	return f.next.Enabled(ctx, level)
}

func (f *moduleFilter) Handle(ctx context.Context, record slog.Record) error {
	if f.minLevel <= slog.LevelDebug || fromThisModule(record.PC) {
		return f.next.Handle(ctx, record)
	}
	return nil
}

func (f *moduleFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &moduleFilter{next: f.next.WithAttrs(attrs), minLevel: f.minLevel}
}

func (f *moduleFilter) WithGroup(name string) slog.Handler {
	return &moduleFilter{next: f.next.WithGroup(name), minLevel: f.minLevel}
}

// fromThisModule reports whether pc (a slog.Record's call site) resolved
// to a function or file under this module's package path.
func fromThisModule(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	file, _ := fn.FileLine(pc)
	return strings.Contains(fn.Name(), modulePathPrefix) || strings.Contains(file, "researchd/")
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m"
	case level >= slog.LevelWarn:
		return "\033[33m"
	case level >= slog.LevelInfo:
		return "\033[36m"
	default:
		return "\033[90m"
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func normalizeLevel(level slog.Level) string {
	s := level.String()
	if s == "WARNING" {
		s = "WARN"
	}
	return strings.ToUpper(s)
}

func writeAttrs(buf *strings.Builder, record slog.Record) {
	record.Attrs(func(a slog.Attr) bool {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
		return true
	})
}

// lineHandler renders one record per line as LEVEL MESSAGE key=val..., in
// the given color (empty for none), optionally prefixed by a timestamp.
// It's used for both colored-terminal and plain-file output: only
// useColor and withTime vary.
type lineHandler struct {
	fallback slog.Handler
	writer   io.Writer
	useColor bool
	withTime bool
}

func (h *lineHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.fallback.Enabled(ctx, level)
}

func (h *lineHandler) Handle(ctx context.Context, record slog.Record) error {
	var buf strings.Builder

	if h.withTime && !record.Time.IsZero() {
		buf.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	}

	levelStr := normalizeLevel(record.Level)
	if h.useColor {
		buf.WriteString(levelColor(record.Level))
		buf.WriteString(levelStr)
		buf.WriteString("\033[0m")
	} else {
		buf.WriteString(levelStr)
	}
	buf.WriteString(" ")
	buf.WriteString(record.Message)
	writeAttrs(&buf, record)
	buf.WriteString("\n")

	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &lineHandler{
		fallback: h.fallback.WithAttrs(attrs),
		writer:   h.writer,
		useColor: h.useColor,
		withTime: h.withTime,
	}
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	return &lineHandler{
		fallback: h.fallback.WithGroup(name),
		writer:   h.writer,
		useColor: h.useColor,
		withTime: h.withTime,
	}
}

// Init installs the process-wide logger. format selects the rendering:
// "simple" (level + message, the default), "verbose" (adds a
// timestamp), or anything else falls back to slog's standard text
// encoding. On a terminal, "simple" and "verbose" get ANSI color; other
// formats use slog's text encoding without color. Non-terminal output (a
// redirected file, a container's stdout capture) is never colored, and
// there "verbose" also uses slog's text encoding. Below debug level, records whose call site isn't in this
// module are dropped so a noisy dependency can't drown out the pipeline's
// own logs.
func Init(level slog.Level, output *os.File, format string) {
	simple := format == "simple" || format == ""
	verbose := format == "verbose"
	color := isTerminal(output)

	base := slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && a.Value.String() == "WARNING" {
				return slog.String("level", "WARN")
			}
			return a
		},
	})

	var handler slog.Handler = base
	switch {
	case color && (simple || verbose):
		handler = &lineHandler{fallback: base, writer: output, useColor: true, withTime: verbose}
	case !color && simple:
		handler = &lineHandler{fallback: base, writer: output, useColor: false, withTime: false}
	}

	defaultLogger = slog.New(&moduleFilter{next: handler, minLevel: level})
	slog.SetDefault(defaultLogger)
}

// OpenLogFile opens path for appending, creating it if necessary, and
// returns a cleanup func that closes it.
func OpenLogFile(path string) (*os.File, func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// GetLogger returns the process-wide logger, initializing it with
// info-level simple output to stderr on first use if Init was never
// called explicitly.
func GetLogger() *slog.Logger {
	if defaultLogger == nil {
		Init(slog.LevelInfo, os.Stderr, "simple")
	}
	return defaultLogger
}
