package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	lglog "github.com/gxo-labs/logguard/pkg/logguard/v1/log"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultLevel = slog.LevelInfo

// Output formats accepted by New.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return defaultLevel
	}
}

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string
	// Format is text, json or pretty. Pretty uses colours only on a terminal.
	Format string
	// Writer receives console output. Defaults to os.Stderr.
	Writer io.Writer
	// File, when set, adds a rotating JSON log file next to the console output.
	File string
	// MaxSizeMB, MaxBackups and MaxAgeDays control file rotation.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// defaultLogger implements lglog.Logger on top of slog.
type defaultLogger struct {
	*slog.Logger
}

var _ lglog.Logger = (*defaultLogger)(nil)

// NewLogger creates a Logger writing in formatStr to writer (os.Stderr when nil).
func NewLogger(levelStr string, formatStr string, writer io.Writer) lglog.Logger {
	return New(Options{Level: levelStr, Format: formatStr, Writer: writer})
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() lglog.Logger {
	return &defaultLogger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))}
}

// New creates a Logger from opts. Every record carries trace_id and span_id
// when the logging context holds a valid span.
func New(opts Options) lglog.Logger {
	level := parseLogLevel(opts.Level)
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	handler := consoleHandler(writer, opts.Format, level)
	if opts.File != "" {
		fileHandler := slog.NewJSONHandler(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}, &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevelAttribute})
		handler = slogmulti.Fanout(handler, fileHandler)
	}

	return &defaultLogger{
		Logger: slog.New(NewOtelHandler(handler)),
	}
}

func consoleHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	switch strings.ToLower(format) {
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevelAttribute})
	case FormatPretty:
		return tint.NewHandler(w, &tint.Options{
			Level: level,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if _, ok := attr.Value.Any().(error); attr.Key == "error" || ok {
					return tint.Attr(9, attr)
				}
				return attr
			},
			TimeFormat: time.RFC3339,
			NoColor:    !logColors(w),
		})
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevelAttribute})
	}
}

func logColors(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

var levelStringMap = map[slog.Level]string{
	slog.LevelDebug: "DEBUG",
	slog.LevelInfo:  "INFO",
	slog.LevelWarn:  "WARN",
	slog.LevelError: "ERROR",
}

// replaceLevelAttribute renders the level as an upper-case string ("INFO").
func replaceLevelAttribute(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level, ok := a.Value.Any().(slog.Level)
		if !ok {
			return a
		}
		levelStr, exists := levelStringMap[level]
		if !exists {
			levelStr = level.String()
		}
		a.Value = slog.StringValue(levelStr)
	}
	return a
}

func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	if l.Logger.Enabled(context.Background(), slog.LevelDebug) {
		l.Logger.Log(context.Background(), slog.LevelDebug, fmt.Sprintf(format, args...))
	}
}

func (l *defaultLogger) Infof(format string, args ...interface{}) {
	if l.Logger.Enabled(context.Background(), slog.LevelInfo) {
		l.Logger.Log(context.Background(), slog.LevelInfo, fmt.Sprintf(format, args...))
	}
}

func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	if l.Logger.Enabled(context.Background(), slog.LevelWarn) {
		l.Logger.Log(context.Background(), slog.LevelWarn, fmt.Sprintf(format, args...))
	}
}

// Errorf logs at ERROR. When the last argument is an error, it is also
// attached as structured attributes.
func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	if !l.Logger.Enabled(context.Background(), slog.LevelError) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	var attrs []any
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			attrs = errorAttrs(err)
		}
	}
	l.Logger.Log(context.Background(), slog.LevelError, msg, attrs...)
}

// errorAttrs flattens the fields of known error types into attributes.
func errorAttrs(err error) []any {
	attrs := []any{slog.String("error", err.Error())}
	var taskErr *lgerrors.TaskExecutionError
	var intrErr *lgerrors.InterruptedError
	var lcErr *lgerrors.LifecycleError
	switch {
	case errors.As(err, &intrErr):
		attrs = append(attrs, slog.String("error_type", "InterruptedError"), slog.String("outcome", intrErr.Outcome))
	case errors.As(err, &lcErr):
		attrs = append(attrs, slog.String("error_type", "LifecycleError"), slog.String("task_id", lcErr.TaskID))
	case errors.As(err, &taskErr):
		attrs = append(attrs, slog.String("error_type", "TaskExecutionError"))
		if taskErr.TaskName != "" {
			attrs = append(attrs, slog.String("task_name", taskErr.TaskName))
		}
	}
	return attrs
}

func (l *defaultLogger) Log(level slog.Level, msg string, args ...interface{}) {
	l.Logger.Log(context.Background(), level, msg, args...)
}

func (l *defaultLogger) LogCtx(ctx context.Context, level slog.Level, msg string, args ...interface{}) {
	l.Logger.Log(ctx, level, msg, args...)
}

func (l *defaultLogger) With(args ...interface{}) lglog.Logger {
	return &defaultLogger{Logger: l.Logger.With(args...)}
}

func (l *defaultLogger) IsEnabled(level slog.Level) bool {
	return l.Logger.Enabled(context.Background(), level)
}

// --- OtelHandler for Trace/Span ID Injection ---

// OtelHandler is a slog.Handler middleware that adds trace_id and span_id
// attributes when the record's context carries a valid span.
type OtelHandler struct {
	next slog.Handler
}

// NewOtelHandler wraps next.
func NewOtelHandler(next slog.Handler) *OtelHandler {
	return &OtelHandler{next: next}
}

func (h *OtelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *OtelHandler) Handle(ctx context.Context, record slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		record.AddAttrs(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return h.next.Handle(ctx, record)
}

func (h *OtelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewOtelHandler(h.next.WithAttrs(attrs))
}

func (h *OtelHandler) WithGroup(name string) slog.Handler {
	return NewOtelHandler(h.next.WithGroup(name))
}
