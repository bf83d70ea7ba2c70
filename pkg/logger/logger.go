package logger

import (
	"context"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	// Format is "json" (default) or "console".
	Format string
	Output io.Writer
}

// Logger writes zerolog entries enriched with the fields carried by the
// context. Fields live on the context, not on the Logger, so a context
// decorated by the request middleware keeps its fields in every service.
type Logger struct {
	zl zerolog.Logger
}

type fieldsKey struct{}

// New creates a new Logger writing to opts.Output, stdout by default.
func New(opts Options) *Logger {
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(opts.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zl := zerolog.New(out).Level(level).With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()
	return &Logger{zl: zl}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// ParseLevel maps a level name to zerolog. Unknown names mean info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// fieldsFrom returns the key/value pairs stored on ctx.
func fieldsFrom(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(fieldsKey{}).([]any)
	return fields
}

// with returns a child of ctx carrying key=value. A repeated key replaces the
// earlier value.
func with(ctx context.Context, key string, value any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	parent := fieldsFrom(ctx)
	fields := make([]any, 0, len(parent)+2)
	for i := 0; i+1 < len(parent); i += 2 {
		if parent[i] != key {
			fields = append(fields, parent[i], parent[i+1])
		}
	}
	fields = append(fields, key, value)
	return context.WithValue(ctx, fieldsKey{}, fields)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return with(ctx, key, value)
}

// WithFields adds fields in key order so entries render the same way every time.
func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ctx = with(ctx, k, fields[k])
	}
	return ctx
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, "request_id", requestID)
}

func (l *Logger) WithUserID(ctx context.Context, userID string) context.Context {
	return with(ctx, "user_id", userID)
}

func (l *Logger) WithOrderNumber(ctx context.Context, orderNumber string) context.Context {
	return with(ctx, "order_number", orderNumber)
}

func (l *Logger) write(ctx context.Context, event *zerolog.Event, msg string) {
	if fields := fieldsFrom(ctx); len(fields) > 0 {
		event = event.Fields(slices.Clone(fields))
	}
	event.Msg(msg)
}

func (l *Logger) Debug(ctx context.Context, msg string) { l.write(ctx, l.zl.Debug(), msg) }

func (l *Logger) Info(ctx context.Context, msg string) { l.write(ctx, l.zl.Info(), msg) }

func (l *Logger) Warn(ctx context.Context, msg string) { l.write(ctx, l.zl.Warn(), msg) }

// Error logs msg at error level with err attached when non-nil.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.zl.Error()
	if err != nil {
		event = event.Err(err)
	}
	l.write(ctx, event, msg)
}
