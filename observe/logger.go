package observe

import (
	"context"
	"encoding/json"
	"io"
	"maps"
	"os"
	"sync"
	"time"
)

// LogLevel orders logging severities from debug up to error.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"debug", "info", "warn", "error"}

// ParseLogLevel maps a level name to its LogLevel. Unknown names fall
// back to info.
func ParseLogLevel(s string) LogLevel {
	for i, name := range levelNames {
		if name == s {
			return LogLevel(i)
		}
	}
	return LevelInfo
}

func (l LogLevel) String() string {
	if l < LevelDebug || l > LevelError {
		return "info"
	}
	return levelNames[l]
}

// structuredLogger writes one JSON object per line. Operation context
// attached via WithOp rides along as op.* keys on every entry.
type structuredLogger struct {
	level LogLevel
	out   io.Writer
	mu    sync.Mutex
	attrs map[string]any
}

// NewLogger creates a structured logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a structured logger with a custom writer.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return &structuredLogger{
		level: ParseLogLevel(level),
		out:   w,
		attrs: make(map[string]any),
	}
}

// WithOp returns a logger that stamps the operation's identity onto
// every entry. Empty optional fields stay off the output.
func (l *structuredLogger) WithOp(meta OpMeta) Logger {
	attrs := make(map[string]any, len(l.attrs)+5)
	maps.Copy(attrs, l.attrs)

	attrs["op.id"] = meta.OpID()
	attrs["op.name"] = meta.Name
	if meta.Kind != "" {
		attrs["op.kind"] = meta.Kind
	}
	if meta.Destination != "" {
		attrs["op.destination"] = meta.Destination
	}
	if meta.Policy != "" {
		attrs["op.policy"] = meta.Policy
	}

	return &structuredLogger{
		level: l.level,
		out:   l.out,
		attrs: attrs,
	}
}

func (l *structuredLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(LevelInfo, msg, fields)
}

func (l *structuredLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(LevelWarn, msg, fields)
}

func (l *structuredLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(LevelError, msg, fields)
}

func (l *structuredLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(LevelDebug, msg, fields)
}

func (l *structuredLogger) log(level LogLevel, msg string, fields []Field) {
	if level < l.level {
		return
	}

	entry := make(map[string]any, len(l.attrs)+len(fields)+3)
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg
	maps.Copy(entry, l.attrs)

	for _, f := range fields {
		if redactedKeys[f.Key] {
			entry[f.Key] = "[REDACTED]"
		} else {
			entry[f.Key] = f.Value
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		// A field value json cannot represent drops the whole entry.
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Write(data)
	l.out.Write([]byte("\n"))
}

// redactedKeys names field keys whose values never reach the output.
// Decision inputs can carry request bodies and credential material, so
// they are dropped wholesale rather than scrubbed.
var redactedKeys = map[string]bool{
	"input":         true,
	"inputs":        true,
	"password":      true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apiKey":        true,
	"credential":    true,
	"authorization": true,
}

// ExtendedLogger is a Logger that can bind operation context.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Ownership: WithOp returns a logger bound to OpMeta; returned logger may share state.
type ExtendedLogger interface {
	Logger
	WithOp(meta OpMeta) Logger
}

var _ ExtendedLogger = (*structuredLogger)(nil)
