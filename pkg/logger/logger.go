// Package logger provides component-tagged structured logging for mediassist.
//
// Every entry carries a "component" field ("chat", "board", "identity", ...)
// so the output of both engines can be filtered from one stream.
package logger

import (
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[string]LogLevel{
	"debug":   DEBUG,
	"info":    INFO,
	"warn":    WARN,
	"warning": WARN,
	"error":   ERROR,
}

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base  = build("console")
)

func build(format string) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

// Init rebuilds the global logger with the given level name and encoding
// ("json" or "console"). Unknown level names keep the current level.
func Init(levelName, format string) {
	if l, ok := ParseLevel(levelName); ok {
		SetLevel(l)
	}
	mu.Lock()
	base = build(format)
	mu.Unlock()
}

// ParseLevel maps a config level name to a LogLevel.
func ParseLevel(name string) (LogLevel, bool) {
	l, ok := levelNames[strings.ToLower(strings.TrimSpace(name))]
	return l, ok
}

func SetLevel(l LogLevel) {
	switch l {
	case DEBUG:
		level.SetLevel(zapcore.DebugLevel)
	case WARN:
		level.SetLevel(zapcore.WarnLevel)
	case ERROR:
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

func GetLevel() LogLevel {
	switch level.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel:
		return ERROR
	default:
		return INFO
	}
}

// Sync flushes buffered entries. Call it before the process exits.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

func toFields(component string, fields map[string]any) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	out = append(out, zap.String("component", component))

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

func logAt(l zapcore.Level, component, msg string, fields map[string]any) {
	mu.RLock()
	lg := base
	mu.RUnlock()
	if ce := lg.Check(l, msg); ce != nil {
		ce.Write(toFields(component, fields)...)
	}
}

func DebugC(component, msg string) { logAt(zapcore.DebugLevel, component, msg, nil) }

func DebugCF(component, msg string, fields map[string]any) {
	logAt(zapcore.DebugLevel, component, msg, fields)
}

func InfoC(component, msg string) { logAt(zapcore.InfoLevel, component, msg, nil) }

func InfoCF(component, msg string, fields map[string]any) {
	logAt(zapcore.InfoLevel, component, msg, fields)
}

func WarnC(component, msg string) { logAt(zapcore.WarnLevel, component, msg, nil) }

func WarnCF(component, msg string, fields map[string]any) {
	logAt(zapcore.WarnLevel, component, msg, fields)
}

func ErrorC(component, msg string) { logAt(zapcore.ErrorLevel, component, msg, nil) }

func ErrorCF(component, msg string, fields map[string]any) {
	logAt(zapcore.ErrorLevel, component, msg, fields)
}
