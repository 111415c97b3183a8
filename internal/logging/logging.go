package logging

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

func (l Level) String() string {
	if n, ok := levelNames[l]; ok {
		return n
	}
	return "info"
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps a level name to a Level. Unknown names yield LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "d", "verbose", "v":
		return LevelDebug
	case "warn", "warning", "w":
		return LevelWarn
	case "error", "e":
		return LevelError
	default:
		return LevelInfo
	}
}

// Options configures a Logger. Format is "json" (default) or "console".
type Options struct {
	Writer io.Writer
	Level  Level
	Format string
	Fields map[string]interface{}
}

// Logger is a leveled structured logger. Loggers derived with WithFields share
// the level and output of their parent.
type Logger struct {
	z     *zap.Logger
	level zap.AtomicLevel
}

func New(opts Options) *Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.LevelKey = "lvl"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	var enc zapcore.Encoder
	if opts.Format == "console" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	level := zap.NewAtomicLevelAt(opts.Level.zapLevel())
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level)
	l := &Logger{z: zap.New(core), level: level}
	if len(opts.Fields) > 0 {
		l.z = l.z.With(toFields(opts.Fields)...)
	}
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{z: zap.NewNop(), level: zap.NewAtomicLevel()}
}

func toFields(m map[string]interface{}) []zap.Field {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, m[k]))
	}
	return fields
}

// WithFields returns a child logger that adds fields to every entry.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	if l == nil {
		return Default().WithFields(fields)
	}
	return &Logger{z: l.z.With(toFields(fields)...), level: l.level}
}

// SetLevel changes the level of l and every logger derived from it.
func (l *Logger) SetLevel(lvl Level) {
	l.level.SetLevel(lvl.zapLevel())
}

func (l *Logger) Enabled(lvl Level) bool {
	return l.z.Core().Enabled(lvl.zapLevel())
}

func (l *Logger) Debug(msg string, extra map[string]interface{}) { l.z.Debug(msg, toFields(extra)...) }
func (l *Logger) Info(msg string, extra map[string]interface{})  { l.z.Info(msg, toFields(extra)...) }
func (l *Logger) Warn(msg string, extra map[string]interface{})  { l.z.Warn(msg, toFields(extra)...) }
func (l *Logger) Error(msg string, extra map[string]interface{}) { l.z.Error(msg, toFields(extra)...) }

func (l *Logger) Sync() error {
	return l.z.Sync()
}

var (
	defaultMu     sync.Mutex
	defaultLogger *Logger
)

// Init replaces the process-wide default logger used by the CLI.
func Init(opts Options) *Logger {
	l := New(opts)
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
	return l
}

// Default returns the process-wide logger, creating an info-level JSON
// logger on stderr on first use.
func Default() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(Options{Level: LevelInfo})
	}
	return defaultLogger
}

// Top-level convenience wrappers
func Debug(msg string, extra map[string]interface{}) { Default().Debug(msg, extra) }
func Info(msg string, extra map[string]interface{})  { Default().Info(msg, extra) }
func Warn(msg string, extra map[string]interface{})  { Default().Warn(msg, extra) }
func Error(msg string, extra map[string]interface{}) { Default().Error(msg, extra) }

func SetLevel(lvl Level) {
	Default().SetLevel(lvl)
}
