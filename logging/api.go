package logging

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Level is a logging severity, ordered the same way zapcore.Level is.
type Level int8

// The four severities this engine logs at. Ordered low to high.
const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String renders the level the way LoggerPatternConfig and CLI flags expect.
func (level Level) String() string {
	switch level {
	case DEBUG:
		return "Debug"
	case INFO:
		return "Info"
	case WARN:
		return "Warn"
	case ERROR:
		return "Error"
	default:
		return "Unknown"
	}
}

// AsZap converts to the equivalent zapcore.Level.
func (level Level) AsZap() zapcore.Level {
	switch level {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// LevelFromString parses the level names LoggerPatternConfig.Level and CLI
// flags use, in upper, title or lower case ("DEBUG", "Debug", "debug");
// an empty string means INFO.
func LevelFromString(s string) (Level, error) {
	switch s {
	case "DEBUG", "Debug", "debug":
		return DEBUG, nil
	case "INFO", "Info", "info", "":
		return INFO, nil
	case "WARN", "Warn", "warn":
		return WARN, nil
	case "ERROR", "Error", "error":
		return ERROR, nil
	default:
		return INFO, errUnknownLevel(s)
	}
}

type errUnknownLevel string

func (e errUnknownLevel) Error() string {
	return "unknown log level: " + string(e)
}

// AtomicLevel is a thread-safe, mutable Level, wrapping zap's own atomic
// level so that GlobalLogLevel and per-logger levels can share the same
// primitive zap uses to gate encoder construction.
type AtomicLevel struct {
	inner zap.AtomicLevel
}

// NewAtomicLevelAt constructs an AtomicLevel initialized to level.
func NewAtomicLevelAt(level Level) AtomicLevel {
	return AtomicLevel{inner: zap.NewAtomicLevelAt(level.AsZap())}
}

// Get returns the current level.
func (a AtomicLevel) Get() Level {
	switch a.inner.Level() {
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

// Set changes the level.
func (a AtomicLevel) Set(level Level) {
	a.inner.SetLevel(level.AsZap())
}

// Level returns the underlying zapcore.Level, satisfying zapcore.LevelEnabler
// callers that expect a *zap.AtomicLevel-shaped value.
func (a AtomicLevel) Level() zapcore.Level {
	return a.inner.Level()
}

// GlobalLogLevel gates every logger's zap.Config, so flipping it to Debug
// makes every already-constructed Logger start emitting debug lines without
// reconstructing them (impl.shouldLog and impl.AsZap both consult it).
var GlobalLogLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

type debugModeKey struct{}

// WithDebugMode returns a context that IsDebugMode reports true for,
// letting a single request/frame force verbose logging without touching a
// logger's persistent level.
func WithDebugMode(ctx context.Context, debug bool) context.Context {
	return context.WithValue(ctx, debugModeKey{}, debug)
}

// IsDebugMode reports whether ctx was tagged by WithDebugMode.
func IsDebugMode(ctx context.Context) bool {
	debug, ok := ctx.Value(debugModeKey{}).(bool)
	return ok && debug
}

// Appender is a sink a Logger writes formatted entries to. zapcore.Core
// satisfies this trivially (Write/Sync share the same signatures), which is
// how AsZap tees test observers and file appenders into the sugared logger.
type Appender interface {
	Write(entry zapcore.Entry, fields []zapcore.Field) error
	Sync() error
}

type stdoutAppender struct {
	encoder zapcore.Encoder
}

// NewStdoutAppender returns an Appender that writes console-formatted lines
// to stdout, matching NewLoggerConfig's encoder.
func NewStdoutAppender() Appender {
	return &stdoutAppender{encoder: zapcore.NewConsoleEncoder(NewZapLoggerConfig().EncoderConfig)}
}

// NewStdoutTestAppender is the same as NewStdoutAppender, kept distinct so
// tests can swap it out for a buffer-backed appender without touching
// production callers.
func NewStdoutTestAppender() Appender {
	return NewStdoutAppender()
}

func (a *stdoutAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := a.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	_, err = os.Stdout.Write(buf.Bytes())
	return err
}

func (a *stdoutAppender) Sync() error {
	return nil
}

// fileAppender writes console-formatted lines to a lumberjack-managed,
// size-rotated file, the sink debug_path configures.
type fileAppender struct {
	encoder zapcore.Encoder
	rotator *lumberjack.Logger
}

// NewFileAppender returns an Appender that rotates logs written to path
// through lumberjack, so a long-running engine's debug_path never grows
// unbounded.
func NewFileAppender(path string) Appender {
	return &fileAppender{
		encoder: zapcore.NewConsoleEncoder(NewZapLoggerConfig().EncoderConfig),
		rotator: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
		},
	}
}

func (a *fileAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := a.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	_, err = a.rotator.Write(buf.Bytes())
	return err
}

func (a *fileAppender) Sync() error {
	return nil
}

// NewZapLoggerConfig returns the console encoder config every Appender and
// impl.AsZap builds from, matching NewLoggerConfig's formatting exactly so
// stdout and zap.SugaredLogger output cannot drift apart.
func NewZapLoggerConfig() zap.Config {
	return NewLoggerConfig()
}

// Logger is the sugared, leveled logging interface every package in this
// module takes instead of *zap.SugaredLogger directly, so tests can swap in
// an observed logger and RegisterLogger/UpdateLoggerLevel can retune a
// running engine without restarting it.
type Logger interface {
	Sublogger(subname string) Logger
	Named(name string) *zap.SugaredLogger
	AsZap() *zap.SugaredLogger
	Desugar() *zap.Logger
	With(args ...interface{}) *zap.SugaredLogger
	WithOptions(opts ...zap.Option) *zap.SugaredLogger
	Sync() error
	AddAppender(appender Appender)

	SetLevel(level Level)
	GetLevel() Level
	Level() zapcore.Level

	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	CDebug(ctx context.Context, args ...interface{})
	CDebugf(ctx context.Context, template string, args ...interface{})
	CDebugw(ctx context.Context, msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	Fatal(args ...interface{})
	Fatalf(template string, args ...interface{})
	Fatalw(msg string, keysAndValues ...interface{})
}
