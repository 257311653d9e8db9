package logger

import (
	"sync"

	"go.uber.org/zap"
)

// Log levels accepted in log.level.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Output formats accepted in log.format.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Options struct {
	Level   string
	Format  string // console (default) or json
	Service string // added to every entry as service_name
}

// Init builds the process logger. Only the first call to Init or Get configures it.
func Init(o Options) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(o)
	})
	return globalLogger
}

// Get returns the process logger, creating a console logger at level if none exists yet.
func Get(level string) *Logger {
	return Init(Options{Level: level, Format: FormatConsole})
}

// Nop returns a logger that discards everything, for tests and optional wiring.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(kv...)}
}

// Named returns a child logger with the component name appended.
func (l *Logger) Named(name string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.Named(name)}
}
