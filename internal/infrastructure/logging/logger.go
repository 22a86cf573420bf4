package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the kernel's root logger. Subsystems get named children of it
// through Component.
type Logger struct {
	*zap.Logger
}

// Config selects the level and format of kernel logs.
type Config struct {
	Level       string // zap level name; "info" when empty
	Development bool
	// OutputPaths defaults to stderr, keeping logs off the console device.
	OutputPaths []string
}

// New builds a logger. Development mode writes colored console lines with
// callers; otherwise entries are JSON.
func New(cfg Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, err
		}
	}
	out := cfg.OutputPaths
	if len(out) == 0 {
		out = []string{"stderr"}
	}

	enc := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "subsystem",
		MessageKey:     "msg",
		CallerKey:      zapcore.OmitKey,
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	encoding := "json"
	if cfg.Development {
		encoding = "console"
		enc.CallerKey = "caller"
		enc.StacktraceKey = "stacktrace"
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          encoding,
		EncoderConfig:     enc,
		OutputPaths:       out,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.Development,
		DisableStacktrace: !cfg.Development,
	}.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// WithBoot tags every entry with the machine's boot id.
func (l *Logger) WithBoot(bootID string) *Logger {
	return &Logger{Logger: l.With(zap.String("boot", bootID))}
}

// Component returns the named sub-logger for one kernel subsystem.
func (l *Logger) Component(name string) *zap.Logger {
	return l.Named(name)
}
