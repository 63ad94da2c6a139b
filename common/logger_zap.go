package common

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ZapLoggerOptions configures the zap-based logger.
type ZapLoggerOptions struct {
	// LogFile is the path to the log file. If empty, logs go to stderr.
	LogFile string

	// MaxSize is the size in megabytes at which the log file is rotated.
	// Zero means lumberjack's default of 100 megabytes.
	MaxSize int

	// MaxBackups is the number of rotated files to keep. Zero keeps all.
	MaxBackups int

	// MaxAge is the number of days to keep rotated files. Zero keeps all.
	MaxAge int

	// Compress gzips rotated files.
	Compress bool

	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// Console selects the human-readable encoder instead of JSON.
	Console bool

	// Tee also writes to stderr when LogFile is set.
	Tee bool
}

// NewZapLogger creates a Logger backed by uber-go/zap with optional file rotation.
// The returned sync function flushes buffered entries and should be called on exit.
func NewZapLogger(opts ZapLoggerOptions) (Logger, func() error, error) {
	level := zapcore.InfoLevel
	if strings.TrimSpace(opts.Level) != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, err
		}
		level = parsed
	}

	var ws zapcore.WriteSyncer
	if opts.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
			Compress:   opts.Compress,
		}
		if opts.Tee {
			ws = zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stderr), zapcore.AddSync(lj))
		} else {
			ws = zapcore.AddSync(lj)
		}
	} else {
		ws = zapcore.Lock(os.Stderr)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if opts.Console {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	logger := zap.New(zapcore.NewCore(encoder, ws, level))
	return WrapZap(logger), logger.Sync, nil
}

// WrapZap adapts an existing zap logger to the Logger interface.
func WrapZap(l *zap.Logger) Logger {
	return &zapAdapter{s: l.Sugar()}
}

type zapAdapter struct {
	s *zap.SugaredLogger
}

func (z *zapAdapter) Debug(msg string, kv ...interface{}) {
	z.s.Debugw(msg, kv...)
}

func (z *zapAdapter) Info(msg string, kv ...interface{}) {
	z.s.Infow(msg, kv...)
}

func (z *zapAdapter) Warn(msg string, kv ...interface{}) {
	z.s.Warnw(msg, kv...)
}

func (z *zapAdapter) Error(msg string, kv ...interface{}) {
	z.s.Errorw(msg, kv...)
}
