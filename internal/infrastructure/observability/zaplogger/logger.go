// Package zaplogger implements observability.Logger on top of zap.
package zaplogger

import (
	"github.com/Zhima-Mochi/escrowshop/internal/observability"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type logger struct{ l *zap.Logger }

// New wraps base, which may be nil. fixed fields are attached to every entry.
func New(base *zap.Logger, fixed ...observability.Field) observability.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	base = base.WithOptions(zap.AddCallerSkip(2))
	if len(fixed) > 0 {
		base = base.With(zapFields(fixed)...)
	}
	return &logger{l: base}
}

func (z *logger) With(fields ...observability.Field) observability.Logger {
	if len(fields) == 0 {
		return z
	}
	return &logger{l: z.l.With(zapFields(fields)...)}
}

func (z *logger) Debug(msg string, fields ...observability.Field) {
	z.write(zapcore.DebugLevel, msg, fields)
}
func (z *logger) Info(msg string, fields ...observability.Field) {
	z.write(zapcore.InfoLevel, msg, fields)
}
func (z *logger) Warn(msg string, fields ...observability.Field) {
	z.write(zapcore.WarnLevel, msg, fields)
}
func (z *logger) Error(msg string, fields ...observability.Field) {
	z.write(zapcore.ErrorLevel, msg, fields)
}

// write converts fields only for entries the core will keep.
func (z *logger) write(lvl zapcore.Level, msg string, fields []observability.Field) {
	if ce := z.l.Check(lvl, msg); ce != nil {
		ce.Write(zapFields(fields)...)
	}
}

// Sync flushes buffered entries; call it on shutdown.
func (z *logger) Sync() error {
	return z.l.Sync()
}

func zapFields(fs []observability.Field) []zap.Field {
	out := make([]zap.Field, len(fs))
	for i, f := range fs {
		switch v := f.Value.(type) {
		case error:
			out[i] = zap.NamedError(f.Key, v)
		case string:
			out[i] = zap.String(f.Key, v)
		default:
			out[i] = zap.Any(f.Key, v)
		}
	}
	return out
}
