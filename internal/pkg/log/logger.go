// Package log provides the leveled logger used across corehost.
// Output goes to stderr through zap.
package log

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the leveled printf-style logger accepted by every component.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Zap adapts a zap SugaredLogger to Logger.
type Zap struct {
	sugar *zap.SugaredLogger
}

var _ Logger = (*Zap)(nil)

// ParseLevel accepts debug, info, warn, error and silent. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return zapcore.InfoLevel, nil
	case "silent", "off":
		return zapcore.FatalLevel + 1, nil
	}
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

// New builds a stderr logger at the given level name.
func New(level string) (*Zap, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	cfg.Sampling = nil

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return &Zap{sugar: l.Named("corehost").Sugar()}, nil
}

// FromZap wraps an existing zap logger.
func FromZap(l *zap.Logger) *Zap {
	return &Zap{sugar: l.Sugar()}
}

// Named returns a child logger scoped to a component.
func (z *Zap) Named(name string) *Zap {
	return &Zap{sugar: z.sugar.Named(name)}
}

// Sync flushes buffered entries.
func (z *Zap) Sync() error {
	return z.sugar.Sync()
}

func (z *Zap) Debugf(format string, args ...any) { z.sugar.Debugf(format, args...) }
func (z *Zap) Infof(format string, args ...any)  { z.sugar.Infof(format, args...) }
func (z *Zap) Warnf(format string, args ...any)  { z.sugar.Warnf(format, args...) }
func (z *Zap) Errorf(format string, args ...any) { z.sugar.Errorf(format, args...) }

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return FromZap(zap.NewNop())
}

// Named scopes l when it supports naming and returns it unchanged otherwise.
func Named(l Logger, name string) Logger {
	if l == nil {
		return Nop()
	}
	if z, ok := l.(*Zap); ok {
		return z.Named(name)
	}
	return l
}
