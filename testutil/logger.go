// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package testutil

import (
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestLogger satisfies parex.Logger on top of a console zap logger tagged
// with the test name.
type TestLogger struct {
	*zap.Logger
}

// Intercept registers a hook invoked for every emitted entry, so tests can
// assert on what was logged.
func (t *TestLogger) Intercept(hook func(entry zapcore.Entry) error) {
	t.Logger = t.Logger.WithOptions(zap.Hooks(hook))
}

// Silence raises the level so only fatal entries pass.
func (t *TestLogger) Silence() {
	atomicLevel := zap.NewAtomicLevelAt(zapcore.FatalLevel)
	t.Logger = zap.New(t.Logger.Core(), zap.AddCaller(), zap.IncreaseLevel(atomicLevel))
}

func (t *TestLogger) Trace(msg string, fields ...zap.Field) {
	t.Logger.Debug(msg, fields...)
}

func (t *TestLogger) Verbo(msg string, fields ...zap.Field) {
	t.Logger.Debug(msg, fields...)
}

func MakeLogger(t *testing.T) *TestLogger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	encoderConfig.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(strings.ToUpper(l.String()))
	}
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("[01-02|15:04:05.000]")
	encoderConfig.ConsoleSeparator = " "
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	atomicLevel := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), atomicLevel)

	logger := zap.New(core, zap.AddCaller())
	logger = logger.With(zap.String("test", t.Name()))

	return &TestLogger{Logger: logger}
}
