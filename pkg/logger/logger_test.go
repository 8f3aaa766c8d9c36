package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel(" warn "))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("whatever"))
}

func TestSet_RoutesPackageFunctions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	Warn("queue full", zap.String("post", "p1"))
	Info("ready")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "queue full", entries[0].Message)
		assert.Equal(t, "p1", entries[0].ContextMap()["post"])
	}
}

func TestInit(t *testing.T) {
	assert.NoError(t, Init("debug", "console"))
	assert.NoError(t, Init("info", "json"))
	Set(nil)
}
