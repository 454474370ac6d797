package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLogLevel("DEBUG"))
	assert.Equal(t, WARN, ParseLogLevel("warning"))
	assert.Equal(t, ERROR, ParseLogLevel("error"))
	assert.Equal(t, INFO, ParseLogLevel("unknown"))
}

func TestDefaultLogger_FormatsMessages(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := defaultLogger
	SetDefaultLogger(NewWithCore(core))
	defer func() { defaultLogger = prev }()

	Info("campaign %d funded by %s", 7, "0xabc")
	Warn("storage unavailable: %v", "quota")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "campaign 7 funded by 0xabc", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "storage unavailable: quota", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestNewWithLumberjackConfig_RequiresFile(t *testing.T) {
	_, err := NewWithLumberjackConfig(INFO, LumberjackConfig{})
	assert.Error(t, err)
}
