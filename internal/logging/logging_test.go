package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"yashubustudio/lostfound/classifier"
)

func TestNewLevels(t *testing.T) {
	t.Parallel()
	tests := []struct {
		cfg     classifier.LoggingConfig
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{classifier.LoggingConfig{}, zapcore.InfoLevel, zapcore.DebugLevel},
		{classifier.LoggingConfig{Level: "debug"}, zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{classifier.LoggingConfig{Level: "warn", JSON: true}, zapcore.WarnLevel, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		logger, err := New(tt.cfg)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(tt.enabled), tt.cfg.Level)
		assert.False(t, logger.Core().Enabled(tt.muted), tt.cfg.Level)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()
	_, err := New(classifier.LoggingConfig{Level: "chatty"})
	require.Error(t, err)
}
