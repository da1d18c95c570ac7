package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestVerbosityToLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, VerbosityToLevel(0))
	assert.Equal(t, zapcore.InfoLevel, VerbosityToLevel(1))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(2))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(5))
}

func TestInitialize(t *testing.T) {
	require.NoError(t, Initialize(true, VerbosityDebug))
	require.NotNil(t, Logger)
	assert.True(t, JSONOutput)

	require.NoError(t, Initialize(false, VerbosityUser))
	assert.False(t, JSONOutput)
}

func TestHelpersSafeBeforeInitialize(t *testing.T) {
	// The package-level helpers must not panic even with the no-op logger.
	Infow("message", "key", "value")
	Debugw("message")
	Errorf("formatted %d", 1)
}
