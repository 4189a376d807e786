package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestSetupLevels(t *testing.T) {
	require.NoError(t, Setup(LevelDebug, "console"))
	assert.True(t, L().Core().Enabled(zapcore.DebugLevel))

	SetLevel(LevelError)
	assert.False(t, L().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, L().Core().Enabled(zapcore.ErrorLevel))

	SetLevel("bogus")
	assert.True(t, L().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, L().Core().Enabled(zapcore.DebugLevel))
}
