package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFromStringRoundTrip(t *testing.T) {
	for _, l := range []Level{DEBUG, INFO, WARN, ERROR} {
		parsed, err := LevelFromString(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, parsed)
	}
	_, err := LevelFromString("TRACE")
	assert.Error(t, err)
}

func TestAtomicLevelSetGet(t *testing.T) {
	a := NewAtomicLevelAt(INFO)
	assert.Equal(t, INFO, a.Get())
	a.Set(ERROR)
	assert.Equal(t, ERROR, a.Get())
}

func TestIsDebugModeRespectsContext(t *testing.T) {
	assert.False(t, IsDebugMode(context.Background()))
	ctx := WithDebugMode(context.Background(), true)
	assert.True(t, IsDebugMode(ctx))
}

func TestBlankLoggerSublogger(t *testing.T) {
	logger := NewBlankLogger("api-test")
	sub := logger.Sublogger("child")
	assert.Equal(t, DEBUG, sub.GetLevel())
	sub.Info("does not panic without appenders configured beyond the blank default")
}
