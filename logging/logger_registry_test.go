package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLoggerAndLookup(t *testing.T) {
	logger := NewLogger("registry-test.a")
	found, ok := LoggerNamed("registry-test.a")
	require.True(t, ok)
	assert.Equal(t, logger, found)

	_, ok = LoggerNamed("registry-test.does-not-exist")
	assert.False(t, ok)
}

func TestUpdateLoggerLevel(t *testing.T) {
	NewLogger("registry-test.b")
	require.NoError(t, UpdateLoggerLevel("registry-test.b", DEBUG))
	logger, ok := LoggerNamed("registry-test.b")
	require.True(t, ok)
	assert.Equal(t, DEBUG, logger.GetLevel())

	assert.Error(t, UpdateLoggerLevel("registry-test.no-such-logger", DEBUG))
}

func TestRegistryUpdatePatternWins(t *testing.T) {
	reg := newRegistry()
	reg.registerLogger("a.b.c", NewLogger("pattern-test.a.b.c"))
	reg.registerLogger("a.b.d", NewLogger("pattern-test.a.b.d"))

	cfg := []LoggerPatternConfig{{Pattern: "a.*", Level: "WARN"}}
	errLogger := NewLogger("pattern-test.errors")
	require.NoError(t, reg.Update(cfg, errLogger))

	l, ok := reg.loggerNamed("a.b.c")
	require.True(t, ok)
	assert.Equal(t, WARN, l.GetLevel())

	l, ok = reg.loggerNamed("a.b.d")
	require.True(t, ok)
	assert.Equal(t, WARN, l.GetLevel())
}

func TestRegistryUpdateFallsBackToInfoWhenUnmatched(t *testing.T) {
	reg := newRegistry()
	logger := NewLogger("pattern-test.unmatched")
	logger.SetLevel(DEBUG)
	reg.registerLogger("pattern-test.unmatched", logger)

	cfg := []LoggerPatternConfig{{Pattern: "other.*", Level: "ERROR"}}
	require.NoError(t, reg.Update(cfg, NewLogger("pattern-test.errors2")))
	assert.Equal(t, INFO, logger.GetLevel())
}

func TestRegistryUpdateSkipsInvalidPattern(t *testing.T) {
	reg := newRegistry()
	reg.registerLogger("pattern-test.x", NewLogger("pattern-test.x"))
	cfg := []LoggerPatternConfig{{Pattern: "..invalid", Level: "WARN"}}
	require.NoError(t, reg.Update(cfg, NewLogger("pattern-test.errors3")))
}
