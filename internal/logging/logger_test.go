package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"giftflow/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGet_BeforeInitializeIsNoop(t *testing.T) {
	SetRoot(nil, config.LoggingConfig{})
	// Must not panic and must not write anywhere.
	Get(CategoryCheckout).Info("ignored")
}

func TestGet_NamesCategory(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetRoot(zap.New(core), config.LoggingConfig{})
	t.Cleanup(func() { SetRoot(nil, config.LoggingConfig{}) })

	Get(CategoryDiscovery).Info("searching", zap.String("query", "scarf"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "discovery", entries[0].LoggerName)
	assert.Equal(t, "scarf", entries[0].ContextMap()["query"])
}

func TestGet_DisabledCategory(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetRoot(zap.New(core), config.LoggingConfig{Categories: map[string]bool{"card": false}})
	t.Cleanup(func() { SetRoot(nil, config.LoggingConfig{}) })

	Get(CategoryCard).Info("hidden")
	Get(CategoryRiddle).Info("shown")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "riddle", entries[0].LoggerName)
}

func TestBuild_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "giftflow.log")
	logger, err := Build(config.LoggingConfig{Level: "warn", Format: "json", File: path}, false)
	require.NoError(t, err)

	logger.Info("below threshold")
	logger.Warn("kept")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, "kept"))
	assert.False(t, strings.Contains(out, "below threshold"))
}

func TestBuild_VerboseForcesDebug(t *testing.T) {
	logger, err := Build(config.LoggingConfig{Level: "error", File: filepath.Join(t.TempDir(), "x.log")}, true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestBuild_InvalidLevel(t *testing.T) {
	_, err := Build(config.LoggingConfig{Level: "loud"}, false)
	assert.Error(t, err)
}

func TestTimer_StopWithThreshold(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetRoot(zap.New(core), config.LoggingConfig{})
	t.Cleanup(func() { SetRoot(nil, config.LoggingConfig{}) })

	timer := StartTimer(CategoryCheckout, "attempt")
	time.Sleep(2 * time.Millisecond)
	timer.StopWithThreshold(time.Nanosecond)

	warn := logs.FilterMessage("slow operation").All()
	require.Len(t, warn, 1)
	assert.Equal(t, "attempt", warn[0].ContextMap()["op"])
}
