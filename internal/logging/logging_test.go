package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	out := filepath.Join(t.TempDir(), "log.json")

	logger, err := New(Config{Level: "debug", Encoding: "json", OutputPaths: []string{out}})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1), "debug level should be enabled")
	logger.Info("hello")
	require.NoError(t, logger.Sync())
	assert.FileExists(t, out)
}

func TestNewDefaults(t *testing.T) {
	logger, err := New(Config{})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1), "debug level should be disabled by default")
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	logger, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.Same(t, logger, OrNop(logger))
}
