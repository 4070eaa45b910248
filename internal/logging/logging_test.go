package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLBeforeInitDiscards(t *testing.T) {
	globalLogger = nil
	assert.NotNil(t, L())
	assert.NotNil(t, S())
	assert.NoError(t, Sync())
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.log")
	require.NoError(t, Init(Config{Level: "debug", Format: "json", OutputPath: path}))
	t.Cleanup(func() { globalLogger = nil })

	S().Infow("listing", "path", "/root")
	_ = Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"path":"/root"`)
	assert.Contains(t, string(data), `"msg":"listing"`)
}

func TestSetLevel(t *testing.T) {
	_, err := Build(Config{Level: "not-a-level", OutputPath: filepath.Join(t.TempDir(), "x.log")})
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, globalLevel.Level())

	SetLevel("warn")
	assert.Equal(t, zapcore.WarnLevel, globalLevel.Level())
	SetLevel("bogus")
	assert.Equal(t, zapcore.WarnLevel, globalLevel.Level())
}
