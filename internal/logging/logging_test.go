package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	quiet := New(false, "")
	assert.False(t, quiet.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, quiet.Core().Enabled(zapcore.InfoLevel))

	verbose := New(true, "")
	assert.True(t, verbose.Core().Enabled(zapcore.DebugLevel))
}

func TestLogFileIsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger := New(false, path)
	logger.Info("reconstruction started", zap.Int("n", 32))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(strings.Split(string(data), "\n")[0])

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "reconstruction started", entry[FieldMessage])
	assert.Equal(t, "info", entry[FieldLevel])
	assert.Equal(t, float64(32), entry["n"])
	assert.Contains(t, entry, FieldTimestamp)
}
