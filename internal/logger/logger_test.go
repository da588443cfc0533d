package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	SetLevel("info")
	Debugf("hidden %d", 1)
	Infof("[webhook] shown %d", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown 2")

	SetLevel("debug")
	Debugf("visible")
	assert.Contains(t, buf.String(), "visible")
	SetLevel("info")
}

func TestSetupFileWritesRotatingLog(t *testing.T) {
	defer SetOutput(os.Stdout)
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	closer, err := SetupFile(FileOptions{Path: path, MaxSizeMB: 1})
	require.NoError(t, err)
	require.NotNil(t, closer)
	Warnf("persisted %s", "line")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "persisted line")

	closer, err = SetupFile(FileOptions{})
	assert.NoError(t, err)
	assert.Nil(t, closer)
}
