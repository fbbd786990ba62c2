package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup("warn", &buf))
	t.Cleanup(func() { _ = Setup("info", os.Stderr) })

	logrus.Info("hidden")
	logrus.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Setup("loud", &bytes.Buffer{}))
}

func TestSetupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "clusterdash.log")
	closer, err := SetupFile("debug", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Setup("info", os.Stderr) })

	logrus.Debug("into the file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "into the file")
}
