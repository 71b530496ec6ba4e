package pid_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"codeberg.org/mutker/scened/internal/errors"
	"codeberg.org/mutker/scened/internal/pid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAndRemoveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scened.pid")

	require.NoError(t, pid.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, pid.RemoveFile(path))
	assert.NoFileExists(t, path)
	assert.NoError(t, pid.RemoveFile(path), "removing a missing file is not an error")
}

func TestWriteFileRejectsLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scened.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600))

	err := pid.WriteFile(path)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
}

func TestWriteFileReplacesStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scened.pid")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	require.NoError(t, pid.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}
