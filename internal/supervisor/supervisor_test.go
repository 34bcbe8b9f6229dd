package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSidecar_MissingFile(t *testing.T) {
	pids, err := ReadSidecar(filepath.Join(t.TempDir(), "queuectl.db"))
	require.NoError(t, err)
	assert.Nil(t, pids)
}

func TestWriteAndReadSidecar(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "queuectl.db")
	s := New(dbPath)
	s.workers["worker-a"] = &managedWorker{ID: "worker-a", PID: 12345}

	require.NoError(t, s.writeSidecar())

	pids, err := ReadSidecar(dbPath)
	require.NoError(t, err)
	require.Len(t, pids, 1)
	assert.Equal(t, 12345, pids[0])
}

func TestIsAlive_CurrentProcess(t *testing.T) {
	assert.True(t, IsAlive(os.Getpid()))
}

func TestIsAlive_BogusPID(t *testing.T) {
	assert.False(t, IsAlive(999999))
}
