package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLifecycle(t *testing.T) *LifecycleManager {
	t.Helper()

	cfg := testConfig(t)
	d, _ := createTestDaemon(t, cfg, Options{})
	t.Cleanup(func() { _ = d.options.Listener.Close() })

	return NewLifecycleManager(d)
}

func TestNewLifecycleManager(t *testing.T) {
	lm := newTestLifecycle(t)
	assert.Equal(t, filepath.Join(lm.daemon.config.DataDir, "brainmemory.pid"), lm.pidFile)
}

func TestLifecycleManagerStartStop(t *testing.T) {
	lm := newTestLifecycle(t)

	require.NoError(t, lm.Start())

	_, err := os.Stat(lm.pidFile)
	assert.NoError(t, err)
	assert.True(t, lm.IsRunning())

	pid, err := lm.GetPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, lm.Stop())

	_, err = os.Stat(lm.pidFile)
	assert.True(t, os.IsNotExist(err))
	assert.False(t, lm.IsRunning())

	// Removing an absent file is fine
	assert.NoError(t, lm.Stop())
}

func TestLifecycleManagerRefusesLiveProcess(t *testing.T) {
	lm := newTestLifecycle(t)

	// The test runner's parent is alive for the duration of the test
	require.NoError(t, os.WriteFile(lm.pidFile, []byte(strconv.Itoa(os.Getppid())), 0644))

	err := lm.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestLifecycleManagerReplacesStalePIDFile(t *testing.T) {
	lm := newTestLifecycle(t)
	require.NoError(t, os.WriteFile(lm.pidFile, []byte("0"), 0644))

	require.NoError(t, lm.Start())
	defer lm.Stop()

	pid, err := lm.GetPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadPID(filepath.Join(dir, "missing.pid"))
	assert.True(t, os.IsNotExist(err))

	bad := filepath.Join(dir, "bad.pid")
	require.NoError(t, os.WriteFile(bad, []byte("abc"), 0644))
	_, err = ReadPID(bad)
	assert.Error(t, err)

	good := filepath.Join(dir, "good.pid")
	require.NoError(t, os.WriteFile(good, []byte("42\n"), 0644))
	pid, err := ReadPID(good)
	require.NoError(t, err)
	assert.Equal(t, 42, pid)
}

func TestProcessAlive(t *testing.T) {
	assert.True(t, ProcessAlive(os.Getpid()))
	assert.False(t, ProcessAlive(0))
	assert.False(t, ProcessAlive(-1))
}
