package paths

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPortableHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("MARKSYNC_HOME", home)

	assert.Equal(t, filepath.Join(home, "config"), ConfigDir())
	assert.Equal(t, filepath.Join(home, "state"), StateDir())
	assert.Equal(t, filepath.Join(home, "run", "marksyncd.sock"), SocketPath())
	assert.Equal(t, filepath.Join(home, "state", "marksyncd.pid"), PidFilePath())
	assert.Equal(t, filepath.Join(home, "config", "state.yml"), StateFilePath())
}

func TestXDGHomes(t *testing.T) {
	base := t.TempDir()
	t.Setenv("MARKSYNC_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "cfg"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(base, "st"))
	t.Setenv("XDG_RUNTIME_DIR", filepath.Join(base, "run"))

	assert.Equal(t, filepath.Join(base, "cfg", "marksync"), ConfigDir())
	assert.Equal(t, filepath.Join(base, "st", "marksync"), StateDir())
	assert.Equal(t, filepath.Join(base, "run", "marksync", "marksyncd.sock"), SocketPath())
}

func TestDaemonLogPath(t *testing.T) {
	t.Setenv("MARKSYNC_HOME", "/tmp/ms")
	day := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "/tmp/ms/state/logs/marksyncd-2024-03-09.log", DaemonLogPath(day))
}

func TestEnsureDirs(t *testing.T) {
	t.Setenv("MARKSYNC_HOME", t.TempDir())
	assert.NoError(t, EnsureDirs())
	assert.DirExists(t, ConfigDir())
	assert.DirExists(t, LogDir())
	assert.DirExists(t, RuntimeDir())
}
