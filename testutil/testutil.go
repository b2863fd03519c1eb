package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// SetupHome points MARKSYNC_HOME at a fresh temp dir for the duration of the
// test and returns it. The config, state and run subdirectories exist.
func SetupHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("MARKSYNC_HOME", home)
	t.Setenv("MARKSYNC_CONFIG", "")
	for _, sub := range []string{"config", "state", "run"} {
		require.NoError(t, os.MkdirAll(filepath.Join(home, sub), 0o700))
	}
	return home
}

// WriteSettings writes marksync.yml into the home created by SetupHome.
func WriteSettings(t *testing.T, home, content string) string {
	t.Helper()

	path := filepath.Join(home, "config", "marksync.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write settings: %v", err)
	}
	return path
}
