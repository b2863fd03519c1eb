// Package paths provides XDG-compliant path resolution for marksync.
//
// Resolution order:
// 1. MARKSYNC_HOME (portable root) → $MARKSYNC_HOME/{config,state}
// 2. XDG env vars → $XDG_*_HOME/marksync
// 3. Platform defaults → ~/.config/marksync, ~/.local/state/marksync
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const appName = "marksync"

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if home := os.Getenv("MARKSYNC_HOME"); home != "" {
		return filepath.Join(home, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if home := os.Getenv("MARKSYNC_HOME"); home != "" {
		return filepath.Join(home, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// ConfigDir returns the marksync configuration directory.
// Holds marksync.yml and the durable sync record (state.yml).
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	if os.Getenv("MARKSYNC_HOME") != "" {
		return base
	}
	return filepath.Join(base, appName)
}

// StateDir returns the marksync state directory.
// Used for the pid file and daemon logs.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	if os.Getenv("MARKSYNC_HOME") != "" {
		return base
	}
	return filepath.Join(base, appName)
}

// RuntimeDir returns the marksync runtime directory for the daemon socket.
// Uses XDG_RUNTIME_DIR when available (Linux), falls back to StateDir (macOS).
func RuntimeDir() string {
	if home := os.Getenv("MARKSYNC_HOME"); home != "" {
		return filepath.Join(home, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// StateFilePath returns the default location of the durable sync record.
func StateFilePath() string {
	return filepath.Join(ConfigDir(), "state.yml")
}

// SocketPath returns the path to the marksync daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "marksyncd.sock")
}

// PidFilePath returns the path to the marksync daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "marksyncd.pid")
}

// LogDir returns the directory the daemon writes its log files to.
func LogDir() string {
	return filepath.Join(StateDir(), "logs")
}

// DaemonLogPath returns the daemon log file for the given day.
func DaemonLogPath(day time.Time) string {
	return filepath.Join(LogDir(), fmt.Sprintf("marksyncd-%s.log", day.Format("2006-01-02")))
}

// EnsureDirs creates all marksync directories if they don't exist.
func EnsureDirs() error {
	dirs := []string{
		ConfigDir(),
		StateDir(),
		RuntimeDir(),
		LogDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
