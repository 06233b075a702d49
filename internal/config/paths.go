// ABOUTME: Standard filesystem paths for pi-modes configuration and data
// ABOUTME: Resolves ~/.pi-modes/ for global and .pi-modes/ for project-local paths

package config

import (
	"os"
	"path/filepath"
)

const (
	globalDirName  = ".pi-modes"
	projectDirName = ".pi-modes"

	// HomeEnv overrides the global directory (used by tests and sandboxes).
	HomeEnv = "PI_MODES_HOME"
)

// GlobalDir returns the user-global config directory (~/.pi-modes/).
func GlobalDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", globalDirName)
	}
	return filepath.Join(home, globalDirName)
}

// ProjectDir returns the project-local config directory (.pi-modes/ in root).
func ProjectDir(projectRoot string) string {
	return filepath.Join(projectRoot, projectDirName)
}

// SessionsDir returns the sessions storage directory.
func SessionsDir() string {
	return filepath.Join(GlobalDir(), "sessions")
}

// SessionDir returns the storage directory for one session.
func SessionDir(sessionID string) string {
	return filepath.Join(SessionsDir(), sessionID)
}

// SnapshotsDir returns the per-session snapshot directory.
func SnapshotsDir(sessionID string) string {
	return filepath.Join(SessionDir(sessionID), "snapshots")
}

// MetricsFile returns the path of the persisted metrics aggregate.
func MetricsFile() string {
	return filepath.Join(GlobalDir(), "mode-metrics.json")
}

// GlobalConfigFile returns the path to the global config file.
func GlobalConfigFile() string {
	return filepath.Join(GlobalDir(), "config.json")
}

// ProjectConfigFile returns the path to the project-local config file.
func ProjectConfigFile(projectRoot string) string {
	return filepath.Join(ProjectDir(projectRoot), "config.json")
}

// WorkflowsDirs returns workflow definition directories in load order
// (global first, so project definitions override by id).
func WorkflowsDirs(projectRoot string) []string {
	return []string{
		filepath.Join(GlobalDir(), "workflows"),
		filepath.Join(ProjectDir(projectRoot), "workflows"),
	}
}

// HybridsDirs returns hybrid definition directories in load order.
func HybridsDirs(projectRoot string) []string {
	return []string{
		filepath.Join(GlobalDir(), "hybrids"),
		filepath.Join(ProjectDir(projectRoot), "hybrids"),
	}
}

// EnsureDir creates a directory and all parents if they don't exist.
// Uses 0o700 since session directories hold conversation excerpts.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o700)
}
