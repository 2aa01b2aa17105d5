package lib

import (
	"path/filepath"
	"strings"
)

const (
	// DefaultWorkspaceDirName is the workspace directory created under $HOME.
	DefaultWorkspaceDirName = "rootstock"
	// DefaultManifestName is the host manifest looked up in the workspace or cwd.
	DefaultManifestName = "rootstock.yaml"
	// PinFileName is the version pin written inside the checkout on every run.
	PinFileName = ".runtime-version"
)

// Paths centralizes the host locations rootstock reads and writes.
type Paths struct {
	Home      string
	Workspace string
	AgentsDir string // launchd agent plists
	LogsDir   string // service stdout/stderr logs
}

func NewPaths(home, workspace string) (Paths, error) {
	home = strings.TrimSpace(home)
	if home == "" {
		return Paths{}, &ValidationError{Field: "home", Message: "must not be empty"}
	}
	workspace = strings.TrimSpace(workspace)
	if workspace == "" {
		workspace = filepath.Join(home, DefaultWorkspaceDirName)
	}
	return Paths{
		Home:      home,
		Workspace: workspace,
		AgentsDir: filepath.Join(home, "Library", "LaunchAgents"),
		LogsDir:   filepath.Join(home, "Library", "Logs"),
	}, nil
}

// ServiceLogPaths returns the stdout and stderr log files for a service label.
func (p Paths) ServiceLogPaths(label string) (string, string) {
	dir := filepath.Join(p.LogsDir, label)
	return filepath.Join(dir, "stdout.log"), filepath.Join(dir, "stderr.log")
}
