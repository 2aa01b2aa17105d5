package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/misty-step/rootstock/internal/lib"
)

// Area is the ephemeral staging directory data passes through between
// the transfer engine and the downstream consumer. Exactly one run
// owns an area; Release is the only cleanup path.
type Area struct {
	Path string
}

// NewArea creates the staging directory under parent, named by the run
// identifier so concurrent leftovers from a crashed run never collide.
func NewArea(parent, runID string) (*Area, error) {
	if strings.TrimSpace(parent) == "" {
		return nil, &lib.ValidationError{Field: "staging parent", Message: "must not be empty"}
	}
	if strings.TrimSpace(runID) == "" {
		return nil, &lib.ValidationError{Field: "run id", Message: "must not be empty"}
	}
	path := filepath.Join(parent, "staging-"+runID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create staging area %s: %w", path, err)
	}
	return &Area{Path: path}, nil
}

// Release removes the staging directory and everything in it. Safe to
// call more than once.
func (a *Area) Release() error {
	return os.RemoveAll(a.Path)
}
