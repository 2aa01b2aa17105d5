package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/misty-step/rootstock/internal/lib"
)

// WorkspaceError reports a failed workspace or checkout operation.
type WorkspaceError struct {
	Op   string
	Path string
	Err  error
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WorkspaceError) Unwrap() error {
	return e.Err
}

// Service maintains the deterministic working directory and the pinned
// source checkout. Both operations tolerate re-invocation.
type Service struct {
	Logger *slog.Logger
	Runner lib.Runner
	Git    string // git binary, defaults to "git"
}

func NewService(logger *slog.Logger, runner lib.Runner) *Service {
	return &Service{Logger: logger, Runner: runner}
}

func (s *Service) git() string {
	if strings.TrimSpace(s.Git) != "" {
		return s.Git
	}
	return "git"
}

// EnsureDir creates the directory if absent; a present directory is success.
func (s *Service) EnsureDir(path string) error {
	if strings.TrimSpace(path) == "" {
		return &lib.ValidationError{Field: "workspace", Message: "must not be empty"}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return &WorkspaceError{Op: "create", Path: path, Err: err}
	}
	return nil
}

// EnsureCheckout clones repoURL into dest unless dest already holds a
// checkout, then writes the version pin file. The pin is rewritten on
// every run, pre-existing checkout or not, so the pin file is
// authoritative for which runtime version the service should track.
func (s *Service) EnsureCheckout(ctx context.Context, repoURL, dest, pin string) error {
	if strings.TrimSpace(repoURL) == "" {
		return &lib.ValidationError{Field: "repo", Message: "must not be empty"}
	}
	if strings.TrimSpace(dest) == "" {
		return &lib.ValidationError{Field: "checkout dir", Message: "must not be empty"}
	}

	if _, err := os.Stat(filepath.Join(dest, ".git")); err != nil {
		if _, runErr := s.Runner.Run(ctx, lib.RunRequest{
			Cmd:      s.git(),
			Args:     []string{"clone", repoURL, dest},
			Mutating: true,
		}); runErr != nil {
			return &WorkspaceError{Op: "clone", Path: dest, Err: runErr}
		}
		if s.Logger != nil {
			s.Logger.InfoContext(ctx, "cloned source checkout", "repo", repoURL, "dest", dest)
		}
	} else if s.Logger != nil {
		s.Logger.DebugContext(ctx, "checkout already present", "dest", dest)
	}

	return s.writePin(dest, pin)
}

func (s *Service) writePin(dest, pin string) error {
	pinPath := filepath.Join(dest, lib.PinFileName)
	if err := os.WriteFile(pinPath, []byte(strings.TrimSpace(pin)+"\n"), 0o644); err != nil {
		return &WorkspaceError{Op: "write pin", Path: pinPath, Err: err}
	}
	return nil
}
