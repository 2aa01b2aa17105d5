package sysconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ConfigurationError reports a system setting that could not be applied
// or did not hold after applying.
type ConfigurationError struct {
	Setting string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configure %s: %v", e.Setting, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// PackageInstallError reports a failed batch install. The installer is
// all-or-nothing, so the error names the whole invocation rather than
// individual packages.
type PackageInstallError struct {
	Command string
	Err     error
}

func (e *PackageInstallError) Error() string {
	return fmt.Sprintf("package install failed: %s: %v", e.Command, e.Err)
}

func (e *PackageInstallError) Unwrap() error {
	return e.Err
}

// RemoteAccess toggles the host's remote login setting.
type RemoteAccess interface {
	Status(ctx context.Context) (bool, error)
	Enable(ctx context.Context) error
}

// PackageInstaller installs a package set in one batch.
type PackageInstaller interface {
	Install(ctx context.Context, names []string) error
}

// Service applies named, individually idempotent system-state changes.
// Every step follows the same contract: query current state, mutate
// only when needed, re-query to confirm the mutation took.
type Service struct {
	Logger   *slog.Logger
	Remote   RemoteAccess
	Packages PackageInstaller
}

func NewService(logger *slog.Logger, remote RemoteAccess, packages PackageInstaller) *Service {
	return &Service{Logger: logger, Remote: remote, Packages: packages}
}

// EnsureRemoteAccess enables remote login unless it already is enabled.
// The already-enabled case performs zero mutations.
func (s *Service) EnsureRemoteAccess(ctx context.Context) error {
	enabled, err := s.Remote.Status(ctx)
	if err != nil {
		return &ConfigurationError{Setting: "remote login", Err: err}
	}
	if enabled {
		if s.Logger != nil {
			s.Logger.DebugContext(ctx, "remote login already enabled")
		}
		return nil
	}

	if err := s.Remote.Enable(ctx); err != nil {
		return &ConfigurationError{Setting: "remote login", Err: err}
	}

	enabled, err = s.Remote.Status(ctx)
	if err != nil {
		return &ConfigurationError{Setting: "remote login", Err: fmt.Errorf("verify after enable: %w", err)}
	}
	if !enabled {
		return &ConfigurationError{Setting: "remote login", Err: errors.New("enable reported success but remote login is still off")}
	}
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "remote login enabled")
	}
	return nil
}

// EnsurePackages issues one batched install for the full package set.
func (s *Service) EnsurePackages(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	if err := s.Packages.Install(ctx, names); err != nil {
		return &PackageInstallError{Command: "brew install " + strings.Join(names, " "), Err: err}
	}
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "package set installed", "packages", names)
	}
	return nil
}
