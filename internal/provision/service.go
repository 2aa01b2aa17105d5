package provision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/misty-step/rootstock/internal/preflight"
	"github.com/misty-step/rootstock/internal/registrar"
	"github.com/misty-step/rootstock/internal/transfer"
	"github.com/misty-step/rootstock/internal/watcher"
)

// Stage identifies a single provisioning step.
type Stage string

const (
	StagePreflight    Stage = "preflight"
	StageRemoteAccess Stage = "remote_access"
	StagePackages     Stage = "packages"
	StageWorkspace    Stage = "workspace"
	StageCheckout     Stage = "checkout"
	StageRegister     Stage = "register"
	StageTransfer     Stage = "transfer"
	StageAwaitDrain   Stage = "await_drain"
	StageComplete     Stage = "complete"
)

// Progress reports incremental status for one run.
type Progress struct {
	Stage   Stage
	Message string
}

// StageError pins a failure to the stage it happened in, so the
// terminal diagnostic can name the failing step.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Config is the immutable run configuration, constructed once at
// startup and threaded through every component. No component reads
// ambient environment state.
type Config struct {
	RunID          string
	User           string
	Workspace      string
	RepoURL        string
	CheckoutDir    string
	VersionPin     string
	Packages       []string
	Descriptor     registrar.Descriptor
	LaunchConsumer bool
	TransferSource string
	PollInterval   time.Duration
	DrainTimeout   time.Duration
}

// TransferRequested reports whether a bulk transfer was asked for.
// True iff a source location was supplied.
func (c Config) TransferRequested() bool {
	return strings.TrimSpace(c.TransferSource) != ""
}

// Collaborator contracts. Concrete implementations live in their own
// packages; the orchestrator only sequences them.
type (
	PreflightChecker interface {
		Check(ctx context.Context) (preflight.Report, error)
	}
	SystemConfigurator interface {
		EnsureRemoteAccess(ctx context.Context) error
		EnsurePackages(ctx context.Context, names []string) error
	}
	WorkspaceManager interface {
		EnsureDir(path string) error
		EnsureCheckout(ctx context.Context, repoURL, dest, pin string) error
	}
	ServiceRegistrar interface {
		Register(ctx context.Context, d registrar.Descriptor) (string, error)
	}
	TransferEngine interface {
		Transfer(ctx context.Context, source, dest string) error
	}
)

// Service runs the full provisioning sequence.
type Service struct {
	Logger    *slog.Logger
	Checks    PreflightChecker
	System    SystemConfigurator
	Workspace WorkspaceManager
	Registrar ServiceRegistrar
	Engine    TransferEngine
	Launcher  Launcher // optional; used when cfg.LaunchConsumer is set
	Progress  func(Progress)

	// NewSignal builds the completion capability for a staging dir.
	// Defaults to directory polling.
	NewSignal func(dir string) watcher.CompletionSignal

	// NewArea builds the staging area. Defaults to transfer.NewArea.
	NewArea func(parent, runID string) (*transfer.Area, error)
}

func (s *Service) emit(stage Stage, message string) {
	if s.Progress != nil {
		s.Progress(Progress{Stage: stage, Message: message})
	}
}

func (s *Service) newSignal(dir string) watcher.CompletionSignal {
	if s.NewSignal != nil {
		return s.NewSignal(dir)
	}
	return watcher.NewDirSignal(s.Logger, dir)
}

func (s *Service) newArea(parent, runID string) (*transfer.Area, error) {
	if s.NewArea != nil {
		return s.NewArea(parent, runID)
	}
	return transfer.NewArea(parent, runID)
}

// Run executes the ordered provisioning steps. The first failure
// aborts the run; the staging cleanup guard still fires on every exit
// path, including context cancellation.
func (s *Service) Run(ctx context.Context, cfg Config) error {
	s.emit(StagePreflight, "validating host")
	if _, err := s.Checks.Check(ctx); err != nil {
		return &StageError{Stage: StagePreflight, Err: err}
	}

	s.emit(StageRemoteAccess, "ensuring remote login is enabled")
	if err := s.System.EnsureRemoteAccess(ctx); err != nil {
		return &StageError{Stage: StageRemoteAccess, Err: err}
	}

	s.emit(StagePackages, fmt.Sprintf("installing %d packages", len(cfg.Packages)))
	if err := s.System.EnsurePackages(ctx, cfg.Packages); err != nil {
		return &StageError{Stage: StagePackages, Err: err}
	}

	s.emit(StageWorkspace, "ensuring workspace "+cfg.Workspace)
	if err := s.Workspace.EnsureDir(cfg.Workspace); err != nil {
		return &StageError{Stage: StageWorkspace, Err: err}
	}

	s.emit(StageCheckout, "ensuring checkout at "+cfg.CheckoutDir)
	if err := s.Workspace.EnsureCheckout(ctx, cfg.RepoURL, cfg.CheckoutDir, cfg.VersionPin); err != nil {
		return &StageError{Stage: StageCheckout, Err: err}
	}

	s.emit(StageRegister, "registering service "+cfg.Descriptor.Label)
	if _, err := s.Registrar.Register(ctx, cfg.Descriptor); err != nil {
		return &StageError{Stage: StageRegister, Err: err}
	}

	if !cfg.TransferRequested() {
		s.emit(StageComplete, "provision complete (no transfer requested)")
		return nil
	}
	return s.runTransfer(ctx, cfg)
}

func (s *Service) runTransfer(ctx context.Context, cfg Config) error {
	area, err := s.newArea(cfg.Workspace, cfg.RunID)
	if err != nil {
		return &StageError{Stage: StageTransfer, Err: err}
	}
	// The guard, not any individual step, owns staging cleanup. It
	// fires exactly once on every exit path.
	defer func() {
		if releaseErr := area.Release(); releaseErr != nil && s.Logger != nil {
			s.Logger.WarnContext(ctx, "staging cleanup failed", "dir", area.Path, "error", releaseErr)
		}
	}()

	s.emit(StageTransfer, fmt.Sprintf("copying %s into staging", cfg.TransferSource))
	if err := s.Engine.Transfer(ctx, cfg.TransferSource, area.Path); err != nil {
		return &StageError{Stage: StageTransfer, Err: err}
	}

	var proc Process
	if cfg.LaunchConsumer {
		if s.Launcher == nil {
			return &StageError{Stage: StageAwaitDrain, Err: fmt.Errorf("manifest requests a consumer launch but no launcher is configured")}
		}
		proc, err = s.Launcher.Start(ctx)
		if err != nil {
			return &StageError{Stage: StageAwaitDrain, Err: fmt.Errorf("start consumer: %w", err)}
		}
		if s.Logger != nil {
			s.Logger.InfoContext(ctx, "consumer launched", "pid", proc.PID())
		}
	}

	s.emit(StageAwaitDrain, "waiting for consumer to drain staging area")
	signal := s.newSignal(area.Path)
	if err := signal.AwaitDrained(ctx, cfg.PollInterval, cfg.DrainTimeout); err != nil {
		if proc != nil {
			if stopErr := proc.Stop(); stopErr != nil && s.Logger != nil {
				s.Logger.WarnContext(ctx, "consumer stop failed", "error", stopErr)
			}
		}
		return &StageError{Stage: StageAwaitDrain, Err: err}
	}

	if proc != nil {
		if stopErr := proc.Stop(); stopErr != nil && s.Logger != nil {
			s.Logger.WarnContext(ctx, "consumer stop failed", "error", stopErr)
		}
	}
	s.emit(StageComplete, "transfer consumed; provision complete")
	return nil
}
