package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/misty-step/rootstock/internal/config"
	"github.com/misty-step/rootstock/internal/lib"
	"github.com/misty-step/rootstock/internal/preflight"
	"github.com/misty-step/rootstock/internal/provision"
	"github.com/misty-step/rootstock/internal/registrar"
	"github.com/misty-step/rootstock/internal/sysconfig"
	"github.com/misty-step/rootstock/internal/transfer"
	"github.com/misty-step/rootstock/internal/workspace"
)

type provisionOptions struct {
	Manifest     string
	Workspace    string
	PollInterval time.Duration
	DrainTimeout time.Duration
	MaxAttempts  int
	BaseDelay    time.Duration
	DryRun       bool
}

type provisionDeps struct {
	home         func() (string, error)
	username     func() (string, error)
	loadManifest func(path string) (config.Manifest, error)
	newRunID     func() string
	run          func(ctx context.Context, cfg provision.Config, paths lib.Paths, opts provisionOptions, errOut io.Writer) error
}

func defaultProvisionDeps() provisionDeps {
	return provisionDeps{
		home:         os.UserHomeDir,
		username:     currentUsername,
		loadManifest: config.Load,
		newRunID:     uuid.NewString,
		run:          runProvision,
	}
}

func currentUsername() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("resolve current user: %w", err)
	}
	return u.Username, nil
}

func newProvisionCmd() *cobra.Command {
	return newProvisionCmdWithDeps(defaultProvisionDeps())
}

func newProvisionCmdWithDeps(deps provisionDeps) *cobra.Command {
	opts := provisionOptions{
		Manifest:     lib.DefaultManifestName,
		PollInterval: 10 * time.Second,
		DrainTimeout: time.Hour,
		MaxAttempts:  3,
		BaseDelay:    10 * time.Second,
	}

	command := &cobra.Command{
		Use:   "provision [transfer-source]",
		Short: "Provision this host and optionally stage a bulk data transfer",
		Long: "Provision runs the idempotent host setup sequence (remote login,\n" +
			"package set, source checkout, service registration). With a\n" +
			"transfer source argument it also copies that source into a\n" +
			"staging area and waits for the registered service to drain it.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transferSource := ""
			if len(args) == 1 {
				transferSource = args[0]
			}

			cfg, paths, err := buildRunConfig(deps, opts, transferSource)
			if err != nil {
				return err
			}

			// The cleanup guard lives inside Run; cancelling this
			// context on SIGINT/SIGTERM is what lets it fire on an
			// interrupted run.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := deps.run(ctx, cfg, paths, opts, cmd.ErrOrStderr()); err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s provision failed: %v\n", time.Now().Format(time.RFC3339), err)
				return &exitError{Code: 1}
			}
			return nil
		},
	}

	command.Flags().StringVar(&opts.Manifest, "manifest", opts.Manifest, "Path to the host manifest")
	command.Flags().StringVar(&opts.Workspace, "workspace", "", "Workspace directory (default $HOME/rootstock)")
	command.Flags().DurationVar(&opts.PollInterval, "poll-interval", opts.PollInterval, "Staging area poll interval")
	command.Flags().DurationVar(&opts.DrainTimeout, "drain-timeout", opts.DrainTimeout, "How long to wait for the consumer to drain staging")
	command.Flags().IntVar(&opts.MaxAttempts, "max-attempts", opts.MaxAttempts, "Total transfer attempts before giving up")
	command.Flags().DurationVar(&opts.BaseDelay, "base-delay", opts.BaseDelay, "Wait before the first transfer retry (doubles each failure)")
	command.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Log mutating commands instead of executing them")

	return command
}

func buildRunConfig(deps provisionDeps, opts provisionOptions, transferSource string) (provision.Config, lib.Paths, error) {
	home, err := deps.home()
	if err != nil {
		return provision.Config{}, lib.Paths{}, fmt.Errorf("resolve home directory: %w", err)
	}
	username, err := deps.username()
	if err != nil {
		return provision.Config{}, lib.Paths{}, err
	}
	manifest, err := deps.loadManifest(opts.Manifest)
	if err != nil {
		return provision.Config{}, lib.Paths{}, err
	}
	paths, err := lib.NewPaths(home, opts.Workspace)
	if err != nil {
		return provision.Config{}, lib.Paths{}, err
	}

	checkoutDir := filepath.Join(paths.Workspace, manifest.Repo.Dir)
	program := manifest.Service.Program
	if !filepath.IsAbs(program) {
		program = filepath.Join(checkoutDir, program)
	}
	stdoutLog, stderrLog := paths.ServiceLogPaths(manifest.Service.Label)

	return provision.Config{
		RunID:       deps.newRunID(),
		User:        username,
		Workspace:   paths.Workspace,
		RepoURL:     manifest.Repo.URL,
		CheckoutDir: checkoutDir,
		VersionPin:  manifest.Repo.Pin,
		Packages:    manifest.Packages,
		Descriptor: registrar.Descriptor{
			Label:      manifest.Service.Label,
			Program:    program,
			Args:       manifest.Service.Args,
			WorkingDir: checkoutDir,
			StdoutLog:  stdoutLog,
			StderrLog:  stderrLog,
			User:       username,
			KeepAlive:  true,
		},
		LaunchConsumer: manifest.Service.Launch,
		TransferSource: transferSource,
		PollInterval:   opts.PollInterval,
		DrainTimeout:   opts.DrainTimeout,
	}, paths, nil
}

func runProvision(ctx context.Context, cfg provision.Config, paths lib.Paths, opts provisionOptions, errOut io.Writer) error {
	logger := slog.New(slog.NewTextHandler(errOut, nil))
	runner := &lib.ExecRunner{Logger: logger, DryRun: opts.DryRun}

	policy := transfer.Policy{
		MaxAttempts: opts.MaxAttempts,
		BaseDelay:   opts.BaseDelay,
		Backoff:     transfer.ExponentialBackoff,
	}

	svc := &provision.Service{
		Logger:    logger,
		Checks:    preflight.NewService(logger, nil),
		System:    sysconfig.NewService(logger, &sysconfig.SystemSetup{Runner: runner}, &sysconfig.Homebrew{Runner: runner}),
		Workspace: workspace.NewService(logger, runner),
		Registrar: registrar.NewService(logger, paths.AgentsDir),
		Engine:    transfer.NewEngine(logger, &transfer.RsyncCopier{Runner: runner}, policy),
		Progress: func(p provision.Progress) {
			_, _ = fmt.Fprintf(errOut, "[%s] %s\n", p.Stage, p.Message)
		},
	}
	if cfg.LaunchConsumer {
		svc.Launcher = &provision.ExecLauncher{
			Logger:    logger,
			Program:   cfg.Descriptor.Program,
			Args:      cfg.Descriptor.Args,
			Dir:       cfg.Descriptor.WorkingDir,
			StdoutLog: cfg.Descriptor.StdoutLog,
			StderrLog: cfg.Descriptor.StderrLog,
		}
	}

	return svc.Run(ctx, cfg)
}
