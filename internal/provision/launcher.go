package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Process is a handle to a launched consumer: a PID for diagnostics
// and a stop capability for when the staging area is drained.
type Process interface {
	PID() int
	Stop() error
}

// Launcher starts the downstream consumer process. The orchestrator
// does not supervise it beyond launch and an eventual stop signal; the
// handshake in between is the staging directory itself.
type Launcher interface {
	Start(ctx context.Context) (Process, error)
}

// ExecLauncher starts the consumer with os/exec, wiring its output to
// the same log files the service descriptor names.
type ExecLauncher struct {
	Logger    *slog.Logger
	Program   string
	Args      []string
	Dir       string
	StdoutLog string
	StderrLog string

	// StopGrace bounds how long Stop waits after SIGTERM before
	// escalating to SIGKILL. Zero means defaultStopGrace.
	StopGrace time.Duration
}

const defaultStopGrace = 10 * time.Second

func (l *ExecLauncher) Start(ctx context.Context) (Process, error) {
	stdout, err := os.OpenFile(l.StdoutLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open stdout log: %w", err)
	}
	stderr, err := os.OpenFile(l.StderrLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		_ = stdout.Close()
		return nil, fmt.Errorf("open stderr log: %w", err)
	}

	// Deliberately not CommandContext: the consumer is independent of
	// the orchestrator's context and is stopped explicitly via Stop.
	cmd := exec.Command(l.Program, l.Args...)
	cmd.Dir = l.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		_ = stderr.Close()
		return nil, err
	}
	// The child holds its own copies of the log descriptors.
	_ = stdout.Close()
	_ = stderr.Close()

	if l.Logger != nil {
		l.Logger.InfoContext(ctx, "consumer process started", "program", l.Program, "pid", cmd.Process.Pid)
	}
	grace := l.StopGrace
	if grace <= 0 {
		grace = defaultStopGrace
	}
	return &execProcess{cmd: cmd, grace: grace}, nil
}

type execProcess struct {
	cmd   *exec.Cmd
	grace time.Duration
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

// Stop sends SIGTERM and reaps the process. A consumer that already
// exited is success, not an error. A consumer that ignores SIGTERM is
// killed once the grace period elapses, so Stop always returns.
func (p *execProcess) Stop() error {
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}

	done := make(chan struct{})
	go func() {
		_ = p.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(p.grace):
		_ = p.cmd.Process.Kill()
		<-done
		return nil
	}
}
