package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

type CheckResult struct {
	Name    string
	Status  Status
	Message string
}

// Report captures one preflight pass over the host.
type Report struct {
	Checks   []CheckResult
	Failures int
}

// PrivilegeError reports a disallowed elevated identity.
// Provisioning mutates per-user state (launch agents, Homebrew), so
// running it as root would scatter root-owned files through the target
// user's home.
type PrivilegeError struct {
	UID int
}

func (e *PrivilegeError) Error() string {
	return fmt.Sprintf("refusing to run with elevated privileges (uid=%d): run as the login user", e.UID)
}

// MissingDependencyError names an external tool absent from PATH.
type MissingDependencyError struct {
	Tool string
	Err  error
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("required tool %q not found on PATH", e.Tool)
}

func (e *MissingDependencyError) Unwrap() error {
	return e.Err
}

// DefaultTools are the external commands every provisioning run shells out to.
func DefaultTools() []string {
	return []string{"git", "rsync", "brew", "systemsetup"}
}

// Service validates the host before any mutation begins. It only
// inspects state; no check has side effects.
type Service struct {
	Logger *slog.Logger
	Tools  []string

	// Overridable for tests.
	UID      func() int
	LookPath func(name string) (string, error)
}

func NewService(logger *slog.Logger, tools []string) *Service {
	if len(tools) == 0 {
		tools = DefaultTools()
	}
	return &Service{Logger: logger, Tools: tools}
}

// Check runs every preflight check and returns the report plus the
// first failure as a typed error. The report always covers all checks
// so callers can render the full picture even on failure.
func (s *Service) Check(ctx context.Context) (Report, error) {
	uid := os.Getuid
	if s.UID != nil {
		uid = s.UID
	}
	lookPath := exec.LookPath
	if s.LookPath != nil {
		lookPath = s.LookPath
	}

	report := Report{}
	var firstErr error
	add := func(name string, status Status, msg string) {
		report.Checks = append(report.Checks, CheckResult{Name: name, Status: status, Message: msg})
		if status == StatusFail {
			report.Failures++
		}
	}

	if id := uid(); id == 0 {
		err := &PrivilegeError{UID: id}
		add("privilege", StatusFail, err.Error())
		firstErr = err
	} else {
		add("privilege", StatusPass, fmt.Sprintf("running as uid %d", id))
	}

	for _, tool := range s.Tools {
		path, err := lookPath(tool)
		if err != nil {
			missing := &MissingDependencyError{Tool: tool, Err: err}
			add("tool_"+tool, StatusFail, missing.Error())
			if firstErr == nil {
				firstErr = missing
			}
			continue
		}
		add("tool_"+tool, StatusPass, path)
	}

	if s.Logger != nil {
		s.Logger.DebugContext(ctx, "preflight complete", "checks", len(report.Checks), "failures", report.Failures)
	}
	return report, firstErr
}
