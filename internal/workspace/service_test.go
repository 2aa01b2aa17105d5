package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/misty-step/rootstock/internal/lib"
)

type cloneRunner struct {
	calls []lib.RunRequest
	err   error
}

func (r *cloneRunner) Run(_ context.Context, req lib.RunRequest) (lib.RunResult, error) {
	r.calls = append(r.calls, req)
	if r.err != nil {
		return lib.RunResult{}, r.err
	}
	// Simulate git creating the checkout so the pin write has a target.
	if len(req.Args) > 0 && req.Args[0] == "clone" {
		dest := req.Args[len(req.Args)-1]
		if err := os.MkdirAll(filepath.Join(dest, ".git"), 0o755); err != nil {
			return lib.RunResult{}, err
		}
	}
	return lib.RunResult{}, nil
}

func TestEnsureDir_IdempotentCreate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "work")
	svc := NewService(nil, &cloneRunner{})

	for i := 0; i < 2; i++ {
		if err := svc.EnsureDir(dir); err != nil {
			t.Fatalf("run %d: expected no error, got %v", i, err)
		}
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %s, err=%v", dir, err)
	}
}

func TestEnsureCheckout_ClonesWhenAbsent(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "svc")
	runner := &cloneRunner{}
	svc := NewService(nil, runner)

	if err := svc.EnsureCheckout(context.Background(), "https://example.com/repo.git", dest, "v1.2.3"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected 1 clone call, got %d", len(runner.calls))
	}
	pin, err := os.ReadFile(filepath.Join(dest, lib.PinFileName))
	if err != nil {
		t.Fatalf("pin file not written: %v", err)
	}
	if strings.TrimSpace(string(pin)) != "v1.2.3" {
		t.Errorf("pin = %q, want v1.2.3", pin)
	}
}

func TestEnsureCheckout_ExistingCheckoutSkipsCloneButRewritesPin(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "svc")
	if err := os.MkdirAll(filepath.Join(dest, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, lib.PinFileName), []byte("v0.9.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := &cloneRunner{}
	svc := NewService(nil, runner)
	if err := svc.EnsureCheckout(context.Background(), "https://example.com/repo.git", dest, "v2.0.0"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("expected no clone for existing checkout, got %d calls", len(runner.calls))
	}
	pin, _ := os.ReadFile(filepath.Join(dest, lib.PinFileName))
	if strings.TrimSpace(string(pin)) != "v2.0.0" {
		t.Errorf("pin not rewritten: %q", pin)
	}
}

func TestEnsureCheckout_CloneFailure(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "svc")
	runner := &cloneRunner{err: &lib.CommandError{Command: "git", ExitCode: 128}}
	svc := NewService(nil, runner)

	err := svc.EnsureCheckout(context.Background(), "https://example.com/repo.git", dest, "v1.0.0")
	var wsErr *WorkspaceError
	if !errors.As(err, &wsErr) {
		t.Fatalf("expected WorkspaceError, got %v", err)
	}
	if wsErr.Op != "clone" {
		t.Errorf("expected clone op, got %q", wsErr.Op)
	}
}
