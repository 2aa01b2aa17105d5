package transfer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/misty-step/rootstock/internal/lib"
)

func TestNewArea_CreatesRunScopedDir(t *testing.T) {
	parent := t.TempDir()
	area, err := NewArea(parent, "9f1c2d")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if area.Path != filepath.Join(parent, "staging-9f1c2d") {
		t.Errorf("unexpected staging path %s", area.Path)
	}
	if info, err := os.Stat(area.Path); err != nil || !info.IsDir() {
		t.Fatalf("staging dir missing: %v", err)
	}
}

func TestArea_ReleaseRemovesEverything(t *testing.T) {
	parent := t.TempDir()
	area, err := NewArea(parent, "run1")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(area.Path, "payload.bin"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := area.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, err := os.Stat(area.Path); !os.IsNotExist(err) {
		t.Errorf("staging dir still present after release")
	}
	// Second release is a no-op, not an error.
	if err := area.Release(); err != nil {
		t.Errorf("second release failed: %v", err)
	}
}

func TestNewArea_Validation(t *testing.T) {
	if _, err := NewArea("", "run"); !lib.IsValidationError(err) {
		t.Errorf("expected ValidationError for empty parent, got %v", err)
	}
	if _, err := NewArea(t.TempDir(), " "); !lib.IsValidationError(err) {
		t.Errorf("expected ValidationError for empty run id, got %v", err)
	}
}

func TestRsyncCopier_CommandShape(t *testing.T) {
	runner := &recordingRunner{}
	copier := &RsyncCopier{Runner: runner}

	if err := copier.Copy(context.Background(), "backup@host:/srv/data", "/staging/run"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(runner.requests) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(runner.requests))
	}
	req := runner.requests[0]
	if !req.Mutating {
		t.Error("copy must be marked mutating")
	}
	got := lib.FormatCommand(req.Cmd, req.Args)
	want := "rsync -a --partial --delete backup@host:/srv/data/ /staging/run"
	if got != want {
		t.Errorf("command = %q, want %q", got, want)
	}
}

type recordingRunner struct {
	requests []lib.RunRequest
	err      error
}

func (r *recordingRunner) Run(_ context.Context, req lib.RunRequest) (lib.RunResult, error) {
	r.requests = append(r.requests, req)
	return lib.RunResult{}, r.err
}
