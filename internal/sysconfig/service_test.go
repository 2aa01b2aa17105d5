package sysconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/misty-step/rootstock/internal/lib"
)

type fakeRemote struct {
	states      []bool // consumed by successive Status calls
	statusErr   error
	enableErr   error
	statusCalls int
	enableCalls int
}

func (f *fakeRemote) Status(context.Context) (bool, error) {
	f.statusCalls++
	if f.statusErr != nil {
		return false, f.statusErr
	}
	if len(f.states) == 0 {
		return false, nil
	}
	state := f.states[0]
	if len(f.states) > 1 {
		f.states = f.states[1:]
	}
	return state, nil
}

func (f *fakeRemote) Enable(context.Context) error {
	f.enableCalls++
	return f.enableErr
}

type fakeInstaller struct {
	installed [][]string
	err       error
}

func (f *fakeInstaller) Install(_ context.Context, names []string) error {
	f.installed = append(f.installed, append([]string(nil), names...))
	return f.err
}

func TestEnsureRemoteAccess_AlreadyEnabledIsPureRead(t *testing.T) {
	remote := &fakeRemote{states: []bool{true}}
	svc := NewService(nil, remote, &fakeInstaller{})

	for i := 0; i < 3; i++ {
		if err := svc.EnsureRemoteAccess(context.Background()); err != nil {
			t.Fatalf("run %d: expected no error, got %v", i, err)
		}
	}
	if remote.enableCalls != 0 {
		t.Errorf("expected 0 enable calls, got %d", remote.enableCalls)
	}
	if remote.statusCalls != 3 {
		t.Errorf("expected 3 status calls, got %d", remote.statusCalls)
	}
}

func TestEnsureRemoteAccess_EnablesAndVerifies(t *testing.T) {
	remote := &fakeRemote{states: []bool{false, true}}
	svc := NewService(nil, remote, &fakeInstaller{})

	if err := svc.EnsureRemoteAccess(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if remote.enableCalls != 1 {
		t.Errorf("expected 1 enable call, got %d", remote.enableCalls)
	}
	if remote.statusCalls != 2 {
		t.Errorf("expected query + verify, got %d status calls", remote.statusCalls)
	}
}

func TestEnsureRemoteAccess_PostConditionNotObserved(t *testing.T) {
	remote := &fakeRemote{states: []bool{false, false}}
	svc := NewService(nil, remote, &fakeInstaller{})

	err := svc.EnsureRemoteAccess(context.Background())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestEnsureRemoteAccess_EnableFailure(t *testing.T) {
	remote := &fakeRemote{states: []bool{false}, enableErr: errors.New("setremotelogin denied")}
	svc := NewService(nil, remote, &fakeInstaller{})

	err := svc.EnsureRemoteAccess(context.Background())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestEnsurePackages_SingleBatch(t *testing.T) {
	installer := &fakeInstaller{}
	svc := NewService(nil, &fakeRemote{}, installer)

	if err := svc.EnsurePackages(context.Background(), []string{"git", "jq", "rsync"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(installer.installed) != 1 {
		t.Fatalf("expected exactly one batched install, got %d", len(installer.installed))
	}
	if len(installer.installed[0]) != 3 {
		t.Errorf("expected 3 packages in batch, got %v", installer.installed[0])
	}
}

func TestEnsurePackages_EmptySetIsNoop(t *testing.T) {
	installer := &fakeInstaller{}
	svc := NewService(nil, &fakeRemote{}, installer)

	if err := svc.EnsurePackages(context.Background(), nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(installer.installed) != 0 {
		t.Errorf("expected no install call, got %d", len(installer.installed))
	}
}

func TestEnsurePackages_FailureNamesInvocation(t *testing.T) {
	installer := &fakeInstaller{err: errors.New("no formula found")}
	svc := NewService(nil, &fakeRemote{}, installer)

	err := svc.EnsurePackages(context.Background(), []string{"git", "nosuch"})
	var installErr *PackageInstallError
	if !errors.As(err, &installErr) {
		t.Fatalf("expected PackageInstallError, got %v", err)
	}
	if installErr.Command != "brew install git nosuch" {
		t.Errorf("expected command in error, got %q", installErr.Command)
	}
}

func TestParseRemoteLogin(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    bool
		wantErr bool
	}{
		{name: "on", output: "Remote Login: On\n", want: true},
		{name: "off", output: "Remote Login: Off\n", want: false},
		{name: "garbage", output: "unexpected", wantErr: true},
		{name: "empty", output: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRemoteLogin(tt.output)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("parseRemoteLogin(%q) = %v, want %v", tt.output, got, tt.want)
			}
		})
	}
}

type recordingRunner struct {
	requests []lib.RunRequest
	result   lib.RunResult
	err      error
}

func (r *recordingRunner) Run(_ context.Context, req lib.RunRequest) (lib.RunResult, error) {
	r.requests = append(r.requests, req)
	return r.result, r.err
}

func TestSystemSetup_StatusParsesOutput(t *testing.T) {
	runner := &recordingRunner{result: lib.RunResult{Stdout: "Remote Login: Off\n"}}
	setup := &SystemSetup{Runner: runner}

	on, err := setup.Status(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if on {
		t.Error("expected remote login off")
	}
	if len(runner.requests) != 1 || runner.requests[0].Mutating {
		t.Errorf("status must be a non-mutating query, got %+v", runner.requests)
	}
}

func TestHomebrew_InstallIsOneMutatingCall(t *testing.T) {
	runner := &recordingRunner{}
	brew := &Homebrew{Runner: runner}

	if err := brew.Install(context.Background(), []string{"git", "jq"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(runner.requests) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(runner.requests))
	}
	req := runner.requests[0]
	if !req.Mutating {
		t.Error("install must be marked mutating")
	}
	if lib.FormatCommand(req.Cmd, req.Args) != "brew install git jq" {
		t.Errorf("unexpected command: %s", lib.FormatCommand(req.Cmd, req.Args))
	}
}
