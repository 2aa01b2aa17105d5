package sysconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/misty-step/rootstock/internal/lib"
)

const defaultSystemSetupBinary = "systemsetup"

// SystemSetup implements RemoteAccess with the macOS systemsetup tool.
type SystemSetup struct {
	Runner lib.Runner
	Binary string
}

func (s *SystemSetup) binary() string {
	if strings.TrimSpace(s.Binary) != "" {
		return s.Binary
	}
	return defaultSystemSetupBinary
}

func (s *SystemSetup) Status(ctx context.Context) (bool, error) {
	result, err := s.Runner.Run(ctx, lib.RunRequest{
		Cmd:  s.binary(),
		Args: []string{"-getremotelogin"},
	})
	if err != nil {
		return false, err
	}
	return parseRemoteLogin(result.Stdout)
}

func (s *SystemSetup) Enable(ctx context.Context) error {
	_, err := s.Runner.Run(ctx, lib.RunRequest{
		Cmd:      s.binary(),
		Args:     []string{"-setremotelogin", "on"},
		Mutating: true,
	})
	return err
}

// parseRemoteLogin reads systemsetup -getremotelogin output, which is a
// single line "Remote Login: On" or "Remote Login: Off".
func parseRemoteLogin(output string) (bool, error) {
	trimmed := strings.ToLower(strings.TrimSpace(output))
	switch {
	case strings.HasSuffix(trimmed, ": on"):
		return true, nil
	case strings.HasSuffix(trimmed, ": off"):
		return false, nil
	}
	return false, fmt.Errorf("unrecognized remote login state %q", strings.TrimSpace(output))
}
