package sysconfig

import (
	"context"
	"strings"

	"github.com/misty-step/rootstock/internal/lib"
)

const defaultBrewBinary = "brew"

// Homebrew implements PackageInstaller with one batched brew install.
// brew's batch semantics are all-or-nothing; a single failing formula
// fails the whole invocation, which is exactly the granularity callers
// get in PackageInstallError.
type Homebrew struct {
	Runner lib.Runner
	Binary string
}

func (h *Homebrew) binary() string {
	if strings.TrimSpace(h.Binary) != "" {
		return h.Binary
	}
	return defaultBrewBinary
}

func (h *Homebrew) Install(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	args := append([]string{"install"}, names...)
	_, err := h.Runner.Run(ctx, lib.RunRequest{
		Cmd:      h.binary(),
		Args:     args,
		Mutating: true,
	})
	return err
}
