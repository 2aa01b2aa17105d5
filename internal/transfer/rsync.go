package transfer

import (
	"context"
	"strings"

	"github.com/misty-step/rootstock/internal/lib"
)

const defaultRsyncBinary = "rsync"

// RsyncCopier copies a directory tree with rsync. --partial keeps
// interrupted files so a rerun resumes instead of restarting, and
// --delete removes destination entries the source no longer has, which
// keeps a retried copy from merging stale and fresh state.
type RsyncCopier struct {
	Runner lib.Runner
	Binary string
}

func (c *RsyncCopier) binary() string {
	if strings.TrimSpace(c.Binary) != "" {
		return c.Binary
	}
	return defaultRsyncBinary
}

func (c *RsyncCopier) Copy(ctx context.Context, source, dest string) error {
	// Trailing slash: copy the tree's contents, not the directory itself.
	src := strings.TrimRight(source, "/") + "/"
	_, err := c.Runner.Run(ctx, lib.RunRequest{
		Cmd:      c.binary(),
		Args:     []string{"-a", "--partial", "--delete", src, dest},
		Mutating: true,
	})
	return err
}
