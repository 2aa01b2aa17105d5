// Package watcher detects when the downstream consumer has drained the
// staging area. The orchestrator and the consumer share no channel;
// their only rendezvous is the staging directory emptying out, so the
// watcher polls a CompletionSignal until it reports drained or a
// timeout expires.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// State describes where a watch loop is in its lifecycle.
type State string

const (
	StateWaiting  State = "waiting"
	StateComplete State = "complete"
	StateTimedOut State = "timed_out"
)

// TransferTimeoutError reports that the consumer never drained the
// staging area within the configured timeout.
type TransferTimeoutError struct {
	Dir    string
	Waited time.Duration
}

func (e *TransferTimeoutError) Error() string {
	return fmt.Sprintf("staging area %s not drained after %s", e.Dir, e.Waited)
}

// CompletionSignal is the capability the orchestrator uses to learn
// that staged data has been consumed. The directory-polling
// implementation below is the only one today; a consumer that can
// signal completion directly would implement the same interface.
type CompletionSignal interface {
	Drained(ctx context.Context) (bool, error)
	AwaitDrained(ctx context.Context, interval, timeout time.Duration) error
}

// evaluate decides the next state for one poll observation.
func evaluate(drained bool, elapsed, timeout time.Duration) State {
	switch {
	case drained:
		return StateComplete
	case elapsed >= timeout:
		return StateTimedOut
	default:
		return StateWaiting
	}
}

// DirSignal implements CompletionSignal by counting regular files in a
// directory. Hidden entries and subdirectories are excluded: the
// consumer contract is to remove the payload files it has ingested,
// and dotfiles (.DS_Store and friends) must not hold the watch open.
type DirSignal struct {
	Dir    string
	Logger *slog.Logger

	// Overridable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewDirSignal(logger *slog.Logger, dir string) *DirSignal {
	return &DirSignal{Dir: dir, Logger: logger}
}

func (s *DirSignal) Drained(_ context.Context) (bool, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return false, fmt.Errorf("poll staging area %s: %w", s.Dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || entry.Name()[0] == '.' {
			continue
		}
		if entry.Type().IsRegular() {
			return false, nil
		}
	}
	return true, nil
}

// AwaitDrained polls every interval until the directory is drained or
// timeout elapses. The poll runs before each sleep, so a pre-drained
// directory completes on the first check.
func (s *DirSignal) AwaitDrained(ctx context.Context, interval, timeout time.Duration) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		}
	}

	start := now()
	for {
		drained, err := s.Drained(ctx)
		if err != nil {
			return err
		}
		elapsed := now().Sub(start)

		switch evaluate(drained, elapsed, timeout) {
		case StateComplete:
			if s.Logger != nil {
				s.Logger.InfoContext(ctx, "staging area drained", "dir", s.Dir, "elapsed", elapsed)
			}
			return nil
		case StateTimedOut:
			return &TransferTimeoutError{Dir: s.Dir, Waited: elapsed}
		}

		if s.Logger != nil {
			s.Logger.DebugContext(ctx, "staging area still populated", "dir", s.Dir, "elapsed", elapsed)
		}
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}

var _ CompletionSignal = (*DirSignal)(nil)
