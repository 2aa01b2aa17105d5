package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// TransferExhaustedError reports that every attempt failed. It carries
// the final underlying error for diagnostics.
type TransferExhaustedError struct {
	Source   string
	Dest     string
	Attempts int
	LastErr  error
}

func (e *TransferExhaustedError) Error() string {
	return fmt.Sprintf("transfer %s -> %s exhausted after %d attempts: %v", e.Source, e.Dest, e.Attempts, e.LastErr)
}

func (e *TransferExhaustedError) Unwrap() error {
	return e.LastErr
}

// Copier performs one bulk directory copy. Implementations must be
// safely re-invocable against the same destination after a partial
// failure; a rerun resumes or overwrites, never merges into an
// inconsistent state.
type Copier interface {
	Copy(ctx context.Context, source, dest string) error
}

// Engine wraps a Copier in the bounded backoff retry loop.
type Engine struct {
	Logger *slog.Logger
	Copier Copier
	Policy Policy
	Sleep  SleepFunc // nil means real sleeps
}

func NewEngine(logger *slog.Logger, copier Copier, policy Policy) *Engine {
	return &Engine{Logger: logger, Copier: copier, Policy: policy}
}

// Transfer copies source into dest, retrying per the engine's policy.
// Context cancellation during a between-attempt wait surfaces as the
// context error, not as exhaustion.
func (e *Engine) Transfer(ctx context.Context, source, dest string) error {
	attempts, err := Retry(ctx, e.Policy, e.Sleep, func() error {
		copyErr := e.Copier.Copy(ctx, source, dest)
		if copyErr != nil && e.Logger != nil {
			e.Logger.WarnContext(ctx, "copy attempt failed", "source", source, "error", copyErr)
		}
		return copyErr
	})
	if err == nil {
		if e.Logger != nil {
			e.Logger.InfoContext(ctx, "transfer complete", "source", source, "dest", dest, "attempts", attempts)
		}
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &TransferExhaustedError{Source: source, Dest: dest, Attempts: attempts, LastErr: err}
}
