package agent

import (
	"context"
	"errors"
)

// ErrUserCancelled is returned when a run is cancelled via context cancellation.
var ErrUserCancelled = errors.New("user cancelled run")

func normalizeCancellationErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUserCancelled) || errors.Is(err, context.Canceled) {
		return ErrUserCancelled
	}
	return err
}

func checkContextCancelled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return normalizeCancellationErr(err)
	}
	return nil
}

func IsUserCancelled(err error) bool {
	return errors.Is(normalizeCancellationErr(err), ErrUserCancelled)
}

type sessionKey struct{}

// WithSession tags ctx with the session an invocation runs for, so tools can
// find the state they operate on.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func SessionFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionKey{}).(string)
	return id, ok && id != ""
}
