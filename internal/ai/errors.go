package ai

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for provider and orchestration failures.
var (
	// ErrBackendUnavailable covers network, auth and service-down failures.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrInvalidModel is returned when a model is outside the provider's catalog.
	ErrInvalidModel = errors.New("invalid model")

	// ErrModelNotSelected is returned when a prompt is run with no resolvable model.
	ErrModelNotSelected = errors.New("model not selected")

	// ErrNotApplicable is returned by operations a provider does not support,
	// e.g. API key handling on a keyless backend.
	ErrNotApplicable = errors.New("not applicable for this provider")

	// ErrNoProvidersAvailable means the registry is empty and nothing can be generated.
	ErrNoProvidersAvailable = errors.New("no AI providers available")

	// ErrAborted is returned when the user cancels an interactive prompt.
	ErrAborted = errors.New("aborted by user")
)

// Error records which provider and operation produced an error.
type Error struct {
	Provider string // "ollama", "google", ...
	Op       string // "models", "prompt", ...
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Unavailable wraps err as a BackendUnavailable failure of provider/op.
// A hint is attached when given so the CLI can tell the user what to check.
func Unavailable(provider, op string, err error, hint string) error {
	wrapped := errors.Mark(errors.WithStack(&Error{Provider: provider, Op: op, Err: err}), ErrBackendUnavailable)
	if hint != "" {
		wrapped = errors.WithHint(wrapped, hint)
	}
	return wrapped
}

// IsAborted reports whether err came from the user cancelling a prompt.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}
