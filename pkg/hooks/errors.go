package hooks

import (
	"fmt"

	"github.com/noqturne/noqturne/pkg/errors"
)

// Common hooks errors.
var (
	// ErrHookTypeEmpty is returned when a hooks type is empty.
	ErrHookTypeEmpty = fmt.Errorf("hooks type cannot be empty")

	// ErrHookDependencyEmpty is returned when a hook is not bound to a dependency.
	ErrHookDependencyEmpty = fmt.Errorf("hook dependency cannot be empty")
)

// ErrUnsupportedHookEvent is returned when an unsupported hooks event is used.
func ErrUnsupportedHookEvent(event string) error {
	return errors.Wrapf(errors.ErrHookExecution, "unsupported hooks event: %s", event)
}
