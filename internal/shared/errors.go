package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// Access obstacle errors
	ErrAccessObstacle = fmt.Errorf("access obstacle")
	ErrPinRequired    = fmt.Errorf("unlock PIN required")
	ErrWrongPin       = fmt.Errorf("unlock PIN rejected")
	ErrLockedOut      = fmt.Errorf("locked out after unlock")

	// Visibility errors
	ErrVisibilityUpdateFailed = fmt.Errorf("visibility update failed")

	// API and service errors
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrNetworkTransient = fmt.Errorf("transient network failure")

	// Input validation errors
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrMissingArgument    = fmt.Errorf("missing required argument")
	ErrUnknownPersona     = fmt.Errorf("unknown persona state")
	ErrSelectionMalformed = fmt.Errorf("selection file malformed")

	// Scheduler errors
	ErrSchedulerStopped = fmt.Errorf("scheduler stopped")
)

// IsFatal reports whether err must end the process rather than the current cycle.
func IsFatal(err error) bool {
	for _, target := range []error{
		ErrAuthFailed, ErrNotAuthenticated, ErrPinRequired, ErrWrongPin, ErrLockedOut, ErrVisibilityUpdateFailed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsTransient reports whether err is a request failure that the next cycle may retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetworkTransient) && !IsFatal(err)
}
