package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session and notification core
var (
	// Session errors
	ErrTransientRefresh  = errors.New("transient refresh failure")
	ErrInvalidSession    = errors.New("identity session invalid")
	ErrSessionExpired    = errors.New("session expired")
	ErrRefreshInProgress = errors.New("refresh already in progress")
	ErrSessionStopped    = errors.New("session manager stopped")

	// Call errors
	ErrUnauthorized = errors.New("unauthorized")

	// Notification errors
	ErrPollFetch      = errors.New("notification fetch failed")
	ErrBackendRefused = errors.New("backend reported failure")

	// Store errors
	ErrKeyNotFound = errors.New("key not found")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
