package session

import (
	"context"

	errs "github.com/servio/clientcore/internal/errors"
)

// Do issues call with the current credential under the bounded retry
// policy every network call site must follow: if the call reports an
// authorization failure (errs.ErrUnauthorized), refresh exactly once and
// retry exactly once. A second rejection, or a failed refresh, surfaces
// errs.ErrSessionExpired — never a silent third attempt.
func Do(ctx context.Context, m *Manager, call func(ctx context.Context, credential string) error) error {
	err := call(ctx, m.Token())
	if err == nil || !errs.Is(err, errs.ErrUnauthorized) {
		return err
	}

	fresh, refreshErr := m.Refresh(ctx)
	if refreshErr != nil {
		return errs.Wrapf(errs.ErrSessionExpired, "refresh after rejected call (%v)", refreshErr)
	}

	retryErr := call(ctx, fresh.Token)
	if retryErr == nil {
		return nil
	}
	if errs.Is(retryErr, errs.ErrUnauthorized) {
		return errs.Wrapf(errs.ErrSessionExpired, "fresh credential rejected (%v)", retryErr)
	}
	return retryErr
}
