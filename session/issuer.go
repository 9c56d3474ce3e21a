package session

import "context"

// Issuer obtains a fresh bearer credential from the identity provider.
// Implementations report an error wrapping errs.ErrInvalidSession when the
// provider says the underlying identity session is no longer valid; any
// other error is treated as transient and leaves the stored credential
// untouched.
type Issuer interface {
	Issue(ctx context.Context) (*Credential, error)
}
