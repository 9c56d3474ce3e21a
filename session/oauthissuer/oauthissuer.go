// Package oauthissuer implements session.Issuer against an OAuth2 identity
// provider by redeeming a long-lived refresh token for fresh access tokens.
package oauthissuer

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	errs "github.com/servio/clientcore/internal/errors"
	"github.com/servio/clientcore/session"
)

var _ session.Issuer = (*Issuer)(nil)

type Issuer struct {
	source oauth2.TokenSource
}

// New creates an Issuer from the provider configuration and the refresh
// token obtained at sign-in. ctx scopes the HTTP client used for token
// requests.
func New(ctx context.Context, cfg *oauth2.Config, refreshToken string) *Issuer {
	return &Issuer{
		source: cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}),
	}
}

func (i *Issuer) Issue(ctx context.Context) (*session.Credential, error) {
	token, err := i.source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errs.As(err, &retrieveErr) && invalidGrant(retrieveErr) {
			return nil, errs.Wrapf(errs.ErrInvalidSession, "provider rejected refresh token (%v)", err)
		}
		return nil, errors.Wrap(err, "[Issuer.Issue] token request")
	}
	return &session.Credential{
		Token:     token.AccessToken,
		ExpiresAt: token.Expiry,
	}, nil
}

// invalidGrant reports whether the provider said the identity session
// itself is no longer valid, as opposed to a transient failure.
func invalidGrant(err *oauth2.RetrieveError) bool {
	if err.ErrorCode == "invalid_grant" {
		return true
	}
	return err.Response != nil && err.Response.StatusCode == http.StatusUnauthorized
}
