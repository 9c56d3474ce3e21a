package session

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Credential is a bearer token issued by the identity provider, together
// with its decoded expiry.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Status is a pure read of the locally stored credential's claims. No
// network call is involved; callers decide their own expiry thresholds
// from MinutesUntilExpiry.
type Status struct {
	Exists             bool
	Expired            bool
	ExpiresAt          time.Time
	MinutesUntilExpiry int
}

// Introspect decodes the expiry claim from a raw bearer credential.
// The signature is not verified: validation is the backend's job, the
// client only needs the embedded timing. A credential whose claims cannot
// be decoded is reported as expired.
func Introspect(rawToken string, now time.Time) Status {
	if strings.TrimSpace(rawToken) == "" {
		return Status{}
	}

	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return Status{Exists: true, Expired: true}
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return Status{Exists: true, Expired: true}
	}

	exp, _ := claims["exp"].(float64)
	if exp == 0 {
		return Status{Exists: true, Expired: true}
	}

	expiresAt := time.Unix(int64(exp), 0)
	return Status{
		Exists:             true,
		Expired:            now.Unix() > int64(exp),
		ExpiresAt:          expiresAt,
		MinutesUntilExpiry: int(expiresAt.Sub(now).Minutes()),
	}
}
