package fmid

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the token triple produced by a successful authenticate or
// refresh call. A session is either fully present or absent; partial
// sessions are never constructed. It is replaced wholesale on refresh
// and discarded when refresh fails.
type Session struct {
	AccessToken   string
	IdentityToken string
	RefreshToken  string
}

// identityTokenExpired reports whether the session's identity token has
// passed the expiry embedded in its claims, compared against now with
// no grace margin. A token whose expiry cannot be decoded is treated as
// expired so the next acquisition replaces it instead of sending a
// credential the server will reject anyway.
func (s *Session) identityTokenExpired(now time.Time) bool {
	claims := jwt.MapClaims{}

	// The token is decoded, not verified. The server is the verifier;
	// we only need the embedded timestamps.
	if _, _, err := jwt.NewParser().ParseUnverified(s.IdentityToken, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}

	return !exp.After(now)
}
