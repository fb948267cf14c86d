package ws

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	appErr "codebattle/pkg/errors"
)

// Authenticator validates the JWT presented at the websocket handshake and
// resolves the user behind it. Tokens are issued by the account service;
// this service only verifies them.
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator creates a verifier for HS256 tokens signed with secret.
// issuer is checked when non-empty.
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

type tokenClaims struct {
	jwt.RegisteredClaims
}

// Authenticate extracts the token from the upgrade request and returns the
// user ID from its subject claim.
func (a *Authenticator) Authenticate(r *http.Request) (string, error) {
	raw := tokenFromRequest(r)
	if raw == "" {
		return "", appErr.New(appErr.TokenInvalid).WithMessage("missing token")
	}
	if len(a.secret) == 0 {
		return "", appErr.New(appErr.TokenInvalid)
	}

	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", appErr.Wrap(err, appErr.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || claims.Subject == "" {
		return "", appErr.New(appErr.TokenInvalid)
	}
	if a.issuer != "" && claims.Issuer != a.issuer {
		return "", appErr.New(appErr.TokenInvalid).WithMessage("wrong issuer")
	}
	return claims.Subject, nil
}

// tokenFromRequest accepts either an Authorization bearer header or a token
// query parameter; browser websocket clients cannot set headers.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
		return h
	}
	return r.URL.Query().Get("token")
}
