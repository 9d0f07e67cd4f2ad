// Package auth provides authentication support for archive requests.
package auth

import (
	"net/http"
	"os"
	"strings"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
)

// Authenticator defines the interface for applying authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request) error
	Type() Type
}

// Type represents the type of authentication.
type Type string

// Authentication types.
const (
	// BearerAuthType represents Bearer token authentication.
	BearerAuthType Type = "bearer"
	// AnonymousType sends requests without credentials.
	AnonymousType Type = "anonymous"
)

// DefaultTokenEnv is the environment variable consulted when no token is configured.
const DefaultTokenEnv = "LAADS_TOKEN"

// BearerAuth represents Bearer token authentication.
type BearerAuth struct {
	Token string
}

// Apply adds a Bearer token to the Authorization header of the HTTP request.
func (b BearerAuth) Apply(req *http.Request) error {
	if b.Token == "" {
		return errors.ErrMissingCredentials
	}
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// Type returns the authentication type (BearerAuthType).
func (b BearerAuth) Type() Type { return BearerAuthType }

// Anonymous leaves requests untouched. Public archive listings accept it.
type Anonymous struct{}

// Apply does nothing.
func (Anonymous) Apply(*http.Request) error { return nil }

// Type returns AnonymousType.
func (Anonymous) Type() Type { return AnonymousType }

// ResolveToken returns token when set, otherwise the value of the env
// variable named envName (DefaultTokenEnv when empty).
func ResolveToken(token, envName string) (string, error) {
	if t := strings.TrimSpace(token); t != "" {
		return t, nil
	}
	if envName == "" {
		envName = DefaultTokenEnv
	}
	if t := strings.TrimSpace(os.Getenv(envName)); t != "" {
		return t, nil
	}
	return "", errors.Wrapf(errors.ErrMissingCredentials, "set token or export %s", envName)
}
