// Package auth supplies shopper credentials to outgoing backend calls.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abgdnv/storefront/pkg/web"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

var (
	ErrNoCredential = errors.New("no credential")
	ErrExpired      = errors.New("credential expired")
)

// CredentialProvider returns the bearer token for a single backend call.
// Providers are read-only: they never issue or refresh tokens.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed credential. The empty token means "signed out".
type StaticToken string

func (s StaticToken) Token(_ context.Context) (string, error) {
	if s == "" {
		return "", ErrNoCredential
	}
	return string(s), nil
}

// Inspector rejects bearer JWTs whose time claims make them unusable, without a network call.
// Signatures are not checked here; the backend stays the authority. Opaque tokens pass through.
type Inspector struct {
	skew time.Duration
}

// NewInspector creates an Inspector that tolerates the given clock skew.
func NewInspector(skew time.Duration) *Inspector {
	return &Inspector{skew: skew}
}

// Inspect returns ErrExpired for a JWT that is expired or not yet valid.
func (i *Inspector) Inspect(token string) error {
	if token == "" {
		return ErrNoCredential
	}
	if strings.Count(token, ".") != 2 {
		return nil
	}
	parsed, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		// not a JWT we understand, the backend decides
		return nil
	}
	if err := jwt.Validate(parsed, jwt.WithAcceptableSkew(i.skew)); err != nil {
		return fmt.Errorf("%w: %v", ErrExpired, err)
	}
	return nil
}

// RequestCredentials reads the bearer token the HTTP middleware stored in the context.
type RequestCredentials struct {
	inspector *Inspector
}

// NewRequestCredentials creates a provider backed by the request context.
func NewRequestCredentials(inspector *Inspector) *RequestCredentials {
	return &RequestCredentials{inspector: inspector}
}

func (p *RequestCredentials) Token(ctx context.Context) (string, error) {
	token, ok := web.GetBearerToken(ctx)
	if !ok {
		return "", ErrNoCredential
	}
	if p.inspector != nil {
		if err := p.inspector.Inspect(token); err != nil {
			return "", err
		}
	}
	return token, nil
}
