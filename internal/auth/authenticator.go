package auth

import "context"

// Identity is the authenticated caller as asserted by the identity provider.
type Identity struct {
	UserID   string
	Username string
}

// Authenticator turns a bearer credential into an Identity.
// This abstraction allows swapping between identity providers (local JWT,
// an external OIDC issuer, etc.) without changing the interceptors.
type Authenticator interface {
	// Authenticate verifies the credential and returns the caller.
	// Returns ErrInvalidToken if the credential is not acceptable.
	Authenticate(ctx context.Context, credential string) (*Identity, error)
}
