package conversation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// SessionIdentity is the bearer credential sent on every host call. It is
// created once per profile and never rotated.
type SessionIdentity struct {
	Token string
}

// IdentityStore persists the session token for a profile. LoadIdentity
// returns "" with a nil error when no token has been stored yet.
type IdentityStore interface {
	LoadIdentity(ctx context.Context, profile string) (string, error)
	SaveIdentity(ctx context.Context, profile, token string) error
}

// EnsureIdentity loads the profile's token, generating and storing a random
// one when absent.
func EnsureIdentity(ctx context.Context, store IdentityStore, profile string) (SessionIdentity, error) {
	token, err := store.LoadIdentity(ctx, profile)
	if err != nil {
		return SessionIdentity{}, fmt.Errorf("failed to load session identity: %w", err)
	}
	if token != "" {
		return SessionIdentity{Token: token}, nil
	}

	token = uuid.NewString()
	if err := store.SaveIdentity(ctx, profile, token); err != nil {
		return SessionIdentity{}, fmt.Errorf("failed to save session identity: %w", err)
	}
	return SessionIdentity{Token: token}, nil
}
