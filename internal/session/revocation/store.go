package revocation

import (
	"context"
	"time"
)

// Store tracks, per rotation family, which refresh token identifier is
// current, and which families have been revoked wholesale. The token issuer
// stays stateless; this store is the collaborator the rotation policy is
// enforced against.
type Store interface {
	// Bind registers the first jti of a new family.
	Bind(ctx context.Context, familyID, jti string, ttl time.Duration) error

	// Current returns the family's current jti. sentinel.ErrNotFound is
	// returned for unknown (or expired) families.
	Current(ctx context.Context, familyID string) (string, error)

	// Advance retires the current jti for its successor.
	Advance(ctx context.Context, familyID, newJTI string, ttl time.Duration) error

	// RevokeFamily invalidates every token in the family. Used when a
	// retired jti is presented (theft signal) or on explicit logout.
	RevokeFamily(ctx context.Context, familyID string, ttl time.Duration) error

	// IsFamilyRevoked reports whether the family has been invalidated.
	IsFamilyRevoked(ctx context.Context, familyID string) (bool, error)
}
