// Package keys resolves vault key pairs by rotation and caches them for
// the life of the process. Rotations are immutable once issued, so the
// cache is append-only and never invalidated.
package keys

import (
	"context"

	"github.com/dmitrijs2005/passvault/internal/models"
)

// VaultKeyProvider fetches key pairs for a vault. Implementations talk
// to the remote key service; the resolver treats them as authoritative.
type VaultKeyProvider interface {
	// GetKeyPairByRotation returns the pair for an exact rotation, or
	// common.ErrKeyNotFound if the vault has no such rotation.
	GetKeyPairByRotation(ctx context.Context, vault models.Vault, rotation int64) (models.KeyPair, error)

	// GetLatestKeyPair returns the pair for the vault's current rotation.
	GetLatestKeyPair(ctx context.Context, vault models.Vault) (models.KeyPair, error)
}

// AddressKeyProvider supplies signing and verification key material for
// user addresses.
type AddressKeyProvider interface {
	// GetPublicKeysForEmail returns every public key currently attached
	// to the address with the given email.
	GetPublicKeysForEmail(ctx context.Context, userID, email string) ([]models.PublicKey, error)

	// GetAuthorSigningContext returns the active user's signing key, used
	// when encoding new revisions.
	GetAuthorSigningContext(ctx context.Context, userID string) (models.SigningContext, error)
}
