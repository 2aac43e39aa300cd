// Package cursors persists per-vault event cursors: the id of the last
// remote event whose effects were committed to the local cache.
package cursors

import "context"

// Repository stores one cursor per (user, address, vault). A cursor must
// only be written after the corresponding event batch has been durably
// applied; re-applying a batch because the cursor write was lost is safe
// (event application is idempotent), applying ahead of the cursor never is.
type Repository interface {
	// Get returns the stored cursor, or "" if the vault has never synced.
	Get(ctx context.Context, userID, addressID, vaultID string) (string, error)

	// Set records the latest applied event id.
	Set(ctx context.Context, userID, addressID, vaultID, eventID string) error

	// Delete drops the cursor (e.g. when a vault is left).
	Delete(ctx context.Context, userID, addressID, vaultID string) error
}
