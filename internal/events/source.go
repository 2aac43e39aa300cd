// Package events applies batches of the remote change log to the local
// cache and drives the pull loop that fetches them.
package events

import (
	"context"

	"github.com/dmitrijs2005/passvault/internal/models"
)

// EventSource fetches the remote change log for a vault.
type EventSource interface {
	// FetchLatestEventCursor returns the current end of the vault's
	// change log, used to seed the cursor on first sync.
	FetchLatestEventCursor(ctx context.Context, userID, addressID, vaultID string) (string, error)

	// FetchEventsSince returns the changes recorded after the given
	// cursor, together with the cursor to resume from next time.
	FetchEventsSince(ctx context.Context, userID, vaultID, cursor string) (*models.VaultEvents, error)
}

// ItemFetcher is the full-reconciliation primitive used before any
// cursor exists for a vault.
type ItemFetcher interface {
	FetchAllForVault(ctx context.Context, userID, vaultID string) ([]models.ItemRevision, error)
}
