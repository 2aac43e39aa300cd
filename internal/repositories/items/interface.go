package items

import (
	"context"

	"github.com/dmitrijs2005/passvault/internal/models"
)

// Repository is the local item cache: one row per (vault, item) holding
// the latest server-confirmed revision. Implementations are backed by a
// local SQLite database and must be constructible over a transaction
// handle so callers can group writes atomically.
type Repository interface {
	// GetByID returns one item, or common.ErrorNotFound.
	GetByID(ctx context.Context, vaultID, itemID string) (*models.Item, error)

	// Upsert inserts or replaces the row for (vault, item).
	Upsert(ctx context.Context, item *models.Item) error

	// UpsertBatch upserts every given item.
	UpsertBatch(ctx context.Context, items []*models.Item) error

	// Delete removes rows by id within one vault. Missing ids are not an
	// error: deletion is idempotent.
	Delete(ctx context.Context, vaultID string, itemIDs ...string) error

	// ListByVault returns all items of a vault.
	ListByVault(ctx context.Context, vaultID string) ([]*models.Item, error)

	// ListTrashed returns all trashed items across vaults.
	ListTrashed(ctx context.Context) ([]*models.Item, error)

	// HasItemsForVault reports whether the vault has any cached items.
	HasItemsForVault(ctx context.Context, vaultID string) (bool, error)
}
