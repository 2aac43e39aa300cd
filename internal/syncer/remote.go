package syncer

import (
	"context"

	"github.com/dmitrijs2005/passvault/internal/codec"
	"github.com/dmitrijs2005/passvault/internal/models"
)

// RevisionRef identifies one item revision in a batch request; the
// revision number is the optimistic concurrency token.
type RevisionRef struct {
	ItemID   string `json:"item_id"`
	Revision int64  `json:"revision"`
}

// RevisionUpdate is the server's confirmation for one item in a batch
// state change: the new revision number and lifecycle state.
type RevisionUpdate struct {
	ItemID   string           `json:"item_id"`
	Revision int64            `json:"revision"`
	State    models.ItemState `json:"state"`
}

// ItemCreateRequest carries an encoded item to the remote store.
type ItemCreateRequest struct {
	ItemID  string
	Encoded *codec.EncodedItem
}

// AliasCreateRequest additionally reserves a forwarding address.
type AliasCreateRequest struct {
	ItemCreateRequest
	AliasPrefix string
	SuffixID    string
	MailboxIDs  []string
}

// RemoteItemStore is the transport collaborator: every call either
// returns server-confirmed payloads or a typed failure. Implementations
// must report stale concurrency tokens as common.ErrRevisionConflict and
// transport failures as common.ErrRemoteUnavailable.
type RemoteItemStore interface {
	CreateItem(ctx context.Context, userID, vaultID string, req ItemCreateRequest) (*models.ItemRevision, error)
	CreateAlias(ctx context.Context, userID, vaultID string, req AliasCreateRequest) (*models.ItemRevision, error)
	UpdateItem(ctx context.Context, userID, vaultID string, lastRevision int64, req ItemCreateRequest) (*models.ItemRevision, error)
	SendToTrash(ctx context.Context, userID, vaultID string, refs []RevisionRef) ([]RevisionUpdate, error)
	Untrash(ctx context.Context, userID, vaultID string, refs []RevisionRef) ([]RevisionUpdate, error)
	DeleteBatch(ctx context.Context, userID, vaultID string, refs []RevisionRef) error
	FetchAllForVault(ctx context.Context, userID, vaultID string) ([]models.ItemRevision, error)
}
