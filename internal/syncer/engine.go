// Package syncer orchestrates item mutations end to end: it resolves
// keys, encodes content, talks to the remote store, and commits local
// cache changes transactionally. The ordering contract for every
// operation is "no local mutation observable until the remote call's
// result is known"; the single documented exception is the optimistic
// untrash path, which snapshots and restores on failure.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/passvault/internal/codec"
	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/dbx"
	"github.com/dmitrijs2005/passvault/internal/keys"
	"github.com/dmitrijs2005/passvault/internal/logging"
	"github.com/dmitrijs2005/passvault/internal/models"
	"github.com/dmitrijs2005/passvault/internal/reconcile"
	"github.com/dmitrijs2005/passvault/internal/repositories/items"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// clearTrashMaxVaults bounds how many vaults are cleared concurrently.
const clearTrashMaxVaults = 4

type Engine struct {
	db          *sql.DB
	remote      RemoteItemStore
	resolver    *keys.Resolver
	addressKeys keys.AddressKeyProvider
	codec       *codec.Codec
	rec         *reconcile.Reconciler
	log         logging.Logger
	locks       *itemLocks
	notify      *items.Notifier
}

func NewEngine(db *sql.DB, remote RemoteItemStore, resolver *keys.Resolver,
	addressKeys keys.AddressKeyProvider, log logging.Logger) *Engine {
	c := codec.New()
	return &Engine{
		db:          db,
		remote:      remote,
		resolver:    resolver,
		addressKeys: addressKeys,
		codec:       c,
		rec:         reconcile.New(c),
		log:         log,
		locks:       newItemLocks(),
	}
}

// SetNotifier attaches a change broadcast; every committed local
// mutation signals the affected vault. A nil notifier disables signals.
func (e *Engine) SetNotifier(n *items.Notifier) {
	e.notify = n
}

func (e *Engine) repo() items.Repository {
	return items.NewSQLiteRepository(e.db)
}

func (e *Engine) verifyKeysForEmail(ctx context.Context, userID, email string) ([][]byte, error) {
	pks, err := e.addressKeys.GetPublicKeysForEmail(ctx, userID, email)
	if err != nil {
		return nil, fmt.Errorf("fetching public keys for %s: %w", email, err)
	}
	result := make([][]byte, 0, len(pks))
	for _, pk := range pks {
		result = append(result, pk.Key)
	}
	return result, nil
}

// persistRevision reconciles a server-confirmed revision into the cache
// inside one transaction and returns the decrypted domain item.
func (e *Engine) persistRevision(ctx context.Context, vault models.Vault, rev *models.ItemRevision, kp models.KeyPair) (*models.DecryptedItem, error) {
	verifyKeys, err := e.verifyKeysForEmail(ctx, vault.UserID, rev.SignatureEmail)
	if err != nil {
		return nil, err
	}

	entity, err := e.rec.ToEntity(vault.VaultID, *rev, kp, verifyKeys)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return items.NewSQLiteRepository(tx).Upsert(ctx, entity)
	})
	if err != nil {
		return nil, fmt.Errorf("persisting item %s: %w", entity.ItemID, err)
	}
	e.notify.Notify(vault.VaultID)

	return e.rec.ToDomain(entity, kp, verifyKeys)
}

// CreateItem encodes content under the vault's latest key, pushes it,
// and persists the confirmed revision. On remote failure nothing is
// written locally.
func (e *Engine) CreateItem(ctx context.Context, vault models.Vault, content models.Content) (*models.DecryptedItem, error) {
	req, kp, err := e.encodeNew(ctx, vault, content)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.lock(vault.VaultID, req.ItemID)
	defer unlock()

	rev, err := e.remote.CreateItem(ctx, vault.UserID, vault.VaultID, req)
	if err != nil {
		return nil, fmt.Errorf("creating item in vault %s: %w", vault.VaultID, err)
	}

	return e.persistRevision(ctx, vault, rev, kp)
}

// CreateAlias is CreateItem plus reservation of a forwarding address.
func (e *Engine) CreateAlias(ctx context.Context, vault models.Vault, content models.Content, aliasPrefix, suffixID string, mailboxIDs []string) (*models.DecryptedItem, error) {
	req, kp, err := e.encodeNew(ctx, vault, content)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.lock(vault.VaultID, req.ItemID)
	defer unlock()

	rev, err := e.remote.CreateAlias(ctx, vault.UserID, vault.VaultID, AliasCreateRequest{
		ItemCreateRequest: req,
		AliasPrefix:       aliasPrefix,
		SuffixID:          suffixID,
		MailboxIDs:        mailboxIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("creating alias in vault %s: %w", vault.VaultID, err)
	}

	return e.persistRevision(ctx, vault, rev, kp)
}

func (e *Engine) encodeNew(ctx context.Context, vault models.Vault, content models.Content) (ItemCreateRequest, models.KeyPair, error) {
	signer, err := e.addressKeys.GetAuthorSigningContext(ctx, vault.UserID)
	if err != nil {
		return ItemCreateRequest{}, models.KeyPair{}, fmt.Errorf("fetching signing context: %w", err)
	}

	// New writes always use the latest rotation.
	kp, err := e.resolver.ResolveLatest(ctx, vault)
	if err != nil {
		return ItemCreateRequest{}, models.KeyPair{}, err
	}

	enc, err := e.codec.Encode(content, kp, signer)
	if err != nil {
		return ItemCreateRequest{}, models.KeyPair{}, fmt.Errorf("encoding item content: %w", err)
	}

	return ItemCreateRequest{ItemID: uuid.NewString(), Encoded: enc}, kp, nil
}

// UpdateItem re-encodes content under the rotation the item currently
// uses (not necessarily the latest) and pushes it with the known
// revision as concurrency token. A stale token surfaces as
// common.ErrRevisionConflict; the caller refetches and retries, this
// engine never auto-merges. The cache is overwritten only with the
// server-confirmed entity.
func (e *Engine) UpdateItem(ctx context.Context, vault models.Vault, itemID string, content models.Content) (*models.DecryptedItem, error) {
	unlock := e.locks.lock(vault.VaultID, itemID)
	defer unlock()

	entity, err := e.repo().GetByID(ctx, vault.VaultID, itemID)
	if err != nil {
		return nil, err
	}

	return e.doUpdate(ctx, vault, entity, content)
}

// doUpdate pushes new content for an already-loaded entity. Callers must
// hold the item lock.
func (e *Engine) doUpdate(ctx context.Context, vault models.Vault, entity *models.Item, content models.Content) (*models.DecryptedItem, error) {
	signer, err := e.addressKeys.GetAuthorSigningContext(ctx, vault.UserID)
	if err != nil {
		return nil, fmt.Errorf("fetching signing context: %w", err)
	}

	kp, err := e.resolver.Resolve(ctx, vault, entity.Rotation)
	if err != nil {
		return nil, err
	}

	enc, err := e.codec.Encode(content, kp, signer)
	if err != nil {
		return nil, fmt.Errorf("encoding item content: %w", err)
	}

	rev, err := e.remote.UpdateItem(ctx, vault.UserID, vault.VaultID, entity.Revision,
		ItemCreateRequest{ItemID: entity.ItemID, Encoded: enc})
	if err != nil {
		return nil, fmt.Errorf("updating item %s: %w", entity.ItemID, err)
	}

	return e.persistRevision(ctx, vault, rev, kp)
}

// Trash moves an Active item to Trashed. Trashing an already-trashed
// item fails fast with common.ErrAlreadyTrashed. The local state flips
// only from the server's confirmed revision, scoped to the matching
// item id.
func (e *Engine) Trash(ctx context.Context, vault models.Vault, itemID string) error {
	unlock := e.locks.lock(vault.VaultID, itemID)
	defer unlock()

	entity, err := e.repo().GetByID(ctx, vault.VaultID, itemID)
	if err != nil {
		return err
	}
	if entity.State == models.ItemStateTrashed {
		return fmt.Errorf("trashing item %s: %w", itemID, common.ErrAlreadyTrashed)
	}

	updates, err := e.remote.SendToTrash(ctx, vault.UserID, vault.VaultID,
		[]RevisionRef{{ItemID: itemID, Revision: entity.Revision}})
	if err != nil {
		return fmt.Errorf("trashing item %s: %w", itemID, err)
	}

	return e.applyConfirmedState(ctx, entity, updates)
}

// Untrash restores a Trashed item to Active. It is a no-op for an item
// that is already Active. The flip is applied optimistically inside a
// transaction that snapshots the prior entity; any remote failure,
// cancellation included, restores the snapshot verbatim.
func (e *Engine) Untrash(ctx context.Context, vault models.Vault, itemID string) error {
	unlock := e.locks.lock(vault.VaultID, itemID)
	defer unlock()

	entity, err := e.repo().GetByID(ctx, vault.VaultID, itemID)
	if err != nil {
		return err
	}
	if entity.State == models.ItemStateActive {
		return nil
	}

	snapshot := *entity

	optimistic := *entity
	optimistic.State = models.ItemStateActive
	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return items.NewSQLiteRepository(tx).Upsert(ctx, &optimistic)
	})
	if err != nil {
		return fmt.Errorf("applying optimistic untrash for %s: %w", itemID, err)
	}
	e.notify.Notify(vault.VaultID)

	updates, err := e.remote.Untrash(ctx, vault.UserID, vault.VaultID,
		[]RevisionRef{{ItemID: itemID, Revision: entity.Revision}})
	if err != nil {
		// The remote call may have failed because ctx was cancelled; the
		// snapshot restore must still run.
		restoreCtx := context.WithoutCancel(ctx)
		rollbackErr := dbx.WithTx(restoreCtx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return items.NewSQLiteRepository(tx).Upsert(ctx, &snapshot)
		})
		if rollbackErr != nil {
			e.log.Error(ctx, "untrash rollback failed", "item", itemID, "error", rollbackErr)
			return errors.Join(err, rollbackErr)
		}
		e.notify.Notify(vault.VaultID)
		return fmt.Errorf("untrashing item %s: %w", itemID, err)
	}

	return e.applyConfirmedState(ctx, entity, updates)
}

// applyConfirmedState writes the server-confirmed revision number and
// state for the single entity, ignoring updates for other item ids.
func (e *Engine) applyConfirmedState(ctx context.Context, entity *models.Item, updates []RevisionUpdate) error {
	for _, u := range updates {
		if u.ItemID != entity.ItemID {
			continue
		}
		confirmed := *entity
		confirmed.Revision = u.Revision
		confirmed.State = u.State
		err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return items.NewSQLiteRepository(tx).Upsert(ctx, &confirmed)
		})
		if err == nil {
			e.notify.Notify(entity.VaultID)
		}
		return err
	}
	return fmt.Errorf("no confirmation for item %s in server response: %w", entity.ItemID, common.ErrorNotFound)
}

// Delete permanently removes a Trashed item. If the item is not trashed
// (or not cached) the call succeeds as a no-op: the end state "item
// gone" would need a Trash first, and an already-gone item is gone.
func (e *Engine) Delete(ctx context.Context, vault models.Vault, itemID string) error {
	unlock := e.locks.lock(vault.VaultID, itemID)
	defer unlock()

	entity, err := e.repo().GetByID(ctx, vault.VaultID, itemID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if entity.State != models.ItemStateTrashed {
		return nil
	}

	err = e.remote.DeleteBatch(ctx, vault.UserID, vault.VaultID,
		[]RevisionRef{{ItemID: itemID, Revision: entity.Revision}})
	if err != nil {
		return fmt.Errorf("deleting item %s: %w", itemID, err)
	}

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return items.NewSQLiteRepository(tx).Delete(ctx, vault.VaultID, itemID)
	})
	if err != nil {
		return err
	}
	e.notify.Notify(vault.VaultID)
	return nil
}

// ClearTrash permanently removes every trashed item in the given vaults.
// Vaults are processed concurrently; within one vault, chunks of
// common.TrashDeleteBatchSize run sequentially to preserve revision
// ordering, and a failed chunk stops that vault's remaining chunks
// without touching other vaults. Per-vault failures are aggregated and
// returned; vaults that succeeded stay cleared.
func (e *Engine) ClearTrash(ctx context.Context, vaults []models.Vault) error {
	trashed, err := e.repo().ListTrashed(ctx)
	if err != nil {
		return fmt.Errorf("listing trashed items: %w", err)
	}

	byVault := make(map[string][]RevisionRef)
	for _, item := range trashed {
		byVault[item.VaultID] = append(byVault[item.VaultID], RevisionRef{ItemID: item.ItemID, Revision: item.Revision})
	}

	var g errgroup.Group
	g.SetLimit(clearTrashMaxVaults)

	errs := make([]error, len(vaults))
	for i, vault := range vaults {
		i, vault := i, vault
		refs := byVault[vault.VaultID]
		if len(refs) == 0 {
			continue
		}
		g.Go(func() error {
			if err := e.clearVaultTrash(ctx, vault, refs); err != nil {
				errs[i] = fmt.Errorf("clearing trash in vault %s: %w", vault.VaultID, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func (e *Engine) clearVaultTrash(ctx context.Context, vault models.Vault, refs []RevisionRef) error {
	for start := 0; start < len(refs); start += common.TrashDeleteBatchSize {
		end := min(start+common.TrashDeleteBatchSize, len(refs))
		if err := e.clearTrashChunk(ctx, vault, refs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) clearTrashChunk(ctx context.Context, vault models.Vault, chunk []RevisionRef) error {
	ids := make([]string, len(chunk))
	for n, ref := range chunk {
		ids[n] = ref.ItemID
	}

	// Item locks are acquired in sorted order so two concurrent
	// clear-trash passes over the same vault cannot deadlock.
	locked := slices.Clone(ids)
	slices.Sort(locked)
	for _, id := range locked {
		unlock := e.locks.lock(vault.VaultID, id)
		defer unlock()
	}

	if err := e.remote.DeleteBatch(ctx, vault.UserID, vault.VaultID, chunk); err != nil {
		return err
	}

	err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return items.NewSQLiteRepository(tx).Delete(ctx, vault.VaultID, ids...)
	})
	if err != nil {
		return err
	}
	e.notify.Notify(vault.VaultID)

	e.log.Debug(ctx, "trash chunk cleared", "vault", vault.VaultID, "count", len(chunk))
	return nil
}

// Migrate moves an item between vaults: decrypt under the source keys,
// re-encrypt under the destination's latest rotation, confirm the
// destination write, and only then delete from the source. The order is
// never reversed; a failed destination write leaves the source intact.
func (e *Engine) Migrate(ctx context.Context, source, dest models.Vault, itemID string) (*models.DecryptedItem, error) {
	unlock := e.locks.lock(source.VaultID, itemID)
	defer unlock()

	entity, err := e.repo().GetByID(ctx, source.VaultID, itemID)
	if err != nil {
		return nil, err
	}

	srcKP, err := e.resolver.Resolve(ctx, source, entity.Rotation)
	if err != nil {
		return nil, err
	}
	verifyKeys, err := e.verifyKeysForEmail(ctx, source.UserID, entity.SignatureEmail)
	if err != nil {
		return nil, err
	}

	content, err := e.codec.Decode(reconcile.RevisionFromEntity(entity), srcKP, verifyKeys)
	if err != nil {
		return nil, fmt.Errorf("decoding item %s for migration: %w", itemID, err)
	}

	req, destKP, err := e.encodeNew(ctx, dest, content)
	if err != nil {
		return nil, err
	}

	newRev, err := e.remote.CreateItem(ctx, dest.UserID, dest.VaultID, req)
	if err != nil {
		return nil, fmt.Errorf("migrating item %s to vault %s: %w", itemID, dest.VaultID, err)
	}

	migrated, err := e.persistRevision(ctx, dest, newRev, destKP)
	if err != nil {
		return nil, err
	}

	err = e.remote.DeleteBatch(ctx, source.UserID, source.VaultID,
		[]RevisionRef{{ItemID: itemID, Revision: entity.Revision}})
	if err != nil {
		// The item now exists in both vaults; duplication is recoverable,
		// loss is not. Surface the error so the caller can retry the
		// source-side delete.
		return migrated, fmt.Errorf("removing item %s from source vault %s: %w", itemID, source.VaultID, err)
	}

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return items.NewSQLiteRepository(tx).Delete(ctx, source.VaultID, itemID)
	})
	if err != nil {
		return migrated, err
	}
	e.notify.Notify(source.VaultID)

	return migrated, nil
}

// PackageOrURL is one autofill association to merge into an item.
// Exactly one of the fields should be set.
type PackageOrURL struct {
	PackageName string
	URL         string
}

// AddPackageOrURL merges an autofill association into an item. If the
// package (exact match) or URL (host and port aware match) is already
// present, the call short-circuits without any remote traffic;
// otherwise the item goes through a normal update.
func (e *Engine) AddPackageOrURL(ctx context.Context, vault models.Vault, itemID string, assoc PackageOrURL) (*models.DecryptedItem, error) {
	unlock := e.locks.lock(vault.VaultID, itemID)
	defer unlock()

	entity, err := e.repo().GetByID(ctx, vault.VaultID, itemID)
	if err != nil {
		return nil, err
	}

	kp, err := e.resolver.Resolve(ctx, vault, entity.Rotation)
	if err != nil {
		return nil, err
	}
	verifyKeys, err := e.verifyKeysForEmail(ctx, vault.UserID, entity.SignatureEmail)
	if err != nil {
		return nil, err
	}

	domain, err := e.rec.ToDomain(entity, kp, verifyKeys)
	if err != nil {
		return nil, err
	}

	content := domain.Content
	switch {
	case assoc.PackageName != "":
		if content.HasPackage(assoc.PackageName) {
			return domain, nil
		}
		content.PackageNames = append(content.PackageNames, assoc.PackageName)
	case assoc.URL != "":
		if content.HasWebsite(assoc.URL) {
			return domain, nil
		}
		content.Websites = append(content.Websites, assoc.URL)
	default:
		return domain, nil
	}

	return e.doUpdate(ctx, vault, entity, content)
}

// Get returns the decrypted form of one cached item.
func (e *Engine) Get(ctx context.Context, vault models.Vault, itemID string) (*models.DecryptedItem, error) {
	entity, err := e.repo().GetByID(ctx, vault.VaultID, itemID)
	if err != nil {
		return nil, err
	}

	kp, err := e.resolver.Resolve(ctx, vault, entity.Rotation)
	if err != nil {
		return nil, err
	}
	verifyKeys, err := e.verifyKeysForEmail(ctx, vault.UserID, entity.SignatureEmail)
	if err != nil {
		return nil, err
	}

	return e.rec.ToDomain(entity, kp, verifyKeys)
}
