package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/passvault/internal/dbx"
	"github.com/dmitrijs2005/passvault/internal/keys"
	"github.com/dmitrijs2005/passvault/internal/logging"
	"github.com/dmitrijs2005/passvault/internal/models"
	"github.com/dmitrijs2005/passvault/internal/reconcile"
	"github.com/dmitrijs2005/passvault/internal/repositories/items"
)

// ApplyResult summarizes one batch application. Failed holds per-item
// crypto or schema failures; those items were excluded from the
// transaction so that valid siblings still sync.
type ApplyResult struct {
	Applied int
	Deleted int
	Failed  map[string]error
}

// Err aggregates the per-item failures, or nil if there were none.
func (r *ApplyResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for id, err := range r.Failed {
		errs = append(errs, fmt.Errorf("item %s: %w", id, err))
	}
	return errors.Join(errs...)
}

// Applier converts one batch of remote change events into local cache
// rows and commits them atomically. It is cursor-agnostic and
// deterministic, so re-applying the same batch is always safe.
type Applier struct {
	db          *sql.DB
	resolver    *keys.Resolver
	addressKeys keys.AddressKeyProvider
	rec         *reconcile.Reconciler
	log         logging.Logger
	notify      *items.Notifier
}

func NewApplier(db *sql.DB, resolver *keys.Resolver, addressKeys keys.AddressKeyProvider,
	rec *reconcile.Reconciler, log logging.Logger) *Applier {
	return &Applier{db: db, resolver: resolver, addressKeys: addressKeys, rec: rec, log: log}
}

// SetNotifier attaches a change broadcast; every committed batch signals
// the affected vault. A nil notifier disables signals.
func (a *Applier) SetNotifier(n *items.Notifier) {
	a.notify = n
}

// Apply validates and converts every updated item, then commits all
// upserts and deletions in one transaction.
//
// Key pairs are resolved once per distinct rotation and verification
// keys once per distinct signer email. An unresolvable rotation or a
// failed key fetch aborts the whole batch (the environment is broken,
// not the data); a revision that fails verification, decryption or
// schema parsing is excluded from the transaction and reported in
// ApplyResult.Failed, never silently dropped.
func (a *Applier) Apply(ctx context.Context, vault models.Vault, events models.VaultEvents) (*ApplyResult, error) {
	pairs, err := a.resolvePairs(ctx, vault, events.UpdatedItems)
	if err != nil {
		return nil, err
	}
	verifyKeys, err := a.resolveVerifyKeys(ctx, vault, events.UpdatedItems)
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{Failed: make(map[string]error)}

	entities := make([]*models.Item, 0, len(events.UpdatedItems))
	for _, rev := range events.UpdatedItems {
		entity, err := a.rec.ToEntity(vault.VaultID, rev, pairs[rev.Rotation], verifyKeys[rev.SignatureEmail])
		if err != nil {
			a.log.Warn(ctx, "skipping unreadable revision", "vault", vault.VaultID, "item", rev.ItemID, "error", err)
			result.Failed[rev.ItemID] = err
			continue
		}
		entities = append(entities, entity)
	}

	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := items.NewSQLiteRepository(tx)
		if err := repo.UpsertBatch(ctx, entities); err != nil {
			return err
		}
		return repo.Delete(ctx, vault.VaultID, events.DeletedItemIDs...)
	})
	if err != nil {
		return nil, fmt.Errorf("committing event batch for vault %s: %w", vault.VaultID, err)
	}
	if len(entities) > 0 || len(events.DeletedItemIDs) > 0 {
		a.notify.Notify(vault.VaultID)
	}

	result.Applied = len(entities)
	result.Deleted = len(events.DeletedItemIDs)
	return result, nil
}

func (a *Applier) resolvePairs(ctx context.Context, vault models.Vault, revs []models.ItemRevision) (map[int64]models.KeyPair, error) {
	pairs := make(map[int64]models.KeyPair)
	for _, rev := range revs {
		if _, ok := pairs[rev.Rotation]; ok {
			continue
		}
		kp, err := a.resolver.Resolve(ctx, vault, rev.Rotation)
		if err != nil {
			return nil, err
		}
		pairs[rev.Rotation] = kp
	}
	return pairs, nil
}

func (a *Applier) resolveVerifyKeys(ctx context.Context, vault models.Vault, revs []models.ItemRevision) (map[string][][]byte, error) {
	verifyKeys := make(map[string][][]byte)
	for _, rev := range revs {
		if _, ok := verifyKeys[rev.SignatureEmail]; ok {
			continue
		}
		pks, err := a.addressKeys.GetPublicKeysForEmail(ctx, vault.UserID, rev.SignatureEmail)
		if err != nil {
			return nil, fmt.Errorf("fetching public keys for %s: %w", rev.SignatureEmail, err)
		}
		raw := make([][]byte, 0, len(pks))
		for _, pk := range pks {
			raw = append(raw, pk.Key)
		}
		verifyKeys[rev.SignatureEmail] = raw
	}
	return verifyKeys, nil
}
