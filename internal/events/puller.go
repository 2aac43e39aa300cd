package events

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/passvault/internal/logging"
	"github.com/dmitrijs2005/passvault/internal/models"
	"github.com/dmitrijs2005/passvault/internal/repositories/cursors"
)

// Puller drives incremental sync for a set of vaults: fetch the change
// log since the stored cursor, apply it, then persist the new cursor.
// The cursor only ever advances after Apply has returned successfully;
// if the process dies between apply and the cursor write, the next pass
// re-applies the same batch, which is safe because application is
// idempotent.
type Puller struct {
	source  EventSource
	fetcher ItemFetcher
	applier *Applier
	cursors cursors.Repository
	log     logging.Logger
}

func NewPuller(source EventSource, fetcher ItemFetcher, applier *Applier,
	cursorRepo cursors.Repository, log logging.Logger) *Puller {
	return &Puller{source: source, fetcher: fetcher, applier: applier, cursors: cursorRepo, log: log}
}

// SyncVault performs one sync pass for a vault. A vault with no stored
// cursor is bootstrapped: the full item list is fetched and applied, and
// the cursor seeded with the change log's current end (captured BEFORE
// the item fetch, so events racing the bootstrap are replayed rather
// than skipped).
func (p *Puller) SyncVault(ctx context.Context, vault models.Vault) error {
	cursor, err := p.cursors.Get(ctx, vault.UserID, vault.AddressID, vault.VaultID)
	if err != nil {
		return err
	}

	if cursor == "" {
		return p.bootstrap(ctx, vault)
	}

	for {
		events, err := p.source.FetchEventsSince(ctx, vault.UserID, vault.VaultID, cursor)
		if err != nil {
			return fmt.Errorf("fetching events for vault %s: %w", vault.VaultID, err)
		}

		result, err := p.applier.Apply(ctx, vault, *events)
		if err != nil {
			return err
		}
		if perItem := result.Err(); perItem != nil {
			p.log.Warn(ctx, "some revisions were skipped", "vault", vault.VaultID, "error", perItem)
		}

		if err := p.cursors.Set(ctx, vault.UserID, vault.AddressID, vault.VaultID, events.LatestEventID); err != nil {
			return fmt.Errorf("persisting cursor for vault %s: %w", vault.VaultID, err)
		}

		p.log.Debug(ctx, "event batch applied", "vault", vault.VaultID,
			"applied", result.Applied, "deleted", result.Deleted, "cursor", events.LatestEventID)

		cursor = events.LatestEventID
		if !events.EventsPending {
			return nil
		}
	}
}

func (p *Puller) bootstrap(ctx context.Context, vault models.Vault) error {
	latest, err := p.source.FetchLatestEventCursor(ctx, vault.UserID, vault.AddressID, vault.VaultID)
	if err != nil {
		return fmt.Errorf("fetching latest cursor for vault %s: %w", vault.VaultID, err)
	}

	revs, err := p.fetcher.FetchAllForVault(ctx, vault.UserID, vault.VaultID)
	if err != nil {
		return fmt.Errorf("fetching items for vault %s: %w", vault.VaultID, err)
	}

	result, err := p.applier.Apply(ctx, vault, models.VaultEvents{UpdatedItems: revs})
	if err != nil {
		return err
	}
	if perItem := result.Err(); perItem != nil {
		p.log.Warn(ctx, "some revisions were skipped during bootstrap", "vault", vault.VaultID, "error", perItem)
	}

	if err := p.cursors.Set(ctx, vault.UserID, vault.AddressID, vault.VaultID, latest); err != nil {
		return fmt.Errorf("persisting cursor for vault %s: %w", vault.VaultID, err)
	}

	p.log.Info(ctx, "vault bootstrapped", "vault", vault.VaultID, "items", result.Applied)
	return nil
}

// Run polls every vault at the given interval until the context is
// cancelled. Failures are logged and retried on the next tick.
func (p *Puller) Run(ctx context.Context, vaults []models.Vault, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, vault := range vaults {
			if err := p.SyncVault(ctx, vault); err != nil {
				p.log.Error(ctx, "vault sync failed", "vault", vault.VaultID, "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
