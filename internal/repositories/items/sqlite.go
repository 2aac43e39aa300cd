package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/dbx"
	"github.com/dmitrijs2005/passvault/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx). Bind it to a transaction handle inside dbx.WithTx to group
// writes with other repositories.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const itemColumns = `vault_id, item_id, revision, rotation, content_format_version,
	content, content_nonce, overview, overview_nonce,
	user_signature, item_key_signature, state, signature_email,
	create_time, modify_time`

func scanItem(row interface{ Scan(...any) error }) (*models.Item, error) {
	item := &models.Item{}
	var createTime, modifyTime int64
	err := row.Scan(&item.VaultID, &item.ItemID, &item.Revision, &item.Rotation,
		&item.ContentFormatVersion, &item.Content, &item.ContentNonce,
		&item.Overview, &item.OverviewNonce, &item.UserSignature,
		&item.ItemKeySignature, &item.State, &item.SignatureEmail,
		&createTime, &modifyTime)
	if err != nil {
		return nil, err
	}
	item.CreateTime = time.Unix(createTime, 0).UTC()
	item.ModifyTime = time.Unix(modifyTime, 0).UTC()
	return item, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, vaultID, itemID string) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE vault_id=? AND item_id=?`
	item, err := scanItem(r.db.QueryRowContext(ctx, query, vaultID, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s/%s: %w", vaultID, itemID, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, item *models.Item) error {
	query := `INSERT INTO items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(vault_id, item_id) DO UPDATE SET
			revision = excluded.revision,
			rotation = excluded.rotation,
			content_format_version = excluded.content_format_version,
			content = excluded.content,
			content_nonce = excluded.content_nonce,
			overview = excluded.overview,
			overview_nonce = excluded.overview_nonce,
			user_signature = excluded.user_signature,
			item_key_signature = excluded.item_key_signature,
			state = excluded.state,
			signature_email = excluded.signature_email,
			create_time = excluded.create_time,
			modify_time = excluded.modify_time
	`
	_, err := r.db.ExecContext(ctx, query,
		item.VaultID, item.ItemID, item.Revision, item.Rotation,
		item.ContentFormatVersion, item.Content, item.ContentNonce,
		item.Overview, item.OverviewNonce, item.UserSignature,
		item.ItemKeySignature, item.State, item.SignatureEmail,
		item.CreateTime.Unix(), item.ModifyTime.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertBatch(ctx context.Context, items []*models.Item) error {
	for _, item := range items {
		if err := r.Upsert(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, vaultID string, itemIDs ...string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(itemIDs)), ",")
	query := `DELETE FROM items WHERE vault_id=? AND item_id IN (` + placeholders + `)`

	args := make([]any, 0, len(itemIDs)+1)
	args = append(args, vaultID)
	for _, id := range itemIDs {
		args = append(args, id)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListByVault(ctx context.Context, vaultID string) ([]*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE vault_id=? ORDER BY item_id`
	return r.list(ctx, query, vaultID)
}

func (r *SQLiteRepository) ListTrashed(ctx context.Context) ([]*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE state=? ORDER BY vault_id, item_id`
	return r.list(ctx, query, models.ItemStateTrashed)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	var result []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) HasItemsForVault(ctx context.Context, vaultID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE vault_id=?`, vaultID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count items: %w", err)
	}
	return n > 0, nil
}
