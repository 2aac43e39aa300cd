package cursors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/passvault/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, userID, addressID, vaultID string) (string, error) {
	var eventID string
	err := r.db.QueryRowContext(ctx,
		`SELECT event_id FROM event_cursors WHERE user_id=? AND address_id=? AND vault_id=?`,
		userID, addressID, vaultID).Scan(&eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cursor for vault %s: %w", vaultID, err)
	}
	return eventID, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, userID, addressID, vaultID, eventID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO event_cursors (user_id, address_id, vault_id, event_id) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, address_id, vault_id) DO UPDATE SET event_id = excluded.event_id
	`, userID, addressID, vaultID, eventID)
	if err != nil {
		return fmt.Errorf("failed to set cursor for vault %s: %w", vaultID, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, userID, addressID, vaultID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM event_cursors WHERE user_id=? AND address_id=? AND vault_id=?`,
		userID, addressID, vaultID)
	if err != nil {
		return fmt.Errorf("failed to delete cursor for vault %s: %w", vaultID, err)
	}
	return nil
}
