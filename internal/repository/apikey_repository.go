package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/credential-service/internal/model"
)

// APIKeyRepo persists rows of the `api_keys` table.
type APIKeyRepo struct{ DB *sql.DB }

func NewAPIKeyRepo(db *sql.DB) *APIKeyRepo { return &APIKeyRepo{DB: db} }

// Create inserts a key row and returns its ID.
func (r *APIKeyRepo) Create(ctx context.Context, k model.APIKey) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO api_keys (user_id, key_hash, key_prefix, created_at) VALUES (?,?,?,?)",
		k.UserID, k.KeyHash, k.KeyPrefix, k.CreatedAt)
	if err != nil {
		return 0, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return uint64(id), nil
}

// GetByHash looks a key up by its SHA-256 digest.
func (r *APIKeyRepo) GetByHash(ctx context.Context, hash string) (model.APIKey, error) {
	var (
		k        model.APIKey
		lastUsed sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,key_hash,key_prefix,created_at,last_used_at FROM api_keys WHERE key_hash=? LIMIT 1",
		hash).Scan(&k.ID, &k.UserID, &k.KeyHash, &k.KeyPrefix, &k.CreatedAt, &lastUsed)
	if err != nil {
		return model.APIKey{}, translate(err)
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		k.LastUsed = &t
	}
	return k, nil
}

// TouchLastUsed records a successful use of the key.
func (r *APIKeyRepo) TouchLastUsed(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE api_keys SET last_used_at=? WHERE id=?", at, id)
	return err
}

// ListByUser returns the user's keys, newest first.
func (r *APIKeyRepo) ListByUser(ctx context.Context, userID uint64) ([]model.APIKey, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,user_id,key_hash,key_prefix,created_at,last_used_at FROM api_keys WHERE user_id=? ORDER BY created_at DESC, id DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.APIKey{}
	for rows.Next() {
		var (
			k        model.APIKey
			lastUsed sql.NullTime
		)
		if err := rows.Scan(&k.ID, &k.UserID, &k.KeyHash, &k.KeyPrefix, &k.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			t := lastUsed.Time
			k.LastUsed = &t
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
