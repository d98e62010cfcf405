package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/credential-service/internal/model"
)

// LinkedTokenRepo persists third-party tokens in `linked_account_tokens`
// (single row per user_id + provider).
type LinkedTokenRepo struct{ DB *sql.DB }

func NewLinkedTokenRepo(db *sql.DB) *LinkedTokenRepo { return &LinkedTokenRepo{DB: db} }

// Upsert stores t, replacing any previous token the user linked for the same provider.
func (r *LinkedTokenRepo) Upsert(ctx context.Context, t model.LinkedAccountToken) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO linked_account_tokens (user_id, provider, access_token, refresh_token, scope, expires_at, updated_at)
		 VALUES (?,?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE access_token=VALUES(access_token), refresh_token=VALUES(refresh_token),
		   scope=VALUES(scope), expires_at=VALUES(expires_at), updated_at=VALUES(updated_at)`,
		t.UserID, t.Provider, t.AccessToken, t.RefreshToken, t.Scope, t.ExpiresAt, t.UpdatedAt)
	return translate(err)
}

// Get returns the token the user linked for provider.
func (r *LinkedTokenRepo) Get(ctx context.Context, userID uint64, provider string) (model.LinkedAccountToken, error) {
	var t model.LinkedAccountToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id,provider,access_token,refresh_token,scope,expires_at,updated_at FROM linked_account_tokens WHERE user_id=? AND provider=? LIMIT 1",
		userID, provider).Scan(&t.UserID, &t.Provider, &t.AccessToken, &t.RefreshToken, &t.Scope, &t.ExpiresAt, &t.UpdatedAt)
	if err != nil {
		return model.LinkedAccountToken{}, translate(err)
	}
	return t, nil
}
