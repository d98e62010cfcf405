package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/credential-service/internal/model"
)

const userColumns = "id,email,username,password_hash,created_at,updated_at"

// UserRepo persists rows of the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and returns its ID. A unique key violation on email
// or username yields ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u model.User) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, username, password_hash) VALUES (?,?,?)",
		u.Email, u.Username, u.PasswordHash)
	if err != nil {
		return 0, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return uint64(id), nil
}

// ExistsByEmailOrUsername reports whether any user already holds the email
// or the username.
func (r *UserRepo) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE email=? OR username=?",
		email, username).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetByIdentifier fetches the user whose email or username equals identifier.
// The lowest id wins if both columns match different rows.
func (r *UserRepo) GetByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	return r.scanOne(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? OR username=? ORDER BY id LIMIT 1",
		identifier, identifier)
}

func (r *UserRepo) scanOne(ctx context.Context, query string, args ...any) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, query, args...).
		Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, translate(err)
	}
	return u, nil
}
