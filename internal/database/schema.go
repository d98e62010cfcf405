package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema bootstraps the three tables the service owns. Statements are
// idempotent so EnsureSchema can run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		username VARCHAR(64) NOT NULL,
		password_hash VARCHAR(100) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email),
		UNIQUE KEY uq_users_username (username)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		key_hash CHAR(64) NOT NULL,
		key_prefix VARCHAR(16) NOT NULL,
		created_at DATETIME(3) NOT NULL,
		last_used_at DATETIME(3) NULL,
		UNIQUE KEY uq_api_keys_hash (key_hash),
		KEY ix_api_keys_user (user_id, created_at),
		CONSTRAINT fk_api_keys_user FOREIGN KEY (user_id) REFERENCES users (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS linked_account_tokens (
		user_id BIGINT UNSIGNED NOT NULL,
		provider VARCHAR(32) NOT NULL,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		scope VARCHAR(255) NOT NULL DEFAULT '',
		expires_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, provider),
		CONSTRAINT fk_linked_tokens_user FOREIGN KEY (user_id) REFERENCES users (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates missing tables.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
