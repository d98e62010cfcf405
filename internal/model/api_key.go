package model

import "time"

// APIKey models an entry in the `api_keys` table. The plaintext key is only
// ever returned to the caller at generation time; the row keeps its SHA-256
// digest for lookup and a short display prefix for listings.
type APIKey struct {
	ID        uint64     // api_keys.id
	UserID    uint64     // api_keys.user_id
	KeyHash   string     // api_keys.key_hash (unique)
	KeyPrefix string     // api_keys.key_prefix
	CreatedAt time.Time  // api_keys.created_at
	LastUsed  *time.Time // api_keys.last_used_at (nullable)
}
