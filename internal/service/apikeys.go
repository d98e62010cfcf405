package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/credential-service/internal/model"
	"github.com/iliyamo/credential-service/internal/queue"
	"github.com/iliyamo/credential-service/internal/repository"
	"github.com/iliyamo/credential-service/internal/utils"
)

const (
	// APIKeyPrefix marks keys issued by this service.
	APIKeyPrefix = "tk_"
	apiKeyBytes  = 32
	// displayed characters after the tag in listings
	displayLen = 8
)

// APIKeyStore persists API keys by their digest.
type APIKeyStore interface {
	Create(ctx context.Context, k model.APIKey) (uint64, error)
	GetByHash(ctx context.Context, hash string) (model.APIKey, error)
	TouchLastUsed(ctx context.Context, id uint64, at time.Time) error
	ListByUser(ctx context.Context, userID uint64) ([]model.APIKey, error)
}

// KeySummary is a listed API key. Key is masked; the full value is only
// returned by Generate.
type KeySummary struct {
	ID        uint64     `json:"id"`
	Key       string     `json:"key"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used_at"`
}

// APIKeyManager issues and verifies long-lived API keys.
type APIKeyManager struct {
	keys   APIKeyStore
	events queue.Publisher
	log    *zap.Logger
	now    func() time.Time
}

func NewAPIKeyManager(keys APIKeyStore, events queue.Publisher, log *zap.Logger) *APIKeyManager {
	if events == nil {
		events = queue.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &APIKeyManager{keys: keys, events: events, log: log, now: time.Now}
}

// Generate creates a key for userID and returns its plaintext. The plaintext
// is not stored and cannot be retrieved again.
func (m *APIKeyManager) Generate(ctx context.Context, userID uint64) (string, error) {
	secret, err := utils.RandomHex(apiKeyBytes)
	if err != nil {
		return "", Internal(err)
	}
	raw := APIKeyPrefix + secret
	k := model.APIKey{
		UserID:    userID,
		KeyHash:   utils.HashSecret(raw),
		KeyPrefix: raw[:len(APIKeyPrefix)+displayLen],
		CreatedAt: m.now().UTC(),
	}
	if _, err := m.keys.Create(ctx, k); err != nil {
		return "", Internal(err)
	}
	emit(ctx, m.events, m.log, queue.AuthEvent{Type: queue.EventAPIKeyGenerated, UserID: userID, Subject: k.KeyPrefix})
	return raw, nil
}

// Verify resolves a presented key to its owner and records the use.
func (m *APIKeyManager) Verify(ctx context.Context, raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, APIKeyPrefix) || len(raw) <= len(APIKeyPrefix) {
		return 0, Auth(MsgInvalidAPIKey)
	}
	k, err := m.keys.GetByHash(ctx, utils.HashSecret(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, Auth(MsgInvalidAPIKey)
		}
		return 0, Internal(err)
	}
	if err := m.keys.TouchLastUsed(ctx, k.ID, m.now().UTC()); err != nil {
		m.log.Warn("update api key last_used failed", zap.Uint64("key_id", k.ID), zap.Error(err))
	}
	return k.UserID, nil
}

// List returns userID's keys newest first.
func (m *APIKeyManager) List(ctx context.Context, userID uint64) ([]KeySummary, error) {
	keys, err := m.keys.ListByUser(ctx, userID)
	if err != nil {
		return nil, Internal(err)
	}
	out := make([]KeySummary, 0, len(keys))
	for _, k := range keys {
		out = append(out, KeySummary{
			ID:        k.ID,
			Key:       k.KeyPrefix + "…",
			CreatedAt: k.CreatedAt,
			LastUsed:  k.LastUsed,
		})
	}
	return out, nil
}
