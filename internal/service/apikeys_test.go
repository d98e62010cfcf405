package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/credential-service/internal/queue"
	"github.com/iliyamo/credential-service/internal/utils"
)

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func TestAPIKeyManager_Lifecycle(t *testing.T) {
	keys := &fakeKeys{}
	pub := &recordingPublisher{}
	m := NewAPIKeyManager(keys, pub, nil)
	clk := &stepClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m.now = clk.Now
	ctx := context.Background()

	raw, err := m.Generate(ctx, 42)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, APIKeyPrefix))
	assert.Len(t, raw, len(APIKeyPrefix)+64)

	require.Len(t, keys.rows, 1)
	assert.Equal(t, utils.HashSecret(raw), keys.rows[0].KeyHash)
	assert.NotContains(t, keys.rows[0].KeyHash, raw)
	assert.Equal(t, raw[:len(APIKeyPrefix)+8], keys.rows[0].KeyPrefix)
	assert.Nil(t, keys.rows[0].LastUsed)

	uid, err := m.Verify(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
	require.NotNil(t, keys.rows[0].LastUsed)
	first := *keys.rows[0].LastUsed

	uid, err = m.Verify(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
	assert.True(t, keys.rows[0].LastUsed.After(first))

	_, err = m.Verify(ctx, "bogus")
	assert.Equal(t, KindAuth, KindOf(err))
	_, err = m.Verify(ctx, APIKeyPrefix+"deadbeef")
	assert.Equal(t, KindAuth, KindOf(err))

	assert.Equal(t, []string{queue.EventAPIKeyGenerated}, pub.types())
}

func TestAPIKeyManager_KeysAreUnique(t *testing.T) {
	m := NewAPIKeyManager(&fakeKeys{}, nil, nil)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		raw, err := m.Generate(context.Background(), 1)
		require.NoError(t, err)
		assert.False(t, seen[raw])
		seen[raw] = true
	}
}

func TestAPIKeyManager_ListNewestFirstAndScoped(t *testing.T) {
	m := NewAPIKeyManager(&fakeKeys{}, nil, nil)
	clk := &stepClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m.now = clk.Now
	ctx := context.Background()

	k1, err := m.Generate(ctx, 1)
	require.NoError(t, err)
	_, err = m.Generate(ctx, 2)
	require.NoError(t, err)
	k3, err := m.Generate(ctx, 1)
	require.NoError(t, err)

	list, err := m.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, k3[:len(APIKeyPrefix)+8]+"…", list[0].Key)
	assert.Equal(t, k1[:len(APIKeyPrefix)+8]+"…", list[1].Key)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
	for _, s := range list {
		assert.NotEqual(t, k1, s.Key)
		assert.NotEqual(t, k3, s.Key)
	}

	empty, err := m.List(ctx, 99)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
