package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"order-access-service/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantCache_DisabledDegradesGracefully(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()

	for name, c := range map[string]*GrantCache{
		"nil client": NewGrantCache(nil, time.Minute),
		"nil cache":  nil,
	} {
		t.Run(name, func(t *testing.T) {
			assert.False(t, c.IsAvailable())

			got, err := c.Get(ctx, orderID, 1)
			assert.NoError(t, err)
			assert.Nil(t, got)

			assert.NoError(t, c.Set(ctx, orderID, 1, &models.OrderGrants{}))
			assert.NoError(t, c.Invalidate(ctx, orderID, 2))
			assert.NoError(t, c.Purge(ctx, orderID))
			assert.NoError(t, c.Close())
		})
	}
}

func TestGrantCache_KeyIncludesVersion(t *testing.T) {
	c := NewGrantCache(nil, time.Minute)
	orderID := uuid.MustParse("7b0d8a7e-3f7a-4d64-9f3c-2b0f0f3f6b11")

	assert.Equal(t, "grants:7b0d8a7e-3f7a-4d64-9f3c-2b0f0f3f6b11:v3", c.cacheKey(orderID, 3))
	assert.NotEqual(t, c.cacheKey(orderID, 3), c.cacheKey(orderID, 4))
}

// Runs against a live Redis when TEST_REDIS_URL is set
func TestGrantCache_RoundTrip(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	ctx := context.Background()
	c := NewGrantCache(redis.NewClient(opts), time.Minute)
	defer c.Close()

	orderID := uuid.New()
	grants := &models.OrderGrants{
		Direct: []models.DirectPermission{{ID: uuid.New(), OrderID: orderID, UserID: uuid.New(), CanView: true}},
	}

	require.NoError(t, c.Set(ctx, orderID, 1, grants))

	got, err := c.Get(ctx, orderID, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Direct[0].CanView)

	miss, err := c.Get(ctx, orderID, 2)
	require.NoError(t, err)
	assert.Nil(t, miss, "a newer version never reads an older entry")

	require.NoError(t, c.Invalidate(ctx, orderID, 2))
	gone, err := c.Get(ctx, orderID, 1)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
