package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAndGet(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	item, err := svc.Publish(ctx, "usr_seller1", CreateRequest{
		Title:        "Handmade leather wallet",
		UnitPriceDzd: 120000,
	})
	require.NoError(t, err)
	assert.Contains(t, item.ID, "itm_")
	assert.Equal(t, "usr_seller1", item.SellerID)
	assert.True(t, item.Active)

	got, err := svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Title, got.Title)
	assert.Equal(t, int64(120000), got.UnitPriceDzd)
}

func TestPublishValidation(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	_, err := svc.Publish(ctx, "usr_seller1", CreateRequest{Title: "", UnitPriceDzd: 1000})
	assert.Error(t, err)

	_, err = svc.Publish(ctx, "usr_seller1", CreateRequest{Title: "Free stuff", UnitPriceDzd: 0})
	assert.Error(t, err)

	_, err = svc.Publish(ctx, "usr_seller1", CreateRequest{Title: "Negative", UnitPriceDzd: -5})
	assert.Error(t, err)
}

func TestDeactivate(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	item, err := svc.Publish(ctx, "usr_seller1", CreateRequest{
		Title:        "Argan oil 250ml",
		UnitPriceDzd: 35000,
	})
	require.NoError(t, err)

	// Wrong seller cannot take it down
	_, err = svc.Deactivate(ctx, "usr_other", item.ID)
	assert.Error(t, err)

	updated, err := svc.Deactivate(ctx, "usr_seller1", item.ID)
	require.NoError(t, err)
	assert.False(t, updated.Active)

	active, err := svc.ListActive(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, active)

	mine, err := svc.ListBySeller(ctx, "usr_seller1", 10)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestGetNotFound(t *testing.T) {
	svc := NewService(NewMemoryStore())
	_, err := svc.Get(context.Background(), "itm_doesnotexist")
	assert.ErrorIs(t, err, ErrItemNotFound)
}
