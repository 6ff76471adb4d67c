package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveItemIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cartRepo := NewCartRepository(testDB)

	userID := uuid.New()
	productID := insertTestProduct(t, "Iron Supplement", 55, 10, false)
	insertTestCartItem(t, userID, productID, 2)

	require.NoError(t, cartRepo.RemoveItem(ctx, userID, productID))
	assert.Equal(t, 0, cartItemCount(t, userID))

	// Removing again, or removing a product that was never in the cart,
	// succeeds without an error.
	assert.NoError(t, cartRepo.RemoveItem(ctx, userID, productID))
	assert.NoError(t, cartRepo.RemoveItem(ctx, userID, uuid.New()))
}

func TestSetQuantityRequiresExistingItem(t *testing.T) {
	ctx := context.Background()
	cartRepo := NewCartRepository(testDB)

	err := cartRepo.SetQuantity(ctx, uuid.New(), uuid.New(), 3)
	assert.ErrorIs(t, err, ErrCartItemNotFound)
}

func TestClearEmptiesOnlyTheOwnersCart(t *testing.T) {
	ctx := context.Background()
	cartRepo := NewCartRepository(testDB)

	alice := uuid.New()
	bob := uuid.New()
	productID := insertTestProduct(t, "Cotton Rolls", 25, 50, false)
	insertTestCartItem(t, alice, productID, 2)
	insertTestCartItem(t, bob, productID, 4)

	require.NoError(t, cartRepo.Clear(ctx, alice))
	assert.Equal(t, 0, cartItemCount(t, alice))
	assert.Equal(t, 1, cartItemCount(t, bob))

	// Clearing an already empty cart succeeds
	assert.NoError(t, cartRepo.Clear(ctx, alice))
}
