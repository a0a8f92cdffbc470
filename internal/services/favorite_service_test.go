package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/anyhowai/moveout/internal/apperr"
	dbpkg "github.com/anyhowai/moveout/internal/db"
	"github.com/anyhowai/moveout/internal/utils"
)

func setupTestDBFavorites(t *testing.T, dbName string) *mongo.Database {
	db := utils.SetupTestDB(t, dbName, "favorites")
	require.NoError(t, dbpkg.EnsureIndexes(context.Background(), db))
	return db
}

func TestFavoriteService_AddRemove(t *testing.T) {
	db := setupTestDBFavorites(t, "testdb_favorite_service_addremove")
	svc := NewFavoriteService(db)
	ctx := context.Background()

	userID := utils.NewSixID()
	itemID := utils.NewSixID()

	fav, err := svc.AddFavorite(ctx, userID, itemID)
	require.NoError(t, err)
	assert.Equal(t, userID, fav.UserID)
	assert.Equal(t, itemID, fav.ItemID)

	is, err := svc.IsFavorite(ctx, userID, itemID)
	require.NoError(t, err)
	assert.True(t, is)

	// Adding the same pair again conflicts; the set is unchanged.
	_, err = svc.AddFavorite(ctx, userID, itemID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	favorites, err := svc.ListFavorites(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, favorites, 1)

	require.NoError(t, svc.RemoveFavorite(ctx, userID, itemID))
	is, err = svc.IsFavorite(ctx, userID, itemID)
	require.NoError(t, err)
	assert.False(t, is)

	// Removing again is a no-op.
	assert.NoError(t, svc.RemoveFavorite(ctx, userID, itemID))
}

func TestFavoriteService_PerUserSets(t *testing.T) {
	db := setupTestDBFavorites(t, "testdb_favorite_service_perUser")
	svc := NewFavoriteService(db)
	ctx := context.Background()

	alice := utils.NewSixID()
	bob := utils.NewSixID()
	itemID := utils.NewSixID()

	// The same item can be favorited by different users.
	_, err := svc.AddFavorite(ctx, alice, itemID)
	require.NoError(t, err)
	_, err = svc.AddFavorite(ctx, bob, itemID)
	require.NoError(t, err)

	aliceFavs, err := svc.ListFavorites(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, aliceFavs, 1)

	// Removing from one set does not touch the other.
	require.NoError(t, svc.RemoveFavorite(ctx, alice, itemID))
	is, err := svc.IsFavorite(ctx, bob, itemID)
	require.NoError(t, err)
	assert.True(t, is)
}

func TestFavoriteService_Validation(t *testing.T) {
	db := setupTestDBFavorites(t, "testdb_favorite_service_validation")
	svc := NewFavoriteService(db)
	ctx := context.Background()

	_, err := svc.AddFavorite(ctx, utils.SixID{}, utils.NewSixID())
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = svc.RemoveFavorite(ctx, utils.NewSixID(), utils.SixID{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
