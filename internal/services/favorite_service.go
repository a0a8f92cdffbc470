package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anyhowai/moveout/internal/apperr"
	"github.com/anyhowai/moveout/internal/db"
	"github.com/anyhowai/moveout/internal/models"
	"github.com/anyhowai/moveout/internal/utils"
)

// IFavoriteService defines the interface for per-user favorite sets.
type IFavoriteService interface {
	AddFavorite(ctx context.Context, userID, itemID utils.SixID) (*models.Favorite, error)
	RemoveFavorite(ctx context.Context, userID, itemID utils.SixID) error
	ListFavorites(ctx context.Context, userID utils.SixID) ([]models.Favorite, error)
	IsFavorite(ctx context.Context, userID, itemID utils.SixID) (bool, error)
}

const favoritesCollection = "favorites"

// favoriteService implements IFavoriteService.
type favoriteService struct {
	db *mongo.Database
}

// NewFavoriteService creates a new FavoriteService.
func NewFavoriteService(database *mongo.Database) IFavoriteService {
	return &favoriteService{db: database}
}

// AddFavorite adds an item to a user's favorite set. A duplicate add is
// rejected with a conflict; clients treat that as success (the set already
// holds the item).
func (s *favoriteService) AddFavorite(ctx context.Context, userID, itemID utils.SixID) (*models.Favorite, error) {
	if userID == (utils.SixID{}) || itemID == (utils.SixID{}) {
		return nil, apperr.New(apperr.KindValidation, "user id and item id are required")
	}

	// The unique (user_id, item_id) index turns a duplicate add into a
	// duplicate-key error; only an _id collision should be retried.
	collection := s.db.Collection(favoritesCollection)
	var fav *models.Favorite

	operation := func() error {
		fav = &models.Favorite{
			ID:        utils.NewSixID(),
			UserID:    userID,
			ItemID:    itemID,
			CreatedAt: time.Now().UTC(),
		}
		_, insertErr := collection.InsertOne(ctx, fav)
		if db.IsMongoDuplicateKeyError(insertErr) {
			// Distinguish pair duplicates from _id collisions.
			count, countErr := collection.CountDocuments(ctx, bson.M{"user_id": userID, "item_id": itemID})
			if countErr == nil && count > 0 {
				return apperr.Newf(apperr.KindConflict,
					"item %s is already a favorite of user %s", itemID.String(), userID.String())
			}
		}
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindTransient,
			fmt.Sprintf("failed to add favorite for user %s", userID.String()), err)
	}

	return fav, nil
}

// RemoveFavorite deletes the (user, item) pair. Removing a non-favorited
// item is a no-op.
func (s *favoriteService) RemoveFavorite(ctx context.Context, userID, itemID utils.SixID) error {
	if userID == (utils.SixID{}) || itemID == (utils.SixID{}) {
		return apperr.New(apperr.KindValidation, "user id and item id are required")
	}

	_, err := s.db.Collection(favoritesCollection).DeleteOne(ctx, bson.M{"user_id": userID, "item_id": itemID})
	if err != nil {
		return apperr.Wrap(apperr.KindTransient,
			fmt.Sprintf("failed to remove favorite for user %s", userID.String()), err)
	}
	return nil
}

// ListFavorites returns a user's favorites, newest first.
func (s *favoriteService) ListFavorites(ctx context.Context, userID utils.SixID) ([]models.Favorite, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(favoritesCollection).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "failed to query favorites", err)
	}
	defer cursor.Close(ctx)

	var favorites []models.Favorite
	if err = cursor.All(ctx, &favorites); err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "failed to decode favorites", err)
	}
	return favorites, nil
}

// IsFavorite reports whether the pair exists.
func (s *favoriteService) IsFavorite(ctx context.Context, userID, itemID utils.SixID) (bool, error) {
	count, err := s.db.Collection(favoritesCollection).CountDocuments(ctx, bson.M{"user_id": userID, "item_id": itemID})
	if err != nil {
		return false, apperr.Wrap(apperr.KindTransient, "failed to check favorite", err)
	}
	return count > 0, nil
}
