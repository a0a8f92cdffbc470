package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/anyhowai/moveout/internal/apperr"
	"github.com/anyhowai/moveout/internal/config"
	dbpkg "github.com/anyhowai/moveout/internal/db"
	"github.com/anyhowai/moveout/internal/models"
	"github.com/anyhowai/moveout/internal/utils"
)

// Rating tests need a replica-set MongoDB (transactions); the docker-compose
// dev setup runs mongod as a single-node replica set for this reason.
func setupTestDBRatings(t *testing.T, dbName string) *mongo.Database {
	return utils.SetupTestDB(t, dbName, "items", "ratings", "user_reputation")
}

// pickedUpItem creates an item and walks it to picked_up so it can be rated.
func pickedUpItem(t *testing.T, items IItemService, ownerID utils.SixID) *models.Item {
	t.Helper()
	ctx := context.Background()
	item, err := items.CreateItem(ctx, ownerID, testItemInput())
	require.NoError(t, err)
	item, err = items.ChangeStatus(ctx, item.ID, ownerID, models.StatusPickedUp)
	require.NoError(t, err)
	return item
}

func ratingInput(item *models.Item, raterID, ratedID utils.SixID, stars int) RatingInput {
	return RatingInput{
		ItemID:      item.ID,
		RaterID:     raterID,
		RatedUserID: ratedID,
		Stars:       stars,
		Experience:  models.ExperienceGood,
	}
}

func TestRatingService_CreateAndAggregate(t *testing.T) {
	db := setupTestDBRatings(t, "testdb_rating_service_aggregate")
	cfg := &config.Config{}
	items := NewItemService(db, cfg, nil)
	svc := NewRatingService(db.Client(), db, cfg, nil)
	ctx := context.Background()

	ownerID := utils.NewSixID()

	// Three raters, three completed pickups: [5, 3, 4] must average to 4.0.
	for _, stars := range []int{5, 3, 4} {
		item := pickedUpItem(t, items, ownerID)
		raterID := utils.NewSixID()
		rating, err := svc.CreateRating(ctx, ratingInput(item, raterID, ownerID, stars))
		require.NoError(t, err)
		assert.Equal(t, stars, rating.Stars)
	}

	rep, err := svc.GetReputation(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, rep.AverageRating)
	assert.Equal(t, 3, rep.TotalRatings)
	assert.Equal(t, 3, rep.CompletedPickups)
	assert.Equal(t, models.RatingBreakdown{Three: 1, Four: 1, Five: 1}, rep.Breakdown)

	ratings, err := svc.ListRatingsForUser(ctx, ownerID, 10)
	require.NoError(t, err)
	assert.Len(t, ratings, 3)
}

func TestRatingService_RoundsAverage(t *testing.T) {
	db := setupTestDBRatings(t, "testdb_rating_service_rounding")
	cfg := &config.Config{}
	items := NewItemService(db, cfg, nil)
	svc := NewRatingService(db.Client(), db, cfg, nil)
	ctx := context.Background()

	ownerID := utils.NewSixID()
	for _, stars := range []int{5, 5, 4} {
		item := pickedUpItem(t, items, ownerID)
		_, err := svc.CreateRating(ctx, ratingInput(item, utils.NewSixID(), ownerID, stars))
		require.NoError(t, err)
	}

	rep, err := svc.GetReputation(ctx, ownerID)
	require.NoError(t, err)
	// 14/3 = 4.666..., stored rounded to 2 decimals.
	assert.Equal(t, 4.67, rep.AverageRating)
}

func TestRatingService_DuplicateRejected(t *testing.T) {
	db := setupTestDBRatings(t, "testdb_rating_service_duplicate")
	require.NoError(t, dbpkg.EnsureIndexes(context.Background(), db))
	cfg := &config.Config{}
	items := NewItemService(db, cfg, nil)
	svc := NewRatingService(db.Client(), db, cfg, nil)
	ctx := context.Background()

	ownerID := utils.NewSixID()
	raterID := utils.NewSixID()
	item := pickedUpItem(t, items, ownerID)

	_, err := svc.CreateRating(ctx, ratingInput(item, raterID, ownerID, 5))
	require.NoError(t, err)

	// Second rating for the same (item, rater) pair must conflict.
	_, err = svc.CreateRating(ctx, ratingInput(item, raterID, ownerID, 1))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// The aggregate reflects only the first rating.
	rep, err := svc.GetReputation(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.TotalRatings)
	assert.Equal(t, 5.0, rep.AverageRating)
	assert.Equal(t, models.RatingBreakdown{Five: 1}, rep.Breakdown)
}

func TestRatingService_Validation(t *testing.T) {
	db := setupTestDBRatings(t, "testdb_rating_service_validation")
	cfg := &config.Config{}
	items := NewItemService(db, cfg, nil)
	svc := NewRatingService(db.Client(), db, cfg, nil)
	ctx := context.Background()

	ownerID := utils.NewSixID()
	item := pickedUpItem(t, items, ownerID)

	// Self-rating is always rejected.
	_, err := svc.CreateRating(ctx, ratingInput(item, ownerID, ownerID, 5))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// Stars out of range.
	_, err = svc.CreateRating(ctx, ratingInput(item, utils.NewSixID(), ownerID, 6))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// Unknown item.
	input := ratingInput(item, utils.NewSixID(), ownerID, 4)
	input.ItemID = utils.NewSixID()
	_, err = svc.CreateRating(ctx, input)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// Item not picked up yet.
	fresh, err := items.CreateItem(ctx, ownerID, testItemInput())
	require.NoError(t, err)
	_, err = svc.CreateRating(ctx, ratingInput(fresh, utils.NewSixID(), ownerID, 4))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRatingService_ZeroState(t *testing.T) {
	db := setupTestDBRatings(t, "testdb_rating_service_zero")
	cfg := &config.Config{}
	svc := NewRatingService(db.Client(), db, cfg, nil)

	rep, err := svc.GetReputation(context.Background(), utils.NewSixID())
	require.NoError(t, err)
	assert.Equal(t, 0.0, rep.AverageRating)
	assert.Equal(t, 0, rep.TotalRatings)
	assert.Equal(t, 0, rep.CompletedPickups)
	assert.Equal(t, models.RatingBreakdown{}, rep.Breakdown)
}
