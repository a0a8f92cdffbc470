package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anyhowai/moveout/internal/apperr"
	"github.com/anyhowai/moveout/internal/cache"
	"github.com/anyhowai/moveout/internal/config"
	"github.com/anyhowai/moveout/internal/db"
	"github.com/anyhowai/moveout/internal/models"
	"github.com/anyhowai/moveout/internal/utils"
)

// RatingInput carries the caller-supplied fields for submitting a rating.
type RatingInput struct {
	ItemID      utils.SixID
	RaterID     utils.SixID
	RatedUserID utils.SixID
	Stars       int
	Review      string
	Experience  models.PickupExperience
}

// IRatingService defines the interface for rating and reputation operations.
type IRatingService interface {
	CreateRating(ctx context.Context, input RatingInput) (*models.Rating, error)
	GetReputation(ctx context.Context, userID utils.SixID) (*models.UserReputation, error)
	ListRatingsForUser(ctx context.Context, userID utils.SixID, limit int) ([]models.Rating, error)
}

const (
	ratingsCollection    = "ratings"
	reputationCollection = "user_reputation"
)

// ratingService implements IRatingService.
type ratingService struct {
	client *mongo.Client
	db     *mongo.Database
	cfg    *config.Config
	rdb    *redis.Client
}

// NewRatingService creates a new RatingService. rdb may be nil; reputation
// caching is then skipped.
func NewRatingService(client *mongo.Client, database *mongo.Database, cfg *config.Config, rdb *redis.Client) IRatingService {
	return &ratingService{client: client, db: database, cfg: cfg, rdb: rdb}
}

func reputationCacheKey(userID utils.SixID) string {
	return "reputation:" + userID.String()
}

// round2 rounds to 2 decimal places, the precision the aggregate stores.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func validateRatingInput(input RatingInput) error {
	fields := map[string]string{}
	if input.ItemID == (utils.SixID{}) {
		fields["item_id"] = "required"
	}
	if input.RaterID == (utils.SixID{}) {
		fields["rater_id"] = "required"
	}
	if input.RatedUserID == (utils.SixID{}) {
		fields["rated_user_id"] = "required"
	}
	if input.Stars < 1 || input.Stars > 5 {
		fields["stars"] = "must be between 1 and 5"
	}
	if !input.Experience.IsValid() {
		fields["experience"] = "unknown pickup experience"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid rating input", fields)
	}
	if input.RaterID == input.RatedUserID {
		return apperr.New(apperr.KindValidation, "users cannot rate themselves")
	}
	return nil
}

// CreateRating validates and stores a rating, folding it into the rated
// user's reputation aggregate in the same transaction. Either both writes
// commit or neither does.
func (s *ratingService) CreateRating(ctx context.Context, input RatingInput) (*models.Rating, error) {
	if err := validateRatingInput(input); err != nil {
		return nil, err
	}

	// The target item must exist and the pickup must have completed.
	var item models.Item
	err := retryTransient(func() error {
		err := s.db.Collection(itemsCollection).FindOne(ctx, bson.M{"_id": input.ItemID}).Decode(&item)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.Newf(apperr.KindNotFound, "item %s not found", input.ItemID.String())
		}
		return apperr.Wrap(apperr.KindTransient, fmt.Sprintf("error finding item %s", input.ItemID.String()), err)
	})
	if err != nil {
		return nil, err
	}
	if item.Status != models.StatusPickedUp {
		return nil, apperr.Newf(apperr.KindValidation,
			"item %s has not been picked up, cannot be rated", input.ItemID.String())
	}

	now := time.Now().UTC()
	rating := &models.Rating{
		ID:          utils.NewSixID(),
		ItemID:      input.ItemID,
		RaterID:     input.RaterID,
		RatedUserID: input.RatedUserID,
		Stars:       input.Stars,
		Review:      input.Review,
		Experience:  input.Experience,
		CreatedAt:   now,
	}

	txnErr := db.WithTransaction(ctx, s.client, func(sc mongo.SessionContext) error {
		if _, err := s.db.Collection(ratingsCollection).InsertOne(sc, rating); err != nil {
			return err
		}

		// Read-modify-write of the aggregate inside the transaction keeps
		// average and histogram mutually consistent under concurrency.
		var rep models.UserReputation
		err := s.db.Collection(reputationCollection).FindOne(sc, bson.M{"_id": input.RatedUserID}).Decode(&rep)
		if errors.Is(err, mongo.ErrNoDocuments) {
			rep = *models.NewUserReputation(input.RatedUserID)
		} else if err != nil {
			return err
		}

		newCount := rep.TotalRatings + 1
		rep.AverageRating = round2((rep.AverageRating*float64(rep.TotalRatings) + float64(input.Stars)) / float64(newCount))
		rep.TotalRatings = newCount
		if bucket := rep.Breakdown.Bucket(input.Stars); bucket != nil {
			*bucket++
		}
		rep.CompletedPickups++
		rep.UpdatedAt = now

		opts := options.Replace().SetUpsert(true)
		_, err = s.db.Collection(reputationCollection).ReplaceOne(sc, bson.M{"_id": input.RatedUserID}, &rep, opts)
		return err
	})

	if txnErr != nil {
		if db.IsMongoDuplicateKeyError(txnErr) {
			return nil, apperr.Newf(apperr.KindConflict,
				"user %s has already rated item %s", input.RaterID.String(), input.ItemID.String())
		}
		return nil, apperr.Wrap(apperr.KindTransient, "failed to store rating", txnErr)
	}

	// Invalidate the cached aggregate; best-effort.
	if s.rdb != nil {
		if err := s.rdb.Del(ctx, reputationCacheKey(input.RatedUserID)).Err(); err != nil {
			log.Printf("Warning: failed to invalidate reputation cache for user %s: %v", input.RatedUserID.String(), err)
		}
	}

	return rating, nil
}

// GetReputation returns the reputation aggregate for a user, or the zero
// state if the user has never been rated. Results are cached briefly in
// Redis since the aggregate is read far more often than it changes.
func (s *ratingService) GetReputation(ctx context.Context, userID utils.SixID) (*models.UserReputation, error) {
	if s.rdb != nil {
		var cached models.UserReputation
		if hit, err := cache.GetJSON(ctx, s.rdb, reputationCacheKey(userID), &cached); err == nil && hit {
			return &cached, nil
		}
	}

	var rep models.UserReputation
	found := true
	err := retryTransient(func() error {
		err := s.db.Collection(reputationCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&rep)
		if errors.Is(err, mongo.ErrNoDocuments) {
			found = false
			return nil
		}
		return apperr.Wrap(apperr.KindTransient, fmt.Sprintf("error loading reputation for user %s", userID.String()), err)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return models.NewUserReputation(userID), nil
	}

	if s.rdb != nil {
		if err := cache.SetJSON(ctx, s.rdb, reputationCacheKey(userID), &rep, s.cfg.GetCacheTTL); err != nil {
			log.Printf("Warning: failed to cache reputation for user %s: %v", userID.String(), err)
		}
	}

	return &rep, nil
}

// ListRatingsForUser returns ratings received by a user, newest first.
func (s *ratingService) ListRatingsForUser(ctx context.Context, userID utils.SixID, limit int) ([]models.Rating, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.db.Collection(ratingsCollection).Find(ctx, bson.M{"rated_user_id": userID}, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "failed to query ratings", err)
	}
	defer cursor.Close(ctx)

	var ratings []models.Rating
	if err = cursor.All(ctx, &ratings); err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "failed to decode ratings", err)
	}
	return ratings, nil
}
