package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anyhowai/moveout/internal/apperr"
	"github.com/anyhowai/moveout/internal/models"
	"github.com/anyhowai/moveout/internal/utils"
)

// IUserService defines the interface for user-related operations. Identity is
// established by the external auth provider; this service only maintains the
// local profile record keyed by the provider-supplied id.
type IUserService interface {
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	EnsureUser(ctx context.Context, userID utils.SixID, name, email string) (*models.User, error)
	UpdateNotificationPreferences(ctx context.Context, userID utils.SixID, prefs models.NotificationPreferences) error
}

const usersCollection = "users"

// userService implements IUserService.
type userService struct {
	db *mongo.Database
}

// NewUserService creates a new UserService.
func NewUserService(database *mongo.Database) IUserService {
	return &userService{db: database}
}

// FindByID finds a non-deleted user by ID.
func (s *userService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": userID, "deleted": false}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Newf(apperr.KindNotFound, "user %s not found", userID.String())
		}
		return nil, apperr.Wrap(apperr.KindTransient, fmt.Sprintf("error finding user %s", userID.String()), err)
	}
	return &user, nil
}

// EnsureUser upserts the local profile for an authenticated identity. Called
// on first contact so the rest of the system can resolve names and emails.
func (s *userService) EnsureUser(ctx context.Context, userID utils.SixID, name, email string) (*models.User, error) {
	if userID == (utils.SixID{}) {
		return nil, apperr.New(apperr.KindValidation, "user id is required")
	}

	now := time.Now().UTC()
	filter := bson.M{"_id": userID}
	update := bson.M{
		"$set": bson.M{
			"name":       name,
			"email":      email,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"suspended":  false,
			"deleted":    false,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var user models.User
	err := s.db.Collection(usersCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, fmt.Sprintf("failed to upsert user %s", userID.String()), err)
	}
	return &user, nil
}

// UpdateNotificationPreferences replaces a user's email notification settings.
func (s *userService) UpdateNotificationPreferences(ctx context.Context, userID utils.SixID, prefs models.NotificationPreferences) error {
	result, err := s.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"_id": userID, "deleted": false},
		bson.M{"$set": bson.M{
			"notification_preferences": prefs,
			"updated_at":               time.Now().UTC(),
		}})
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, fmt.Sprintf("failed to update preferences for user %s", userID.String()), err)
	}
	if result.MatchedCount == 0 {
		return apperr.Newf(apperr.KindNotFound, "user %s not found", userID.String())
	}
	return nil
}
