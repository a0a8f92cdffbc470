package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/anyhowai/moveout/internal/apperr"
	"github.com/anyhowai/moveout/internal/models"
	"github.com/anyhowai/moveout/internal/utils"
)

func setupTestDBUsers(t *testing.T, dbName string) *mongo.Database {
	return utils.SetupTestDB(t, dbName, "users")
}

func TestUserService_EnsureAndFind(t *testing.T) {
	db := setupTestDBUsers(t, "testdb_user_service_ensure")
	svc := NewUserService(db)
	ctx := context.Background()

	userID := utils.NewSixID()

	user, err := svc.EnsureUser(ctx, userID, "Sam", "sam@example.com")
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, "Sam", user.Name)
	assert.Equal(t, "sam@example.com", user.Email)
	assert.False(t, user.Suspended)
	createdAt := user.CreatedAt

	// A second call updates the profile but keeps the original created_at.
	user, err = svc.EnsureUser(ctx, userID, "Samantha", "sam@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Samantha", user.Name)
	assert.Equal(t, createdAt.Unix(), user.CreatedAt.Unix())

	found, err := svc.FindByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "Samantha", found.Name)
}

func TestUserService_FindByID_NotFound(t *testing.T) {
	db := setupTestDBUsers(t, "testdb_user_service_notfound")
	svc := NewUserService(db)
	ctx := context.Background()

	_, err := svc.FindByID(ctx, utils.NewSixID())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUserService_EnsureUser_RequiresID(t *testing.T) {
	db := setupTestDBUsers(t, "testdb_user_service_zeroid")
	svc := NewUserService(db)

	_, err := svc.EnsureUser(context.Background(), utils.SixID{}, "Sam", "sam@example.com")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUserService_UpdateNotificationPreferences(t *testing.T) {
	db := setupTestDBUsers(t, "testdb_user_service_prefs")
	svc := NewUserService(db)
	ctx := context.Background()

	userID := utils.NewSixID()
	_, err := svc.EnsureUser(ctx, userID, "Sam", "sam@example.com")
	require.NoError(t, err)

	prefs := models.NotificationPreferences{NewMessage: true, ItemExpired: false, ReportAck: true, RatingNew: true}
	require.NoError(t, svc.UpdateNotificationPreferences(ctx, userID, prefs))

	user, err := svc.FindByID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, user.NotificationPreferences)
	assert.True(t, user.NotificationPreferences.NewMessage)
	assert.False(t, user.NotificationPreferences.ItemExpired)

	// Unknown user is a not-found, not a silent no-op.
	err = svc.UpdateNotificationPreferences(ctx, utils.NewSixID(), prefs)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
