package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anyhowai/moveout/internal/apperr"
	"github.com/anyhowai/moveout/internal/config"
	"github.com/anyhowai/moveout/internal/db"
	"github.com/anyhowai/moveout/internal/models"
	"github.com/anyhowai/moveout/internal/storage"
	"github.com/anyhowai/moveout/internal/utils"
)

// ItemInput carries the caller-supplied fields for creating or editing an item.
type ItemInput struct {
	Title          string
	Description    string
	Category       models.ItemCategory
	Urgency        models.UrgencyLevel
	Address        string
	Coordinates    *models.GeoPoint
	Contact        models.ContactInfo
	Image          string
	PickupDeadline *time.Time
}

// ItemFilter narrows ListItems results. Nil fields are ignored.
type ItemFilter struct {
	Category      *models.ItemCategory
	Urgency       *models.UrgencyLevel
	OwnerID       *utils.SixID
	AvailableOnly bool
	Limit         int
}

// SweepResult reports what an expiration sweep did (or, for a dry run,
// would do).
type SweepResult struct {
	ExpiredCount int           `json:"expired_count"`
	ExpiredIDs   []utils.SixID `json:"expired_ids"`
}

// IItemService defines the interface for item lifecycle operations.
type IItemService interface {
	CreateItem(ctx context.Context, ownerID utils.SixID, input ItemInput) (*models.Item, error)
	FindItemByID(ctx context.Context, itemID utils.SixID) (*models.Item, error)
	FindItemsByIDs(ctx context.Context, itemIDs []utils.SixID) ([]models.Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]models.Item, error)
	UpdateItem(ctx context.Context, itemID, userID utils.SixID, updates map[string]interface{}) (*models.Item, error)
	ChangeStatus(ctx context.Context, itemID, actorID utils.SixID, next models.ItemStatus) (*models.Item, error)
	DeleteItem(ctx context.Context, itemID, userID utils.SixID) error
	SetItemImage(ctx context.Context, itemID utils.SixID, imageKey string) error
	ExpireOverdue(ctx context.Context, now time.Time) (*SweepResult, error)
	CheckOverdue(ctx context.Context, now time.Time) (*SweepResult, error)
}

const itemsCollection = "items"

// MaxBulkItems caps how many ids a single bulk fetch may request.
const MaxBulkItems = 10

// retryTransient runs a store round trip under the bounded-backoff policy:
// transient faults are retried, every other error kind surfaces on the first
// attempt. Swappable in tests.
var retryTransient = db.TryTransient

// itemService implements IItemService.
type itemService struct {
	db      *mongo.Database
	cfg     *config.Config
	storage storage.IS3Storage
	policy  models.StatusPolicy
}

// NewItemService creates a new ItemService. storage may be nil in contexts
// that never delete items (e.g. the background sweep worker).
func NewItemService(database *mongo.Database, cfg *config.Config, st storage.IS3Storage) IItemService {
	return &itemService{
		db:      database,
		cfg:     cfg,
		storage: st,
		policy:  models.StatusPolicy{AllowOwnerExpire: cfg.AllowOwnerExpire},
	}
}

func validateItemInput(input ItemInput) error {
	fields := map[string]string{}
	if input.Title == "" {
		fields["title"] = "required"
	}
	if input.Description == "" {
		fields["description"] = "required"
	}
	if !input.Category.IsValid() {
		fields["category"] = "unknown category"
	}
	if !input.Urgency.IsValid() {
		fields["urgency"] = "unknown urgency"
	}
	if input.Address == "" {
		fields["address"] = "required"
	}
	if input.Contact.Name == "" {
		fields["contact.name"] = "required"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid item input", fields)
	}
	return nil
}

// CreateItem creates a new item in the available state.
func (s *itemService) CreateItem(ctx context.Context, ownerID utils.SixID, input ItemInput) (*models.Item, error) {
	if ownerID == (utils.SixID{}) {
		return nil, apperr.New(apperr.KindValidation, "owner id is required")
	}
	if err := validateItemInput(input); err != nil {
		return nil, err
	}

	collection := s.db.Collection(itemsCollection)
	now := time.Now().UTC()

	var newItem *models.Item

	operation := func() error {
		newItem = &models.Item{
			ID:             utils.NewSixID(),
			OwnerID:        ownerID,
			Title:          input.Title,
			Description:    input.Description,
			Category:       input.Category,
			Urgency:        input.Urgency,
			Address:        input.Address,
			Coordinates:    input.Coordinates,
			Contact:        input.Contact,
			Image:          input.Image,
			Status:         models.StatusAvailable,
			IsAvailable:    true,
			PickupDeadline: input.PickupDeadline,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		_, insertErr := collection.InsertOne(ctx, newItem)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		itemIDStr := "<unknown>"
		if newItem != nil {
			itemIDStr = newItem.ID.String()
		}
		return nil, apperr.Wrap(apperr.KindTransient,
			fmt.Sprintf("failed to insert new item for user %s (last attempted item ID: %s)", ownerID.String(), itemIDStr), err)
	}

	return newItem, nil
}

// FindItemByID finds an item by its ID. It does NOT check ownership.
func (s *itemService) FindItemByID(ctx context.Context, itemID utils.SixID) (*models.Item, error) {
	var item models.Item
	collection := s.db.Collection(itemsCollection)

	err := retryTransient(func() error {
		err := collection.FindOne(ctx, bson.M{"_id": itemID}).Decode(&item)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.Newf(apperr.KindNotFound, "item %s not found", itemID.String())
		}
		return apperr.Wrap(apperr.KindTransient, fmt.Sprintf("error finding item %s", itemID.String()), err)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemsByIDs fetches up to MaxBulkItems items in one query. Missing ids
// are silently omitted from the result.
func (s *itemService) FindItemsByIDs(ctx context.Context, itemIDs []utils.SixID) ([]models.Item, error) {
	if len(itemIDs) == 0 {
		return nil, apperr.New(apperr.KindValidation, "at least one item id is required")
	}
	if len(itemIDs) > MaxBulkItems {
		return nil, apperr.Newf(apperr.KindValidation, "at most %d item ids per request", MaxBulkItems)
	}

	collection := s.db.Collection(itemsCollection)
	var items []models.Item
	err := retryTransient(func() error {
		cursor, err := collection.Find(ctx, bson.M{"_id": bson.M{"$in": itemIDs}})
		if err != nil {
			return apperr.Wrap(apperr.KindTransient, "failed to query items by ids", err)
		}
		defer cursor.Close(ctx)

		var batch []models.Item
		if err = cursor.All(ctx, &batch); err != nil {
			return apperr.Wrap(apperr.KindTransient, "failed to decode items", err)
		}
		items = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListItems returns items matching the filter, newest first.
func (s *itemService) ListItems(ctx context.Context, filter ItemFilter) ([]models.Item, error) {
	query := bson.M{}
	if filter.Category != nil {
		query["category"] = *filter.Category
	}
	if filter.Urgency != nil {
		query["urgency"] = *filter.Urgency
	}
	if filter.OwnerID != nil {
		query["owner_id"] = *filter.OwnerID
	}
	if filter.AvailableOnly {
		query["is_available"] = true
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	var items []models.Item
	err := retryTransient(func() error {
		cursor, err := s.db.Collection(itemsCollection).Find(ctx, query, opts)
		if err != nil {
			return apperr.Wrap(apperr.KindTransient, "failed to execute item list query", err)
		}
		defer cursor.Close(ctx)

		var batch []models.Item
		if err = cursor.All(ctx, &batch); err != nil {
			return apperr.Wrap(apperr.KindTransient, "failed to decode item list results", err)
		}
		items = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateItem updates mutable fields of an item owned by the specified user.
// Status is deliberately not updatable here; ChangeStatus enforces the
// transition policy. `updates` maps BSON field names to new values.
func (s *itemService) UpdateItem(ctx context.Context, itemID, userID utils.SixID, updates map[string]interface{}) (*models.Item, error) {
	if userID == (utils.SixID{}) {
		return nil, apperr.New(apperr.KindValidation, "user id is required")
	}

	collection := s.db.Collection(itemsCollection)

	allowedUpdates := bson.M{}
	for key, value := range updates {
		switch key {
		case "title", "description", "category", "urgency", "address",
			"coordinates", "contact", "image", "pickup_deadline":
			allowedUpdates[key] = value
		default:
			return nil, apperr.Newf(apperr.KindValidation, "field '%s' cannot be updated via UpdateItem", key)
		}
	}
	if len(allowedUpdates) == 0 {
		return nil, apperr.New(apperr.KindValidation, "no valid fields provided for update")
	}
	allowedUpdates["updated_at"] = time.Now().UTC()

	// Ownership is enforced in the update filter itself; a mismatch simply
	// matches nothing and is diagnosed below.
	filter := bson.M{
		"_id":      itemID,
		"owner_id": userID,
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updatedItem models.Item
	err := retryTransient(func() error {
		err := collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": allowedUpdates}, opts).Decode(&updatedItem)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return s.diagnoseOwnershipMiss(ctx, itemID, userID)
		}
		return apperr.Wrap(apperr.KindTransient, fmt.Sprintf("failed to update item %s", itemID.String()), err)
	})
	if err != nil {
		return nil, err
	}

	return &updatedItem, nil
}

// diagnoseOwnershipMiss distinguishes a not-found target from an ownership
// mismatch after an ownership-filtered update matched nothing.
func (s *itemService) diagnoseOwnershipMiss(ctx context.Context, itemID, userID utils.SixID) error {
	var item models.Item
	err := s.db.Collection(itemsCollection).FindOne(ctx, bson.M{"_id": itemID}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.Newf(apperr.KindNotFound, "item %s not found", itemID.String())
	}
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, fmt.Sprintf("error checking item %s", itemID.String()), err)
	}
	if item.OwnerID != userID {
		return apperr.Newf(apperr.KindForbidden, "item %s does not belong to user %s", itemID.String(), userID.String())
	}
	return apperr.Newf(apperr.KindConflict, "item %s cannot be updated (condition not met)", itemID.String())
}

// ChangeStatus applies an actor-checked status transition. The write is
// conditional on the status read during the policy check, so a concurrent
// transition (including the sweep) causes this call to fail with a conflict
// rather than silently losing an update.
func (s *itemService) ChangeStatus(ctx context.Context, itemID, actorID utils.SixID, next models.ItemStatus) (*models.Item, error) {
	if actorID == (utils.SixID{}) {
		return nil, apperr.New(apperr.KindValidation, "user id is required")
	}
	if !next.IsValid() {
		return nil, apperr.Newf(apperr.KindValidation, "unknown status %q", next)
	}

	item, err := s.FindItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	isOwner := item.OwnerID == actorID
	if !s.policy.CanTransition(item.Status, next, isOwner) {
		return nil, apperr.Newf(apperr.KindForbidden,
			"status transition %s -> %s not permitted for user %s", item.Status, next, actorID.String())
	}

	now := time.Now().UTC()
	filter := bson.M{
		"_id":    itemID,
		"status": item.Status, // compare-and-swap on the status we checked
	}
	update := bson.M{"$set": bson.M{
		"status":       next,
		"is_available": next == models.StatusAvailable,
		"updated_at":   now,
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updatedItem models.Item
	err = retryTransient(func() error {
		err := s.db.Collection(itemsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&updatedItem)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.Newf(apperr.KindConflict,
				"item %s changed concurrently, status transition aborted", itemID.String())
		}
		return apperr.Wrap(apperr.KindTransient, fmt.Sprintf("failed to change status of item %s", itemID.String()), err)
	})
	if err != nil {
		return nil, err
	}

	return &updatedItem, nil
}

// DeleteItem removes an item owned by the specified user. Deleting the
// associated S3 image is best-effort: a failure there is logged, never
// propagated, so the item record always goes away.
func (s *itemService) DeleteItem(ctx context.Context, itemID, userID utils.SixID) error {
	if userID == (utils.SixID{}) {
		return apperr.New(apperr.KindValidation, "user id is required")
	}

	item, err := s.FindItemByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item.OwnerID != userID {
		return apperr.Newf(apperr.KindForbidden, "item %s does not belong to user %s", itemID.String(), userID.String())
	}

	err = retryTransient(func() error {
		result, err := s.db.Collection(itemsCollection).DeleteOne(ctx, bson.M{"_id": itemID, "owner_id": userID})
		if err != nil {
			return apperr.Wrap(apperr.KindTransient, fmt.Sprintf("failed to delete item %s", itemID.String()), err)
		}
		if result.DeletedCount == 0 {
			return apperr.Newf(apperr.KindNotFound, "item %s not found", itemID.String())
		}
		return nil
	})
	if err != nil {
		return err
	}

	if item.Image != "" && s.storage != nil {
		if delErr := s.storage.DeleteObject(ctx, item.Image); delErr != nil {
			log.Printf("Warning: failed to delete image %s for item %s: %v", item.Image, itemID.String(), delErr)
		}
	}

	return nil
}

// SetItemImage records a processed image key on an item. Called by the image
// normalization task once the upload has been resized.
func (s *itemService) SetItemImage(ctx context.Context, itemID utils.SixID, imageKey string) error {
	return retryTransient(func() error {
		result, err := s.db.Collection(itemsCollection).UpdateOne(ctx,
			bson.M{"_id": itemID},
			bson.M{"$set": bson.M{"image": imageKey, "updated_at": time.Now().UTC()}})
		if err != nil {
			return apperr.Wrap(apperr.KindTransient, fmt.Sprintf("db error setting image on item %s", itemID.String()), err)
		}
		if result.MatchedCount == 0 {
			return apperr.Newf(apperr.KindNotFound, "item %s not found when setting image", itemID.String())
		}
		return nil
	})
}

// overdueFilter matches items whose pickup deadline has passed and which are
// still available or pending. picked_up items are exempt by construction.
func overdueFilter(now time.Time) bson.M {
	return bson.M{
		"pickup_deadline": bson.M{"$lte": now},
		"status":          bson.M{"$in": []models.ItemStatus{models.StatusAvailable, models.StatusPending}},
	}
}

// findOverdue queries the current sweep candidates under the transient-retry
// policy.
func (s *itemService) findOverdue(ctx context.Context, now time.Time) ([]models.Item, error) {
	var candidates []models.Item
	err := retryTransient(func() error {
		cursor, err := s.db.Collection(itemsCollection).Find(ctx, overdueFilter(now))
		if err != nil {
			return apperr.Wrap(apperr.KindTransient, "failed to query overdue items", err)
		}
		defer cursor.Close(ctx)

		var batch []models.Item
		if err = cursor.All(ctx, &batch); err != nil {
			return apperr.Wrap(apperr.KindTransient, "failed to decode overdue items", err)
		}
		candidates = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// ExpireOverdue transitions every overdue available/pending item to expired.
// Each write is conditional on the candidate's queried status, so an item
// picked up between the query and the write is left alone and simply dropped
// from the result. Running the sweep twice in a row is a no-op the second
// time.
func (s *itemService) ExpireOverdue(ctx context.Context, now time.Time) (*SweepResult, error) {
	collection := s.db.Collection(itemsCollection)

	candidates, err := s.findOverdue(ctx, now)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{ExpiredIDs: []utils.SixID{}}
	for _, item := range candidates {
		update := bson.M{"$set": bson.M{
			"status":       models.StatusExpired,
			"is_available": false,
			"updated_at":   now,
		}}
		// Conditional on the status seen at query time: the store itself
		// rejects the write if the item moved on meanwhile.
		res, err := collection.UpdateOne(ctx, bson.M{"_id": item.ID, "status": item.Status}, update)
		if err != nil {
			log.Printf("Warning: failed to expire item %s: %v", item.ID.String(), err)
			continue
		}
		if res.ModifiedCount == 1 {
			result.ExpiredCount++
			result.ExpiredIDs = append(result.ExpiredIDs, item.ID)
		}
	}

	return result, nil
}

// CheckOverdue is the dry-run variant of ExpireOverdue: it reports which
// items the sweep would expire without writing anything.
func (s *itemService) CheckOverdue(ctx context.Context, now time.Time) (*SweepResult, error) {
	candidates, err := s.findOverdue(ctx, now)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{ExpiredIDs: []utils.SixID{}}
	for _, item := range candidates {
		result.ExpiredCount++
		result.ExpiredIDs = append(result.ExpiredIDs, item.ID)
	}
	return result, nil
}
