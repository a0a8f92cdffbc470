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
	"github.com/anyhowai/moveout/internal/db"
	"github.com/anyhowai/moveout/internal/models"
	"github.com/anyhowai/moveout/internal/utils"
)

// IMessageService defines the interface for buyer/seller messaging.
type IMessageService interface {
	SendMessage(ctx context.Context, itemID, senderID, recipientID utils.SixID, body string) (*models.Message, error)
	ListThreads(ctx context.Context, userID utils.SixID) ([]models.MessageThread, error)
	ListMessages(ctx context.Context, threadID, userID utils.SixID, limit int) ([]models.Message, error)
	MarkThreadRead(ctx context.Context, threadID, userID utils.SixID) error
}

const (
	threadsCollection  = "message_threads"
	messagesCollection = "messages"
)

// messageService implements IMessageService.
type messageService struct {
	db *mongo.Database
}

// NewMessageService creates a new MessageService.
func NewMessageService(database *mongo.Database) IMessageService {
	return &messageService{db: database}
}

// findOrCreateThread resolves the unique thread for (item, buyer, seller),
// creating it on first contact. The buyer is whichever participant does not
// own the item.
func (s *messageService) findOrCreateThread(ctx context.Context, itemID, senderID, recipientID utils.SixID) (*models.MessageThread, error) {
	var item models.Item
	err := s.db.Collection(itemsCollection).FindOne(ctx, bson.M{"_id": itemID}).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Newf(apperr.KindNotFound, "item %s not found", itemID.String())
		}
		return nil, apperr.Wrap(apperr.KindTransient, fmt.Sprintf("error finding item %s", itemID.String()), err)
	}

	sellerID := item.OwnerID
	var buyerID utils.SixID
	switch sellerID {
	case senderID:
		buyerID = recipientID
	case recipientID:
		buyerID = senderID
	default:
		return nil, apperr.Newf(apperr.KindForbidden,
			"neither participant owns item %s", itemID.String())
	}

	collection := s.db.Collection(threadsCollection)
	filter := bson.M{"item_id": itemID, "buyer_id": buyerID, "seller_id": sellerID}

	var thread models.MessageThread
	err = collection.FindOne(ctx, filter).Decode(&thread)
	if err == nil {
		return &thread, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.Wrap(apperr.KindTransient, "error finding message thread", err)
	}

	now := time.Now().UTC()
	operation := func() error {
		thread = models.MessageThread{
			ID:       utils.NewSixID(),
			ItemID:   itemID,
			BuyerID:  buyerID,
			SellerID: sellerID,
			UnreadCounts: map[string]int{
				buyerID.String():  0,
				sellerID.String(): 0,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, insertErr := collection.InsertOne(ctx, &thread)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		// A concurrent first message may have created the thread already.
		if db.IsMongoDuplicateKeyError(err) {
			if findErr := collection.FindOne(ctx, filter).Decode(&thread); findErr == nil {
				return &thread, nil
			}
		}
		return nil, apperr.Wrap(apperr.KindTransient, "failed to create message thread", err)
	}
	return &thread, nil
}

// SendMessage stores a message in the (item, buyer, seller) thread, creating
// the thread on first contact, and bumps the recipient's unread count.
func (s *messageService) SendMessage(ctx context.Context, itemID, senderID, recipientID utils.SixID, body string) (*models.Message, error) {
	if senderID == (utils.SixID{}) || recipientID == (utils.SixID{}) {
		return nil, apperr.New(apperr.KindValidation, "sender and recipient ids are required")
	}
	if senderID == recipientID {
		return nil, apperr.New(apperr.KindValidation, "users cannot message themselves")
	}
	if body == "" {
		return nil, apperr.New(apperr.KindValidation, "message body is required")
	}

	thread, err := s.findOrCreateThread(ctx, itemID, senderID, recipientID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var message *models.Message
	operation := func() error {
		message = &models.Message{
			ID:        utils.NewSixID(),
			ThreadID:  thread.ID,
			SenderID:  senderID,
			Body:      body,
			CreatedAt: now,
		}
		_, insertErr := s.db.Collection(messagesCollection).InsertOne(ctx, message)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "failed to store message", err)
	}

	counterparty := thread.Other(senderID)
	update := bson.M{
		"$set": bson.M{
			"last_message":    body,
			"last_message_at": now,
			"updated_at":      now,
		},
		"$inc": bson.M{
			"unread_counts." + counterparty.String(): 1,
		},
	}
	if _, err := s.db.Collection(threadsCollection).UpdateByID(ctx, thread.ID, update); err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "failed to update message thread", err)
	}

	return message, nil
}

// ListThreads returns every thread a user participates in, most recently
// active first.
func (s *messageService) ListThreads(ctx context.Context, userID utils.SixID) ([]models.MessageThread, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"buyer_id": userID},
		bson.M{"seller_id": userID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	cursor, err := s.db.Collection(threadsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "failed to query message threads", err)
	}
	defer cursor.Close(ctx)

	var threads []models.MessageThread
	if err = cursor.All(ctx, &threads); err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "failed to decode message threads", err)
	}
	return threads, nil
}

// loadThreadForParticipant fetches a thread and verifies the user belongs to it.
func (s *messageService) loadThreadForParticipant(ctx context.Context, threadID, userID utils.SixID) (*models.MessageThread, error) {
	var thread models.MessageThread
	err := s.db.Collection(threadsCollection).FindOne(ctx, bson.M{"_id": threadID}).Decode(&thread)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Newf(apperr.KindNotFound, "thread %s not found", threadID.String())
		}
		return nil, apperr.Wrap(apperr.KindTransient, fmt.Sprintf("error finding thread %s", threadID.String()), err)
	}
	if !thread.Participant(userID) {
		return nil, apperr.Newf(apperr.KindForbidden,
			"user %s is not a participant of thread %s", userID.String(), threadID.String())
	}
	return &thread, nil
}

// ListMessages returns a thread's messages in creation order. Only
// participants may read a thread.
func (s *messageService) ListMessages(ctx context.Context, threadID, userID utils.SixID, limit int) ([]models.Message, error) {
	if _, err := s.loadThreadForParticipant(ctx, threadID, userID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 200 {
		limit = 200
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := s.db.Collection(messagesCollection).Find(ctx, bson.M{"thread_id": threadID}, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "failed to query messages", err)
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "failed to decode messages", err)
	}
	return messages, nil
}

// MarkThreadRead resets the calling participant's unread counter.
func (s *messageService) MarkThreadRead(ctx context.Context, threadID, userID utils.SixID) error {
	if _, err := s.loadThreadForParticipant(ctx, threadID, userID); err != nil {
		return err
	}

	update := bson.M{"$set": bson.M{
		"unread_counts." + userID.String(): 0,
		"updated_at":                       time.Now().UTC(),
	}}
	if _, err := s.db.Collection(threadsCollection).UpdateByID(ctx, threadID, update); err != nil {
		return apperr.Wrap(apperr.KindTransient, fmt.Sprintf("failed to mark thread %s read", threadID.String()), err)
	}
	return nil
}
