package models

import (
	"time"

	"github.com/anyhowai/moveout/internal/utils"
)

// MessageThread pairs exactly one buyer and one seller per item. A thread is
// found-or-created on the first message between the pair; UnreadCounts maps
// participant id (string form) to that participant's unread message count.
type MessageThread struct {
	ID            utils.SixID    `bson:"_id,omitempty" json:"id,omitempty"`
	ItemID        utils.SixID    `bson:"item_id" json:"item_id"`
	BuyerID       utils.SixID    `bson:"buyer_id" json:"buyer_id"`
	SellerID      utils.SixID    `bson:"seller_id" json:"seller_id"`
	LastMessage   string         `bson:"last_message,omitempty" json:"last_message,omitempty"`
	LastMessageAt *time.Time     `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
	UnreadCounts  map[string]int `bson:"unread_counts" json:"unread_counts"`
	CreatedAt     time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `bson:"updated_at" json:"updated_at"`
}

// Participant reports whether userID is the buyer or the seller of the thread.
func (t *MessageThread) Participant(userID utils.SixID) bool {
	return t.BuyerID == userID || t.SellerID == userID
}

// Other returns the counterparty of userID in the thread. The caller must
// have verified participation first.
func (t *MessageThread) Other(userID utils.SixID) utils.SixID {
	if t.BuyerID == userID {
		return t.SellerID
	}
	return t.BuyerID
}

// Message is a single message within a thread, ordered by creation time.
type Message struct {
	ID        utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	ThreadID  utils.SixID `bson:"thread_id" json:"thread_id"`
	SenderID  utils.SixID `bson:"sender_id" json:"sender_id"`
	Body      string      `bson:"body" json:"body"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}
