package models

import (
	"time"

	"github.com/anyhowai/moveout/internal/utils"
)

// Favorite is a (user, item) set-membership record. There are no update
// semantics: favorites are only ever created or deleted, and a unique index
// on the pair keeps the set free of duplicates.
type Favorite struct {
	ID        utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    utils.SixID `bson:"user_id" json:"user_id"`
	ItemID    utils.SixID `bson:"item_id" json:"item_id"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}
