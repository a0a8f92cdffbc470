package models

import (
	"time"

	"github.com/anyhowai/moveout/internal/utils"
)

// ItemCategory classifies what kind of household item is being given away.
type ItemCategory string

const (
	CategoryFurniture   ItemCategory = "furniture"
	CategoryElectronics ItemCategory = "electronics"
	CategoryClothing    ItemCategory = "clothing"
	CategoryBooks       ItemCategory = "books"
	CategoryKitchen     ItemCategory = "kitchen"
	CategoryDecoration  ItemCategory = "decoration"
	CategoryOther       ItemCategory = "other"
)

// IsValid reports whether c is a known category.
func (c ItemCategory) IsValid() bool {
	switch c {
	case CategoryFurniture, CategoryElectronics, CategoryClothing,
		CategoryBooks, CategoryKitchen, CategoryDecoration, CategoryOther:
		return true
	}
	return false
}

// UrgencyLevel indicates how soon the owner needs the item gone.
type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "low"
	UrgencyModerate UrgencyLevel = "moderate"
	UrgencyUrgent   UrgencyLevel = "urgent"
)

// IsValid reports whether u is a known urgency level.
func (u UrgencyLevel) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyModerate, UrgencyUrgent:
		return true
	}
	return false
}

// ContactInfo is how interested pickers can reach the owner.
type ContactInfo struct {
	Name  string `bson:"name" json:"name"`
	Phone string `bson:"phone,omitempty" json:"phone,omitempty"`
	Email string `bson:"email,omitempty" json:"email,omitempty"`
}

// GeoPoint is a lat/lng coordinate pair.
type GeoPoint struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// Item represents a posted giveaway item.
//
// IsAvailable is derived state and must always equal Status == available;
// every write that changes Status rewrites IsAvailable in the same update.
// List queries may filter on either field.
type Item struct {
	ID             utils.SixID  `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerID        utils.SixID  `bson:"owner_id" json:"owner_id"`
	Title          string       `bson:"title" json:"title"`
	Description    string       `bson:"description" json:"description"`
	Category       ItemCategory `bson:"category" json:"category"`
	Urgency        UrgencyLevel `bson:"urgency" json:"urgency"`
	Address        string       `bson:"address" json:"address"`
	Coordinates    *GeoPoint    `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
	Contact        ContactInfo  `bson:"contact" json:"contact"`
	Image          string       `bson:"image,omitempty" json:"image,omitempty"` // S3 key
	Status         ItemStatus   `bson:"status" json:"status"`
	IsAvailable    bool         `bson:"is_available" json:"is_available"`
	PickupDeadline *time.Time   `bson:"pickup_deadline,omitempty" json:"pickup_deadline,omitempty"`
	CreatedAt      time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `bson:"updated_at" json:"updated_at"`
}

// StatusInfo exposes the presentation metadata for the item's current status.
func (i *Item) StatusInfo() StatusInfo {
	return i.Status.Info()
}
