package models

import (
	"time"

	"github.com/anyhowai/moveout/internal/utils"
)

// PickupExperience is the qualitative side of a rating.
type PickupExperience string

const (
	ExperienceExcellent PickupExperience = "excellent"
	ExperienceGood      PickupExperience = "good"
	ExperienceFair      PickupExperience = "fair"
	ExperiencePoor      PickupExperience = "poor"
)

// IsValid reports whether e is a known pickup experience value.
func (e PickupExperience) IsValid() bool {
	switch e {
	case ExperienceExcellent, ExperienceGood, ExperienceFair, ExperiencePoor:
		return true
	}
	return false
}

// Rating records one 1-5 star rating of a completed pickup. At most one
// rating exists per (item, rater) pair, enforced by a unique index.
// Ratings are never mutated or deleted once written.
type Rating struct {
	ID          utils.SixID      `bson:"_id,omitempty" json:"id,omitempty"`
	ItemID      utils.SixID      `bson:"item_id" json:"item_id"`
	RaterID     utils.SixID      `bson:"rater_id" json:"rater_id"`
	RatedUserID utils.SixID      `bson:"rated_user_id" json:"rated_user_id"`
	Stars       int              `bson:"stars" json:"stars"`
	Review      string           `bson:"review,omitempty" json:"review,omitempty"`
	Experience  PickupExperience `bson:"experience" json:"experience"`
	CreatedAt   time.Time        `bson:"created_at" json:"created_at"`
}

// RatingBreakdown is a fixed histogram of counts per star value. The domain
// is closed (stars are always 1-5), so the shape is fixed rather than keyed
// dynamically.
type RatingBreakdown struct {
	One   int `bson:"1" json:"1"`
	Two   int `bson:"2" json:"2"`
	Three int `bson:"3" json:"3"`
	Four  int `bson:"4" json:"4"`
	Five  int `bson:"5" json:"5"`
}

// Bucket returns a pointer to the histogram bucket for the given star value,
// or nil if stars is out of range.
func (b *RatingBreakdown) Bucket(stars int) *int {
	switch stars {
	case 1:
		return &b.One
	case 2:
		return &b.Two
	case 3:
		return &b.Three
	case 4:
		return &b.Four
	case 5:
		return &b.Five
	}
	return nil
}

// Total returns the sum of all histogram buckets.
func (b *RatingBreakdown) Total() int {
	return b.One + b.Two + b.Three + b.Four + b.Five
}

// UserReputation is the per-user rolling aggregate of received ratings.
// AverageRating and Breakdown are kept mutually consistent: the average
// always equals the histogram-weighted mean, rounded to 2 decimals.
// The document is lazily created on the first rating received.
type UserReputation struct {
	UserID           utils.SixID     `bson:"_id" json:"user_id"`
	AverageRating    float64         `bson:"average_rating" json:"average_rating"`
	TotalRatings     int             `bson:"total_ratings" json:"total_ratings"`
	Breakdown        RatingBreakdown `bson:"breakdown" json:"breakdown"`
	CompletedPickups int             `bson:"completed_pickups" json:"completed_pickups"`
	UpdatedAt        time.Time       `bson:"updated_at" json:"updated_at"`
}

// NewUserReputation returns the zero-state aggregate for a user with no
// ratings yet.
func NewUserReputation(userID utils.SixID) *UserReputation {
	return &UserReputation{UserID: userID}
}
