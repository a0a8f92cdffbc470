package models

import (
	"time"
)

// NotificationPreferences allows users to control email notifications.
type NotificationPreferences struct {
	NewMessage  bool `bson:"new_message" json:"new_message"`
	ItemExpired bool `bson:"item_expired" json:"item_expired"`
	ReportAck   bool `bson:"report_ack" json:"report_ack"`
	RatingNew   bool `bson:"rating_new" json:"rating_new"`
}

// User represents a user in the system. Authentication is delegated to an
// external identity provider; the id carried in the verified token is the
// user's SixID, so no credentials are stored here.
type User struct {
	Base                    `bson:",inline"`
	Name                    string                   `bson:"name" json:"name"`
	Email                   string                   `bson:"email" json:"email"`
	Suspended               bool                     `bson:"suspended" json:"suspended"`
	UpdatedAt               time.Time                `bson:"updated_at" json:"updated_at"`
	CreatedAt               time.Time                `bson:"created_at" json:"created_at"`
	NotificationPreferences *NotificationPreferences `bson:"notification_preferences,omitempty" json:"notification_preferences,omitempty"`
	Deleted                 bool                     `bson:"deleted" json:"-"` // Soft delete flag
}
