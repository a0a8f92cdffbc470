package models

import (
	"time"

	"github.com/anyhowai/moveout/internal/utils"
)

// ReportCategory classifies what a user is being reported for.
type ReportCategory string

const (
	ReportSpam          ReportCategory = "spam"
	ReportInappropriate ReportCategory = "inappropriate_content"
	ReportFraud         ReportCategory = "fraud"
	ReportHarassment    ReportCategory = "harassment"
	ReportMisleading    ReportCategory = "misleading"
	ReportSafetyConcern ReportCategory = "safety_concern"
	ReportCopyright     ReportCategory = "copyright"
	ReportCategoryOther ReportCategory = "other"
)

// IsValid reports whether c is a known report category.
func (c ReportCategory) IsValid() bool {
	switch c {
	case ReportSpam, ReportInappropriate, ReportFraud, ReportHarassment,
		ReportMisleading, ReportSafetyConcern, ReportCopyright, ReportCategoryOther:
		return true
	}
	return false
}

// ReportStatus tracks where a report sits in the moderation queue.
type ReportStatus string

const (
	ReportStatusOpen      ReportStatus = "open"
	ReportStatusReviewing ReportStatus = "reviewing"
	ReportStatusResolved  ReportStatus = "resolved"
	ReportStatusDismissed ReportStatus = "dismissed"
)

// IsValid reports whether s is a known report status.
func (s ReportStatus) IsValid() bool {
	switch s {
	case ReportStatusOpen, ReportStatusReviewing, ReportStatusResolved, ReportStatusDismissed:
		return true
	}
	return false
}

// Report is an abuse report filed by one user against another, optionally
// tied to a specific item. At most one report exists per
// (reporter, target, category) triple.
type Report struct {
	ID           utils.SixID    `bson:"_id,omitempty" json:"id,omitempty"`
	ReporterID   utils.SixID    `bson:"reporter_id" json:"reporter_id"`
	TargetUserID utils.SixID    `bson:"target_user_id" json:"target_user_id"`
	ItemID       *utils.SixID   `bson:"item_id,omitempty" json:"item_id,omitempty"`
	Category     ReportCategory `bson:"category" json:"category"`
	Details      string         `bson:"details,omitempty" json:"details,omitempty"`
	Status       ReportStatus   `bson:"status" json:"status"`
	CreatedAt    time.Time      `bson:"created_at" json:"created_at"`
}
