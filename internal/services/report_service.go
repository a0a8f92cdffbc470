package services

import (
	"context"
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

// ReportInput carries the caller-supplied fields for filing a report.
type ReportInput struct {
	ReporterID   utils.SixID
	TargetUserID utils.SixID
	ItemID       *utils.SixID
	Category     models.ReportCategory
	Details      string
}

// IReportService defines the interface for abuse reports.
type IReportService interface {
	CreateReport(ctx context.Context, input ReportInput) (*models.Report, error)
	ListReportsByReporter(ctx context.Context, reporterID utils.SixID, limit int) ([]models.Report, error)
	UpdateReportStatus(ctx context.Context, reportID utils.SixID, status models.ReportStatus) (*models.Report, error)
}

const reportsCollection = "reports"

// reportService implements IReportService.
type reportService struct {
	db *mongo.Database
}

// NewReportService creates a new ReportService.
func NewReportService(database *mongo.Database) IReportService {
	return &reportService{db: database}
}

func validateReportInput(input ReportInput) error {
	fields := map[string]string{}
	if input.ReporterID == (utils.SixID{}) {
		fields["reporter_id"] = "required"
	}
	if input.TargetUserID == (utils.SixID{}) {
		fields["target_user_id"] = "required"
	}
	if !input.Category.IsValid() {
		fields["category"] = "unknown report category"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid report input", fields)
	}
	if input.ReporterID == input.TargetUserID {
		return apperr.New(apperr.KindValidation, "users cannot report themselves")
	}
	return nil
}

// CreateReport files a report. A duplicate (reporter, target, category)
// triple is rejected with a conflict via the unique index.
func (s *reportService) CreateReport(ctx context.Context, input ReportInput) (*models.Report, error) {
	if err := validateReportInput(input); err != nil {
		return nil, err
	}

	collection := s.db.Collection(reportsCollection)
	var report *models.Report

	operation := func() error {
		report = &models.Report{
			ID:           utils.NewSixID(),
			ReporterID:   input.ReporterID,
			TargetUserID: input.TargetUserID,
			ItemID:       input.ItemID,
			Category:     input.Category,
			Details:      input.Details,
			Status:       models.ReportStatusOpen,
			CreatedAt:    time.Now().UTC(),
		}
		_, insertErr := collection.InsertOne(ctx, report)
		if db.IsMongoDuplicateKeyError(insertErr) {
			count, countErr := collection.CountDocuments(ctx, bson.M{
				"reporter_id":    input.ReporterID,
				"target_user_id": input.TargetUserID,
				"category":       input.Category,
			})
			if countErr == nil && count > 0 {
				return apperr.Newf(apperr.KindConflict,
					"user %s has already reported user %s for %s",
					input.ReporterID.String(), input.TargetUserID.String(), input.Category)
			}
		}
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindTransient,
			fmt.Sprintf("failed to file report by user %s", input.ReporterID.String()), err)
	}

	return report, nil
}

// UpdateReportStatus moves a report through the moderation queue.
func (s *reportService) UpdateReportStatus(ctx context.Context, reportID utils.SixID, status models.ReportStatus) (*models.Report, error) {
	if !status.IsValid() {
		return nil, apperr.Newf(apperr.KindValidation, "unknown report status %q", status)
	}

	var report models.Report
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.db.Collection(reportsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": reportID},
		bson.M{"$set": bson.M{"status": status}},
		opts,
	).Decode(&report)
	if err == mongo.ErrNoDocuments {
		return nil, apperr.Newf(apperr.KindNotFound, "report %s not found", reportID.String())
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient,
			fmt.Sprintf("failed to update report %s", reportID.String()), err)
	}
	return &report, nil
}

// ListReportsByReporter returns reports filed by a user, newest first.
func (s *reportService) ListReportsByReporter(ctx context.Context, reporterID utils.SixID, limit int) ([]models.Report, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.db.Collection(reportsCollection).Find(ctx, bson.M{"reporter_id": reporterID}, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "failed to query reports", err)
	}
	defer cursor.Close(ctx)

	var reports []models.Report
	if err = cursor.All(ctx, &reports); err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "failed to decode reports", err)
	}
	return reports, nil
}
