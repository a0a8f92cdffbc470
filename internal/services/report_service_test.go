package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/anyhowai/moveout/internal/apperr"
	dbpkg "github.com/anyhowai/moveout/internal/db"
	"github.com/anyhowai/moveout/internal/models"
	"github.com/anyhowai/moveout/internal/utils"
)

func setupTestDBReports(t *testing.T, dbName string) *mongo.Database {
	db := utils.SetupTestDB(t, dbName, "reports")
	require.NoError(t, dbpkg.EnsureIndexes(context.Background(), db))
	return db
}

func TestReportService_Create(t *testing.T) {
	db := setupTestDBReports(t, "testdb_report_service_create")
	svc := NewReportService(db)
	ctx := context.Background()

	reporter := utils.NewSixID()
	target := utils.NewSixID()
	itemID := utils.NewSixID()

	report, err := svc.CreateReport(ctx, ReportInput{
		ReporterID:   reporter,
		TargetUserID: target,
		ItemID:       &itemID,
		Category:     models.ReportSpam,
		Details:      "posting the same couch every hour",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusOpen, report.Status)
	require.NotNil(t, report.ItemID)
	assert.Equal(t, itemID, *report.ItemID)

	reports, err := svc.ListReportsByReporter(ctx, reporter, 10)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestReportService_DuplicateTriple(t *testing.T) {
	db := setupTestDBReports(t, "testdb_report_service_duplicate")
	svc := NewReportService(db)
	ctx := context.Background()

	reporter := utils.NewSixID()
	target := utils.NewSixID()

	input := ReportInput{
		ReporterID:   reporter,
		TargetUserID: target,
		Category:     models.ReportFraud,
	}
	_, err := svc.CreateReport(ctx, input)
	require.NoError(t, err)

	// Same (reporter, target, category) triple conflicts.
	_, err = svc.CreateReport(ctx, input)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// A different category from the same reporter is fine.
	input.Category = models.ReportHarassment
	_, err = svc.CreateReport(ctx, input)
	assert.NoError(t, err)

	// So is the same category from a different reporter.
	_, err = svc.CreateReport(ctx, ReportInput{
		ReporterID:   utils.NewSixID(),
		TargetUserID: target,
		Category:     models.ReportFraud,
	})
	assert.NoError(t, err)
}

func TestReportService_Validation(t *testing.T) {
	db := setupTestDBReports(t, "testdb_report_service_validation")
	svc := NewReportService(db)
	ctx := context.Background()

	userID := utils.NewSixID()

	// Self-report.
	_, err := svc.CreateReport(ctx, ReportInput{
		ReporterID:   userID,
		TargetUserID: userID,
		Category:     models.ReportSpam,
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// Unknown category.
	_, err = svc.CreateReport(ctx, ReportInput{
		ReporterID:   userID,
		TargetUserID: utils.NewSixID(),
		Category:     models.ReportCategory("gossip"),
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// Missing target.
	_, err = svc.CreateReport(ctx, ReportInput{
		ReporterID: userID,
		Category:   models.ReportSpam,
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestReportService_UpdateStatus(t *testing.T) {
	db := setupTestDBReports(t, "testdb_report_service_moderation")
	svc := NewReportService(db)
	ctx := context.Background()

	report, err := svc.CreateReport(ctx, ReportInput{
		ReporterID:   utils.NewSixID(),
		TargetUserID: utils.NewSixID(),
		Category:     models.ReportHarassment,
	})
	require.NoError(t, err)

	updated, err := svc.UpdateReportStatus(ctx, report.ID, models.ReportStatusReviewing)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusReviewing, updated.Status)

	updated, err = svc.UpdateReportStatus(ctx, report.ID, models.ReportStatusResolved)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusResolved, updated.Status)

	// Unknown status.
	_, err = svc.UpdateReportStatus(ctx, report.ID, models.ReportStatus("archived"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// Unknown report.
	_, err = svc.UpdateReportStatus(ctx, utils.NewSixID(), models.ReportStatusDismissed)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
