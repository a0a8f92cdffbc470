package handlers_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/anyhowai/moveout/internal/api/handlers"
	"github.com/anyhowai/moveout/internal/apperr"
	"github.com/anyhowai/moveout/internal/models"
	"github.com/anyhowai/moveout/internal/services"
	"github.com/anyhowai/moveout/internal/utils"
)

func setupReportRouter(reportSvc services.IReportService, userSvc services.IUserService, taskClient handlers.IAsynqClient) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := handlers.NewRestReportHandler(reportSvc, userSvc, taskClient)
	v1 := r.Group("/v1")
	v1.GET("/reports", h.ListReports)
	v1.POST("/reports", h.CreateReport)
	v1.PATCH("/admin/reports/:id", h.UpdateReportStatus)
	return r
}

func TestCreateReport(t *testing.T) {
	mockSvc := new(MockReportService)
	router := setupReportRouter(mockSvc, nil, nil)

	reporterID := utils.NewSixID()
	targetID := utils.NewSixID()
	itemID := utils.NewSixID()
	created := &models.Report{
		ID:           utils.NewSixID(),
		ReporterID:   reporterID,
		TargetUserID: targetID,
		ItemID:       &itemID,
		Category:     models.ReportSpam,
		Status:       models.ReportStatusOpen,
	}
	mockSvc.On("CreateReport", mock.Anything, mock.MatchedBy(func(input services.ReportInput) bool {
		return input.ReporterID == reporterID && input.TargetUserID == targetID &&
			input.ItemID != nil && *input.ItemID == itemID && input.Category == models.ReportSpam
	})).Return(created, nil)

	body := fmt.Sprintf(`{"reporterId":"%s","reportedUserId":"%s","reportedItemId":"%s","category":"spam","details":"posting the same couch daily"}`,
		reporterID.String(), targetID.String(), itemID.String())
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/reports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	envelope := decodeEnvelope(t, w.Body)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "open", data["status"])
	mockSvc.AssertExpectations(t)
}

func TestCreateReport_EnqueuesAck(t *testing.T) {
	mockSvc := new(MockReportService)
	mockUsers := new(MockUserService)
	mockAsynq := new(MockAsynqClient)
	router := setupReportRouter(mockSvc, mockUsers, mockAsynq)

	reporterID := utils.NewSixID()
	targetID := utils.NewSixID()
	created := &models.Report{
		ID:           utils.NewSixID(),
		ReporterID:   reporterID,
		TargetUserID: targetID,
		Category:     models.ReportFraud,
		Status:       models.ReportStatusOpen,
	}
	reporter := &models.User{Base: models.Base{ID: reporterID}, Name: "Sam", Email: "sam@example.com"}
	mockSvc.On("CreateReport", mock.Anything, mock.Anything).Return(created, nil)
	mockUsers.On("FindByID", mock.Anything, reporterID).Return(reporter, nil)
	mockAsynq.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		return task.Type() == "email:deliver" && strings.Contains(string(task.Payload()), "sam@example.com")
	}), mock.Anything).Return(&asynq.TaskInfo{ID: "task1"}, nil)

	body := fmt.Sprintf(`{"reporterId":"%s","reportedUserId":"%s","category":"fraud"}`,
		reporterID.String(), targetID.String())
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/reports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockAsynq.AssertExpectations(t)
}

func TestCreateReport_AckSkippedWhenOptedOut(t *testing.T) {
	mockSvc := new(MockReportService)
	mockUsers := new(MockUserService)
	mockAsynq := new(MockAsynqClient)
	router := setupReportRouter(mockSvc, mockUsers, mockAsynq)

	reporterID := utils.NewSixID()
	created := &models.Report{ID: utils.NewSixID(), ReporterID: reporterID, TargetUserID: utils.NewSixID(), Category: models.ReportSpam, Status: models.ReportStatusOpen}
	reporter := &models.User{
		Base:                    models.Base{ID: reporterID},
		Email:                   "sam@example.com",
		NotificationPreferences: &models.NotificationPreferences{ReportAck: false},
	}
	mockSvc.On("CreateReport", mock.Anything, mock.Anything).Return(created, nil)
	mockUsers.On("FindByID", mock.Anything, reporterID).Return(reporter, nil)

	body := fmt.Sprintf(`{"reporterId":"%s","reportedUserId":"%s","category":"spam"}`,
		reporterID.String(), created.TargetUserID.String())
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/reports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockAsynq.AssertNotCalled(t, "EnqueueContext", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateReport_Validation(t *testing.T) {
	mockSvc := new(MockReportService)
	router := setupReportRouter(mockSvc, nil, nil)

	mockSvc.On("CreateReport", mock.Anything, mock.Anything).
		Return(nil, apperr.New(apperr.KindValidation, "unknown report category"))

	body := fmt.Sprintf(`{"reporterId":"%s","reportedUserId":"%s","category":"gossip"}`,
		utils.NewSixID().String(), utils.NewSixID().String())
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/reports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListReports(t *testing.T) {
	mockSvc := new(MockReportService)
	router := setupReportRouter(mockSvc, nil, nil)

	reporterID := utils.NewSixID()
	reports := []models.Report{{ID: utils.NewSixID(), ReporterID: reporterID, Category: models.ReportSpam, Status: models.ReportStatusOpen}}
	mockSvc.On("ListReportsByReporter", mock.Anything, reporterID, 0).Return(reports, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/reports?reporterId="+reporterID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w.Body)
	assert.Len(t, envelope["data"], 1)
	mockSvc.AssertExpectations(t)
}

func TestUpdateReportStatus(t *testing.T) {
	mockSvc := new(MockReportService)
	router := setupReportRouter(mockSvc, nil, nil)

	reportID := utils.NewSixID()
	updated := &models.Report{
		ID:           reportID,
		ReporterID:   utils.NewSixID(),
		TargetUserID: utils.NewSixID(),
		Category:     models.ReportSpam,
		Status:       models.ReportStatusResolved,
	}
	mockSvc.On("UpdateReportStatus", mock.Anything, reportID, models.ReportStatusResolved).Return(updated, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PATCH", "/v1/admin/reports/"+reportID.String(), strings.NewReader(`{"status":"resolved"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w.Body)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "resolved", data["status"])
}

func TestUpdateReportStatus_Unknown(t *testing.T) {
	mockSvc := new(MockReportService)
	router := setupReportRouter(mockSvc, nil, nil)

	reportID := utils.NewSixID()
	mockSvc.On("UpdateReportStatus", mock.Anything, reportID, models.ReportStatus("archived")).
		Return(nil, apperr.New(apperr.KindValidation, `unknown report status "archived"`))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PATCH", "/v1/admin/reports/"+reportID.String(), strings.NewReader(`{"status":"archived"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
