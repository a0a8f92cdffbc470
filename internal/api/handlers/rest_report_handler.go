package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/anyhowai/moveout/internal/apperr"
	"github.com/anyhowai/moveout/internal/email"
	"github.com/anyhowai/moveout/internal/models"
	"github.com/anyhowai/moveout/internal/services"
	"github.com/anyhowai/moveout/internal/tasks"
	"github.com/anyhowai/moveout/internal/utils"
)

// RestReportHandler handles REST requests for abuse reports.
type RestReportHandler struct {
	reportService services.IReportService
	userService   services.IUserService
	taskClient    IAsynqClient
}

// NewRestReportHandler creates a new RestReportHandler. userService and
// taskClient power the acknowledgement email and may be nil.
func NewRestReportHandler(reportService services.IReportService, userService services.IUserService, taskClient IAsynqClient) *RestReportHandler {
	return &RestReportHandler{
		reportService: reportService,
		userService:   userService,
		taskClient:    taskClient,
	}
}

// createReportRequest is the POST body for filing a report.
type createReportRequest struct {
	ReporterID     string `json:"reporterId"`
	ReportedUserID string `json:"reportedUserId"`
	ReportedItemID string `json:"reportedItemId"`
	Category       string `json:"category"`
	Details        string `json:"details"`
}

// CreateReport handles POST /v1/reports.
func (h *RestReportHandler) CreateReport(c *gin.Context) {
	var req createReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}

	reporterID, err := callerID(c, req.ReporterID)
	if err != nil {
		respondError(c, err)
		return
	}
	targetUserID, _ := utils.ParseSixID(req.ReportedUserID)

	input := services.ReportInput{
		ReporterID:   reporterID,
		TargetUserID: targetUserID,
		Category:     models.ReportCategory(req.Category),
		Details:      req.Details,
	}
	if req.ReportedItemID != "" {
		itemID, err := utils.ParseSixID(req.ReportedItemID)
		if err != nil {
			respondError(c, apperr.New(apperr.KindValidation, "invalid reportedItemId"))
			return
		}
		input.ItemID = &itemID
	}

	report, err := h.reportService.CreateReport(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	h.enqueueAck(c, report)
	respondData(c, http.StatusCreated, report)
}

// enqueueAck sends the reporter an acknowledgement email. Best-effort: the
// report is filed either way.
func (h *RestReportHandler) enqueueAck(c *gin.Context, report *models.Report) {
	if h.taskClient == nil || h.userService == nil {
		return
	}
	reporter, err := h.userService.FindByID(c.Request.Context(), report.ReporterID)
	if err != nil || reporter.Email == "" {
		return
	}
	if reporter.NotificationPreferences != nil && !reporter.NotificationPreferences.ReportAck {
		return
	}
	payload, err := json.Marshal(tasks.EmailTaskPayload{
		To:           reporter.Email,
		Notification: email.NotificationReportAck,
		Category:     string(report.Category),
	})
	if err != nil {
		return
	}
	task := asynq.NewTask(tasks.TypeEmailDelivery, payload)
	if _, err := h.taskClient.EnqueueContext(c.Request.Context(), task); err != nil {
		log.Printf("Warning: failed to enqueue report ack email for %s: %v", report.ReporterID.String(), err)
	}
}

// updateReportStatusRequest is the PATCH body for moderating a report.
type updateReportStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateReportStatus handles PATCH /v1/admin/reports/:id. Admin-gated by the
// router.
func (h *RestReportHandler) UpdateReportStatus(c *gin.Context) {
	reportID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	var req updateReportStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}

	report, err := h.reportService.UpdateReportStatus(c.Request.Context(), reportID, models.ReportStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, report)
}

// ListReports handles GET /v1/reports?reporterId=.
func (h *RestReportHandler) ListReports(c *gin.Context) {
	reporterID, err := callerID(c, c.Query("reporterId"))
	if err != nil {
		respondError(c, err)
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	reports, err := h.reportService.ListReportsByReporter(c.Request.Context(), reporterID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}
	respondData(c, http.StatusOK, reports)
}
