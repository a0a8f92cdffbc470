package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/anyhowai/moveout/internal/apperr"
	"github.com/anyhowai/moveout/internal/models"
	"github.com/anyhowai/moveout/internal/services"
	"github.com/anyhowai/moveout/internal/storage"
	"github.com/anyhowai/moveout/internal/tasks"
	"github.com/anyhowai/moveout/internal/utils"
)

// RestItemHandler handles REST requests for items.
type RestItemHandler struct {
	itemService    services.IItemService
	storageService storage.IS3Storage
	taskClient     IAsynqClient
}

// NewRestItemHandler creates a new RestItemHandler. taskClient may be nil when
// no background workers run; photo normalization is then skipped.
func NewRestItemHandler(itemService services.IItemService, storageService storage.IS3Storage, taskClient IAsynqClient) *RestItemHandler {
	return &RestItemHandler{
		itemService:    itemService,
		storageService: storageService,
		taskClient:     taskClient,
	}
}

// ListItems handles GET /v1/items?category=&urgency=&ownerId=
func (h *RestItemHandler) ListItems(c *gin.Context) {
	filter := services.ItemFilter{AvailableOnly: true}

	if v := c.Query("category"); v != "" {
		cat := models.ItemCategory(v)
		filter.Category = &cat
	}
	if v := c.Query("urgency"); v != "" {
		urg := models.UrgencyLevel(v)
		filter.Urgency = &urg
	}
	if v := c.Query("ownerId"); v != "" {
		ownerID, err := utils.ParseSixID(v)
		if err != nil {
			respondError(c, apperr.New(apperr.KindValidation, "invalid ownerId"))
			return
		}
		filter.OwnerID = &ownerID
		// Owners see all of their items, whatever the status.
		filter.AvailableOnly = false
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	items, err := h.itemService.ListItems(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []models.Item{}
	}
	respondData(c, http.StatusOK, items)
}

// GetItemsBulk handles GET /v1/items/bulk?ids=a,b,c
func (h *RestItemHandler) GetItemsBulk(c *gin.Context) {
	raw := c.Query("ids")
	if raw == "" {
		respondError(c, apperr.New(apperr.KindValidation, "ids query parameter is required"))
		return
	}

	var ids []utils.SixID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := utils.ParseSixID(part)
		if err != nil {
			respondError(c, apperr.Newf(apperr.KindValidation, "invalid item id %q", part))
			return
		}
		ids = append(ids, id)
	}

	items, err := h.itemService.FindItemsByIDs(c.Request.Context(), ids)
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []models.Item{}
	}
	respondData(c, http.StatusOK, items)
}

// GetItemByID handles GET /v1/items/:id
func (h *RestItemHandler) GetItemByID(c *gin.Context) {
	itemID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	item, err := h.itemService.FindItemByID(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, item)
}

// createItemForm is the multipart form for posting a new item.
type createItemForm struct {
	Title          string   `form:"title"`
	Description    string   `form:"description"`
	Category       string   `form:"category"`
	Urgency        string   `form:"urgency"`
	Address        string   `form:"address"`
	Lat            *float64 `form:"lat"`
	Lng            *float64 `form:"lng"`
	ContactName    string   `form:"contactName"`
	ContactPhone   string   `form:"contactPhone"`
	ContactEmail   string   `form:"contactEmail"`
	OwnerID        string   `form:"ownerId"`
	PickupDeadline string   `form:"pickupDeadline"` // RFC 3339
}

// CreateItem handles POST /v1/items (multipart form).
func (h *RestItemHandler) CreateItem(c *gin.Context) {
	var form createItemForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid form data"))
		return
	}

	ownerID, err := callerID(c, form.OwnerID)
	if err != nil {
		respondError(c, err)
		return
	}

	input := services.ItemInput{
		Title:       form.Title,
		Description: form.Description,
		Category:    models.ItemCategory(form.Category),
		Urgency:     models.UrgencyLevel(form.Urgency),
		Address:     form.Address,
		Contact: models.ContactInfo{
			Name:  form.ContactName,
			Phone: form.ContactPhone,
			Email: form.ContactEmail,
		},
	}
	if form.Lat != nil && form.Lng != nil {
		input.Coordinates = &models.GeoPoint{Lat: *form.Lat, Lng: *form.Lng}
	}
	if form.PickupDeadline != "" {
		deadline, err := time.Parse(time.RFC3339, form.PickupDeadline)
		if err != nil {
			respondError(c, apperr.Validation("invalid item input",
				map[string]string{"pickupDeadline": "must be RFC 3339"}))
			return
		}
		input.PickupDeadline = &deadline
	}

	item, err := h.itemService.CreateItem(c.Request.Context(), ownerID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, item)
}

// updateItemRequest is the PUT body for editing item fields.
type updateItemRequest struct {
	CurrentUserID string                 `json:"currentUserId"`
	Updates       map[string]interface{} `json:"updates"`
}

// UpdateItem handles PUT /v1/items/:id
func (h *RestItemHandler) UpdateItem(c *gin.Context) {
	itemID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}
	userID, err := callerID(c, req.CurrentUserID)
	if err != nil {
		respondError(c, err)
		return
	}

	item, err := h.itemService.UpdateItem(c.Request.Context(), itemID, userID, req.Updates)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, item)
}

// changeStatusRequest is the PATCH body for status transitions.
type changeStatusRequest struct {
	Status        string `json:"status"`
	CurrentUserID string `json:"currentUserId"`
}

// ChangeItemStatus handles PATCH /v1/items/:id
func (h *RestItemHandler) ChangeItemStatus(c *gin.Context) {
	itemID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}
	actorID, err := callerID(c, req.CurrentUserID)
	if err != nil {
		respondError(c, err)
		return
	}

	item, err := h.itemService.ChangeStatus(c.Request.Context(), itemID, actorID, models.ItemStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, item)
}

// DeleteItem handles DELETE /v1/items/:id?userId=
func (h *RestItemHandler) DeleteItem(c *gin.Context) {
	itemID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	userID, err := callerID(c, c.Query("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.itemService.DeleteItem(c.Request.Context(), itemID, userID); err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"deleted": itemID.String()})
}

// ExpireItems handles POST /v1/items/expire — one manual sweep pass.
func (h *RestItemHandler) ExpireItems(c *gin.Context) {
	result, err := h.itemService.ExpireOverdue(c.Request.Context(), time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}

// CheckExpireItems handles GET /v1/items/expire?check=true — the dry run.
func (h *RestItemHandler) CheckExpireItems(c *gin.Context) {
	result, err := h.itemService.CheckOverdue(c.Request.Context(), time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}

// photoUploadRequest asks for a presigned upload slot for an item photo.
type photoUploadRequest struct {
	CurrentUserID string `json:"currentUserId"`
	Filename      string `json:"filename"`
	ContentType   string `json:"contentType"`
}

// PhotoUploadURL handles POST /v1/items/:id/photo-upload-url. Only the owner
// may attach photos.
func (h *RestItemHandler) PhotoUploadURL(c *gin.Context) {
	itemID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req photoUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}
	if req.Filename == "" {
		respondError(c, apperr.Validation("invalid request", map[string]string{"filename": "required"}))
		return
	}
	userID, err := callerID(c, req.CurrentUserID)
	if err != nil {
		respondError(c, err)
		return
	}

	item, err := h.itemService.FindItemByID(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	if item.OwnerID != userID {
		respondError(c, apperr.Newf(apperr.KindForbidden, "item %s does not belong to user %s", itemID.String(), userID.String()))
		return
	}

	uploadURL, key, err := h.storageService.GeneratePresignedPutURL(c.Request.Context(), userID.String(), itemID.String(), req.Filename, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"uploadUrl": uploadURL, "key": key})
}

// confirmPhotoRequest reports a completed upload so normalization can run.
type confirmPhotoRequest struct {
	CurrentUserID string `json:"currentUserId"`
	Key           string `json:"key"`
}

// ConfirmPhoto handles POST /v1/items/:id/photo. It enqueues the image
// normalization task, which downsizes the upload and links it to the item.
func (h *RestItemHandler) ConfirmPhoto(c *gin.Context) {
	itemID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req confirmPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}
	userID, err := callerID(c, req.CurrentUserID)
	if err != nil {
		respondError(c, err)
		return
	}

	item, err := h.itemService.FindItemByID(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	if item.OwnerID != userID {
		respondError(c, apperr.Newf(apperr.KindForbidden, "item %s does not belong to user %s", itemID.String(), userID.String()))
		return
	}
	// The key scheme is items/<userID>/<itemID>/...; reject keys pointing at
	// another item's slot.
	expectedPrefix := "items/" + userID.String() + "/" + itemID.String() + "/"
	if !strings.HasPrefix(req.Key, expectedPrefix) {
		respondError(c, apperr.New(apperr.KindValidation, "key does not match this item"))
		return
	}

	if h.taskClient == nil {
		respondError(c, apperr.New(apperr.KindTransient, "background processing unavailable"))
		return
	}
	payload, err := json.Marshal(tasks.ImageTaskPayload{S3Key: req.Key, ItemID: itemID.String()})
	if err != nil {
		respondError(c, apperr.Wrap(apperr.KindTransient, "failed to encode image task", err))
		return
	}
	task := asynq.NewTask(tasks.TypeImageProcess, payload, asynq.Queue("images"))
	if _, err := h.taskClient.EnqueueContext(c.Request.Context(), task); err != nil {
		respondError(c, apperr.Wrap(apperr.KindTransient, "failed to enqueue image task", err))
		return
	}
	respondData(c, http.StatusAccepted, gin.H{"key": req.Key})
}
