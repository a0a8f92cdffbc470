package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/anyhowai/moveout/internal/apperr"
	"github.com/anyhowai/moveout/internal/models"
	"github.com/anyhowai/moveout/internal/services"
	"github.com/anyhowai/moveout/internal/utils"
)

// RestMessageHandler handles REST requests for per-item message threads.
type RestMessageHandler struct {
	messageService services.IMessageService
}

// NewRestMessageHandler creates a new RestMessageHandler.
func NewRestMessageHandler(messageService services.IMessageService) *RestMessageHandler {
	return &RestMessageHandler{messageService: messageService}
}

// sendMessageRequest is the POST body for sending a message.
type sendMessageRequest struct {
	ItemID      string `json:"itemId"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

// SendMessage handles POST /v1/messages.
func (h *RestMessageHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}
	senderID, err := callerID(c, req.SenderID)
	if err != nil {
		respondError(c, err)
		return
	}
	itemID, err := utils.ParseSixID(req.ItemID)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid itemId"))
		return
	}
	recipientID, err := utils.ParseSixID(req.RecipientID)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid recipientId"))
		return
	}

	msg, err := h.messageService.SendMessage(c.Request.Context(), itemID, senderID, recipientID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, msg)
}

// ListMessages handles GET /v1/messages?userId=[&threadId=]. Without a
// threadId it lists the user's threads; with one it lists that thread's
// messages.
func (h *RestMessageHandler) ListMessages(c *gin.Context) {
	userID, err := callerID(c, c.Query("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	threadIDStr := c.Query("threadId")
	if threadIDStr == "" {
		threads, err := h.messageService.ListThreads(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		if threads == nil {
			threads = []models.MessageThread{}
		}
		respondData(c, http.StatusOK, threads)
		return
	}

	threadID, err := utils.ParseSixID(threadIDStr)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid threadId"))
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	messages, err := h.messageService.ListMessages(c.Request.Context(), threadID, userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	respondData(c, http.StatusOK, messages)
}

// markReadRequest is the POST body for resetting a thread's unread counter.
type markReadRequest struct {
	ThreadID string `json:"threadId"`
	UserID   string `json:"userId"`
}

// MarkThreadRead handles POST /v1/messages/read.
func (h *RestMessageHandler) MarkThreadRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}
	userID, err := callerID(c, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	threadID, err := utils.ParseSixID(req.ThreadID)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid threadId"))
		return
	}

	if err := h.messageService.MarkThreadRead(c.Request.Context(), threadID, userID); err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"read": threadID.String()})
}
