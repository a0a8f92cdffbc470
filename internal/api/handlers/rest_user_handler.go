package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anyhowai/moveout/internal/apperr"
	"github.com/anyhowai/moveout/internal/models"
	"github.com/anyhowai/moveout/internal/services"
)

// RestUserHandler handles REST requests related to users.
type RestUserHandler struct {
	userService services.IUserService
}

// NewRestUserHandler creates a new RestUserHandler.
func NewRestUserHandler(userService services.IUserService) *RestUserHandler {
	return &RestUserHandler{userService: userService}
}

// PublicUser is the externally visible slice of a user profile.
type PublicUser struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DateJoined string `json:"date_joined"`
}

// GetUserByID handles GET /v1/users/:id.
func (h *RestUserHandler) GetUserByID(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, PublicUser{
		ID:         user.ID.String(),
		Name:       user.Name,
		DateJoined: user.CreatedAt.Format("2006-01-02"),
	})
}

// UpdatePreferences handles PUT /v1/users/:id/preferences. Users may only
// edit their own notification settings.
func (h *RestUserHandler) UpdatePreferences(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var prefs models.NotificationPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}
	actorID, err := callerID(c, c.Query("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if actorID != userID {
		respondError(c, apperr.New(apperr.KindForbidden, "cannot edit another user's preferences"))
		return
	}

	if err := h.userService.UpdateNotificationPreferences(c.Request.Context(), userID, prefs); err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, prefs)
}
