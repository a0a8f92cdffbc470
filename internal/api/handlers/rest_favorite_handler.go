package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anyhowai/moveout/internal/apperr"
	"github.com/anyhowai/moveout/internal/models"
	"github.com/anyhowai/moveout/internal/services"
	"github.com/anyhowai/moveout/internal/utils"
)

// RestFavoriteHandler handles REST requests for favorite sets.
type RestFavoriteHandler struct {
	favoriteService services.IFavoriteService
}

// NewRestFavoriteHandler creates a new RestFavoriteHandler.
func NewRestFavoriteHandler(favoriteService services.IFavoriteService) *RestFavoriteHandler {
	return &RestFavoriteHandler{favoriteService: favoriteService}
}

// favoriteRequest is the POST body for adding a favorite.
type favoriteRequest struct {
	UserID string `json:"userId"`
	ItemID string `json:"itemId"`
}

// AddFavorite handles POST /v1/favorites.
func (h *RestFavoriteHandler) AddFavorite(c *gin.Context) {
	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}
	userID, err := callerID(c, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	itemID, err := utils.ParseSixID(req.ItemID)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid itemId"))
		return
	}

	fav, err := h.favoriteService.AddFavorite(c.Request.Context(), userID, itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, fav)
}

// RemoveFavorite handles DELETE /v1/favorites?userId=&itemId=.
func (h *RestFavoriteHandler) RemoveFavorite(c *gin.Context) {
	userID, err := callerID(c, c.Query("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	itemID, err := utils.ParseSixID(c.Query("itemId"))
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid itemId"))
		return
	}

	if err := h.favoriteService.RemoveFavorite(c.Request.Context(), userID, itemID); err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"removed": itemID.String()})
}

// ListFavorites handles GET /v1/favorites?userId=.
func (h *RestFavoriteHandler) ListFavorites(c *gin.Context) {
	userID, err := callerID(c, c.Query("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	favorites, err := h.favoriteService.ListFavorites(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if favorites == nil {
		favorites = []models.Favorite{}
	}
	respondData(c, http.StatusOK, favorites)
}
