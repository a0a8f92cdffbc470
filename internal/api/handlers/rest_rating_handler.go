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

// RestRatingHandler handles REST requests for ratings and reputation.
type RestRatingHandler struct {
	ratingService services.IRatingService
}

// NewRestRatingHandler creates a new RestRatingHandler.
func NewRestRatingHandler(ratingService services.IRatingService) *RestRatingHandler {
	return &RestRatingHandler{ratingService: ratingService}
}

// createRatingRequest is the POST body for submitting a rating.
type createRatingRequest struct {
	ItemID           string `json:"itemId"`
	RaterID          string `json:"raterId"`
	RatedUserID      string `json:"ratedUserId"`
	Rating           int    `json:"rating"`
	PickupExperience string `json:"pickupExperience"`
	Review           string `json:"review"`
}

// CreateRating handles POST /v1/ratings.
func (h *RestRatingHandler) CreateRating(c *gin.Context) {
	var req createRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}

	raterID, err := callerID(c, req.RaterID)
	if err != nil {
		respondError(c, err)
		return
	}
	itemID, _ := utils.ParseSixID(req.ItemID)
	ratedUserID, _ := utils.ParseSixID(req.RatedUserID)

	rating, err := h.ratingService.CreateRating(c.Request.Context(), services.RatingInput{
		ItemID:      itemID,
		RaterID:     raterID,
		RatedUserID: ratedUserID,
		Stars:       req.Rating,
		Review:      req.Review,
		Experience:  models.PickupExperience(req.PickupExperience),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, rating)
}

// ListRatings handles GET /v1/ratings?userId=
func (h *RestRatingHandler) ListRatings(c *gin.Context) {
	userIDStr := c.Query("userId")
	if userIDStr == "" {
		respondError(c, apperr.New(apperr.KindValidation, "userId query parameter is required"))
		return
	}
	userID, err := utils.ParseSixID(userIDStr)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid userId"))
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	ratings, err := h.ratingService.ListRatingsForUser(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if ratings == nil {
		ratings = []models.Rating{}
	}
	respondData(c, http.StatusOK, ratings)
}

// GetReputation handles GET /v1/users/:id/reputation.
func (h *RestRatingHandler) GetReputation(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	rep, err := h.ratingService.GetReputation(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, rep)
}
