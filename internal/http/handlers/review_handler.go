package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uslugihub/backend/internal/http/handlers/common"
	"github.com/uslugihub/backend/internal/service"
)

// ReviewHandler обслуживает отзывы по заказам.
type ReviewHandler struct {
	reviews *service.ReviewService
}

func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// Create обрабатывает POST /orders/:id/reviews.
func (h *ReviewHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Rating  int     `json:"rating" binding:"required"`
		Comment *string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	review, err := h.reviews.Create(c.Request.Context(), orderID, userID, req.Rating, req.Comment)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, review)
}

// ListForOrder обрабатывает GET /orders/:id/reviews.
func (h *ReviewHandler) ListForOrder(c *gin.Context) {
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	reviews, err := h.reviews.ListForOrder(c.Request.Context(), orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, reviews)
}

// ListForUser обрабатывает GET /users/:id/reviews.
func (h *ReviewHandler) ListForUser(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	reviews, err := h.reviews.ListForUser(c.Request.Context(), userID,
		common.QueryInt(c, "limit", 50),
		common.QueryInt(c, "offset", 0))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, reviews)
}
