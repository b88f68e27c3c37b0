package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uslugihub/backend/internal/dto"
	"github.com/uslugihub/backend/internal/http/handlers/common"
	"github.com/uslugihub/backend/internal/models"
	"github.com/uslugihub/backend/internal/service"
)

// SubscriptionHandler обслуживает тарифные планы и квоты.
type SubscriptionHandler struct {
	subscriptions *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptions *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// Plans обрабатывает GET /subscriptions/plans.
func (h *SubscriptionHandler) Plans(c *gin.Context) {
	c.JSON(http.StatusOK, models.SubscriptionPlans)
}

// Purchase обрабатывает POST /subscriptions.
func (h *SubscriptionHandler) Purchase(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		Plan string `json:"plan" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	sub, err := h.subscriptions.Purchase(c.Request.Context(), userID, req.Plan)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewSubscriptionView(sub))
}

// Current обрабатывает GET /subscriptions/current.
func (h *SubscriptionHandler) Current(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	sub, err := h.subscriptions.Current(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSubscriptionView(sub))
}
