package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uslugihub/backend/internal/dto"
	"github.com/uslugihub/backend/internal/http/handlers/common"
	"github.com/uslugihub/backend/internal/models"
	"github.com/uslugihub/backend/internal/service"
)

// MediatorHandler обслуживает трёхшаговый процесс работы посредника.
type MediatorHandler struct {
	mediator *service.MediatorService
}

func NewMediatorHandler(mediator *service.MediatorService) *MediatorHandler {
	return &MediatorHandler{mediator: mediator}
}

// Take обрабатывает POST /mediator/orders/:id/take.
func (h *MediatorHandler) Take(c *gin.Context) {
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

	order, err := h.mediator.TakeOrder(c.Request.Context(), orderID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderView(order))
}

// NextStep обрабатывает POST /mediator/orders/:id/next-step.
func (h *MediatorHandler) NextStep(c *gin.Context) {
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
		StepData          json.RawMessage `json:"step_data"`
		Comment           *string         `json:"comment"`
		Commission        *float64        `json:"commission"`
		CommissionPercent *int64          `json:"commission_percent"`
		ExecutorCost      *float64        `json:"executor_cost"`
		Notes             *string         `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	in := service.EstimateInput{
		CommissionPercent: req.CommissionPercent,
		Notes:             req.Notes,
	}
	if req.Commission != nil {
		cents := models.ToCents(*req.Commission)
		in.Commission = &cents
	}
	if req.ExecutorCost != nil {
		cents := models.ToCents(*req.ExecutorCost)
		in.ExecutorCost = &cents
	}

	order, err := h.mediator.NextStep(c.Request.Context(), orderID, userID, req.StepData, req.Comment, in)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderView(order))
}

// Archive обрабатывает POST /mediator/orders/:id/archive.
func (h *MediatorHandler) Archive(c *gin.Context) {
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
		StepData json.RawMessage `json:"step_data"`
		Comment  *string         `json:"comment"`
	}
	// Тело опционально
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		common.RespondBadRequest(c, err.Error())
		return
	}

	order, err := h.mediator.Archive(c.Request.Context(), orderID, userID, req.StepData, req.Comment)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderView(order))
}

// ReturnToApp обрабатывает POST /mediator/orders/:id/return.
func (h *MediatorHandler) ReturnToApp(c *gin.Context) {
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

	order, err := h.mediator.ReturnToApp(c.Request.Context(), orderID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderView(order))
}

// Steps обрабатывает GET /mediator/orders/:id/steps.
func (h *MediatorHandler) Steps(c *gin.Context) {
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

	steps, err := h.mediator.Steps(c.Request.Context(), orderID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, steps)
}

// ListMy обрабатывает GET /mediator/orders.
func (h *MediatorHandler) ListMy(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	orders, err := h.mediator.ListMy(c.Request.Context(), userID, c.Query("archived") == "true")
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderViews(orders))
}
