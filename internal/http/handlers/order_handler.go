package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/uslugihub/backend/internal/dto"
	"github.com/uslugihub/backend/internal/http/handlers/common"
	"github.com/uslugihub/backend/internal/models"
	"github.com/uslugihub/backend/internal/service"
)

// OrderHandler обслуживает жизненный цикл заказов.
type OrderHandler struct {
	orders *service.OrderService
}

// NewOrderHandler создаёт новый хэндлер.
func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Create обрабатывает POST /orders.
func (h *OrderHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		Title         string   `json:"title" binding:"required"`
		Description   string   `json:"description" binding:"required"`
		WorkDirection string   `json:"work_direction" binding:"required"`
		MaxAmount     float64  `json:"max_amount"`
		AttachmentIDs []string `json:"attachment_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	attachmentIDs := make([]uuid.UUID, 0, len(req.AttachmentIDs))
	for _, raw := range req.AttachmentIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.RespondBadRequest(c, "некорректный идентификатор вложения")
			return
		}
		attachmentIDs = append(attachmentIDs, id)
	}

	order, err := h.orders.Create(c.Request.Context(), userID, service.CreateOrderInput{
		Title:         req.Title,
		Description:   req.Description,
		WorkDirection: req.WorkDirection,
		MaxAmount:     models.ToCents(req.MaxAmount),
		AttachmentIDs: attachmentIDs,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewOrderView(order))
}

// Get обрабатывает GET /orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
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

	order, err := h.orders.Get(c.Request.Context(), orderID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderView(order))
}

// ListMy обрабатывает GET /orders/my.
func (h *OrderHandler) ListMy(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	asExecutor := c.Query("role") == "executor"
	includeArchived := c.Query("archived") == "true"

	orders, err := h.orders.ListMy(c.Request.Context(), userID, asExecutor, includeArchived)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderViews(orders))
}

// ListOpen обрабатывает GET /orders — лента открытых заказов.
func (h *OrderHandler) ListOpen(c *gin.Context) {
	orders, err := h.orders.ListOpen(c.Request.Context(),
		c.Query("work_direction"),
		common.QueryInt(c, "limit", 50),
		common.QueryInt(c, "offset", 0))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderViews(orders))
}

// Update обрабатывает PATCH /orders/:id.
func (h *OrderHandler) Update(c *gin.Context) {
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
		Title       *string  `json:"title"`
		Description *string  `json:"description"`
		MaxAmount   *float64 `json:"max_amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	in := service.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.MaxAmount != nil {
		cents := models.ToCents(*req.MaxAmount)
		in.MaxAmount = &cents
	}

	order, err := h.orders.Update(c.Request.Context(), orderID, userID, in)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderView(order))
}

// UpdateStatus обрабатывает PATCH /orders/:id/status.
// Статус принимается и в унаследованном числовом виде.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
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
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), orderID, userID, req.Status)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderView(order))
}

// SelectExecutor обрабатывает POST /orders/:id/select.
func (h *OrderHandler) SelectExecutor(c *gin.Context) {
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
		ResponseID string `json:"response_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	responseID, err := uuid.Parse(req.ResponseID)
	if err != nil {
		common.RespondBadRequest(c, "некорректный response_id")
		return
	}

	order, err := h.orders.SelectExecutor(c.Request.Context(), orderID, userID, responseID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderView(order))
}

// Complete обрабатывает POST /orders/:id/complete.
// Сторона определяется по вызывающему пользователю.
func (h *OrderHandler) Complete(c *gin.Context) {
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

	var order *models.Order
	if c.Query("side") == "executor" {
		order, err = h.orders.CompleteByExecutor(c.Request.Context(), orderID, userID)
	} else {
		order, err = h.orders.CompleteByCustomer(c.Request.Context(), orderID, userID)
	}
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderView(order))
}

// Accept обрабатывает POST /orders/:id/accept.
func (h *OrderHandler) Accept(c *gin.Context) {
	h.transition(c, h.orders.AcceptCompletion)
}

// Reject обрабатывает POST /orders/:id/reject.
func (h *OrderHandler) Reject(c *gin.Context) {
	h.transition(c, h.orders.RejectCompletion)
}

// Refuse обрабатывает POST /orders/:id/refuse.
func (h *OrderHandler) Refuse(c *gin.Context) {
	h.transition(c, h.orders.Refuse)
}

// Cancel обрабатывает POST /orders/:id/cancel.
func (h *OrderHandler) Cancel(c *gin.Context) {
	h.transition(c, h.orders.Cancel)
}

// Refund обрабатывает POST /orders/:id/refund.
func (h *OrderHandler) Refund(c *gin.Context) {
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
		Percent int64 `json:"percent"`
	}
	// Тело опционально, без него возвращается полный резерв
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if req.Percent == 0 {
		req.Percent = 100
	}

	if err := h.orders.RefundHeld(c.Request.Context(), orderID, userID, req.Percent); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Delete обрабатывает DELETE /orders/:id.
func (h *OrderHandler) Delete(c *gin.Context) {
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

	if err := h.orders.Delete(c.Request.Context(), orderID, userID); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Archive обрабатывает POST /orders/:id/archive.
func (h *OrderHandler) Archive(c *gin.Context) {
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

	archived := c.Query("restore") != "true"
	if err := h.orders.Archive(c.Request.Context(), orderID, userID, archived); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// transition — общий обработчик переходов без тела запроса.
func (h *OrderHandler) transition(c *gin.Context, fn func(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)) {
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

	order, err := fn(c.Request.Context(), orderID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderView(order))
}
