package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/uslugihub/backend/internal/dto"
	"github.com/uslugihub/backend/internal/http/handlers/common"
	"github.com/uslugihub/backend/internal/models"
	"github.com/uslugihub/backend/internal/service"
)

// ResponseHandler обслуживает отклики исполнителей и обмен контактами.
type ResponseHandler struct {
	responses *service.ResponseService
}

func NewResponseHandler(responses *service.ResponseService) *ResponseHandler {
	return &ResponseHandler{responses: responses}
}

// Respond обрабатывает POST /orders/:id/responses.
func (h *ResponseHandler) Respond(c *gin.Context) {
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
		Message string   `json:"message" binding:"required"`
		Price   *float64 `json:"price"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var price *int64
	if req.Price != nil {
		cents := models.ToCents(*req.Price)
		price = &cents
	}

	resp, err := h.responses.Respond(c.Request.Context(), orderID, userID, req.Message, price)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewResponseView(resp))
}

// ListForOrder обрабатывает GET /orders/:id/responses.
func (h *ResponseHandler) ListForOrder(c *gin.Context) {
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

	responses, err := h.responses.ListForOrder(c.Request.Context(), orderID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewResponseViews(responses))
}

// ListMy обрабатывает GET /responses/my.
func (h *ResponseHandler) ListMy(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	responses, err := h.responses.ListMy(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewResponseViews(responses))
}

// SendCustomerContact обрабатывает POST /responses/:id/contact.
func (h *ResponseHandler) SendCustomerContact(c *gin.Context) {
	h.advance(c, h.responses.SendCustomerContact)
}

// SendExecutorContact обрабатывает POST /responses/:id/executor-contact.
// Оставлен для совместимости со старыми клиентами.
func (h *ResponseHandler) SendExecutorContact(c *gin.Context) {
	h.advance(c, h.responses.SendExecutorContact)
}

// MarkContactOpened обрабатывает POST /responses/:id/contact-opened.
func (h *ResponseHandler) MarkContactOpened(c *gin.Context) {
	h.advance(c, h.responses.MarkContactOpened)
}

// TakeIntoWork обрабатывает POST /responses/:id/take.
func (h *ResponseHandler) TakeIntoWork(c *gin.Context) {
	h.advance(c, h.responses.TakeIntoWork)
}

// Reject обрабатывает POST /responses/:id/reject.
func (h *ResponseHandler) Reject(c *gin.Context) {
	h.advance(c, h.responses.Reject)
}

// Contacts обрабатывает GET /responses/:id/contacts.
func (h *ResponseHandler) Contacts(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	responseID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	contact, err := h.responses.Contacts(c.Request.Context(), responseID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, contact)
}

// Withdraw обрабатывает DELETE /responses/:id.
func (h *ResponseHandler) Withdraw(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	responseID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.responses.Withdraw(c.Request.Context(), responseID, userID); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ResponseHandler) advance(c *gin.Context, fn func(ctx context.Context, responseID, userID uuid.UUID) (*models.OrderResponse, error)) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	responseID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	resp, err := fn(c.Request.Context(), responseID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewResponseView(resp))
}
