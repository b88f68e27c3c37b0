package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uslugihub/backend/internal/dto"
	"github.com/uslugihub/backend/internal/http/handlers/common"
	"github.com/uslugihub/backend/internal/models"
	"github.com/uslugihub/backend/internal/service"
)

// WalletHandler обслуживает кошелёк пользователя.
type WalletHandler struct {
	wallet *service.WalletService
}

func NewWalletHandler(wallet *service.WalletService) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

// Balance обрабатывает GET /wallet/balance.
func (h *WalletHandler) Balance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	balance, err := h.wallet.GetBalance(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": models.FromCents(balance)})
}

// Deposit обрабатывает POST /wallet/deposit.
func (h *WalletHandler) Deposit(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		Amount      float64 `json:"amount" binding:"required"`
		ExternalRef *string `json:"external_ref"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	txn, err := h.wallet.Deposit(c.Request.Context(), userID, models.ToCents(req.Amount), req.ExternalRef)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewTransactionView(txn))
}

// History обрабатывает GET /wallet/transactions.
func (h *WalletHandler) History(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	txns, err := h.wallet.History(c.Request.Context(), userID,
		common.QueryInt(c, "limit", 50),
		common.QueryInt(c, "offset", 0))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewTransactionViews(txns))
}

// OrderHistory обрабатывает GET /orders/:id/transactions.
func (h *WalletHandler) OrderHistory(c *gin.Context) {
	if _, err := common.CurrentUserID(c); err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	txns, err := h.wallet.OrderHistory(c.Request.Context(), orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewTransactionViews(txns))
}
