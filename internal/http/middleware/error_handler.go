package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/uslugihub/backend/internal/logger"
	"github.com/uslugihub/backend/internal/pkg/apperror"
	"github.com/uslugihub/backend/internal/repository"
)

// ErrorHandler обрабатывает ошибки централизованно.
// AppError отдаётся клиенту со своим статусом и кодом, ошибки репозитория
// мапятся на известные статусы, всё остальное маскируется.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("Request error")
		}

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			c.JSON(appErr.HTTPStatus, gin.H{
				"error": appErr.Message,
				"code":  appErr.Code,
			})
			return
		}

		statusCode := http.StatusInternalServerError
		message := "внутренняя ошибка сервера"

		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			statusCode, message = http.StatusNotFound, "пользователь не найден"
		case errors.Is(err, repository.ErrOrderNotFound):
			statusCode, message = http.StatusNotFound, "заказ не найден"
		case errors.Is(err, repository.ErrResponseNotFound):
			statusCode, message = http.StatusNotFound, "отклик не найден"
		case errors.Is(err, repository.ErrReviewNotFound):
			statusCode, message = http.StatusNotFound, "отзыв не найден"
		case errors.Is(err, repository.ErrInsufficientFunds):
			statusCode, message = http.StatusPaymentRequired, "недостаточно средств на балансе"
		case errors.Is(err, repository.ErrInvalidTransition):
			statusCode, message = http.StatusBadRequest, "переход статуса недопустим"
		}

		c.JSON(statusCode, gin.H{"error": message})
	}
}
