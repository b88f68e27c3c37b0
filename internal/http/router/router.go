package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uslugihub/backend/internal/config"
	"github.com/uslugihub/backend/internal/http/handlers"
	"github.com/uslugihub/backend/internal/http/middleware"
	"github.com/uslugihub/backend/internal/models"
	"github.com/uslugihub/backend/internal/service"
)

// Handlers собирает все хэндлеры приложения для регистрации маршрутов.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Order        *handlers.OrderHandler
	Response     *handlers.ResponseHandler
	Wallet       *handlers.WalletHandler
	Mediator     *handlers.MediatorHandler
	Review       *handlers.ReviewHandler
	Notification *handlers.NotificationHandler
	Subscription *handlers.SubscriptionHandler
	Media        *handlers.MediaHandler
	WS           *handlers.WSHandler
	Health       *handlers.HealthHandler
}

// SetupRouter регистрирует все маршруты приложения.
func SetupRouter(cfg *config.Config, h Handlers, tokenManager *service.TokenManager) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.StaticFS("/media", http.Dir(cfg.MediaStoragePath))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	// Публичные маршруты
	api.GET("/ws", h.WS.Handle)
	api.GET("/subscriptions/plans", h.Subscription.Plans)
	api.GET("/users/:id/reviews", middleware.UUIDValidator("id"), h.Review.ListForUser)
	api.GET("/orders/:id/reviews", middleware.UUIDValidator("id"), h.Review.ListForOrder)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.POST("/auth/logout", h.Auth.Logout)
		protected.GET("/profile", h.Auth.Me)
		protected.PUT("/profile", h.Auth.UpdateMe)

		// Заказы
		protected.GET("/orders", h.Order.ListOpen)
		protected.POST("/orders", h.Order.Create)
		protected.GET("/orders/my", h.Order.ListMy)
		protected.GET("/orders/:id", middleware.UUIDValidator("id"), h.Order.Get)
		protected.PATCH("/orders/:id", middleware.UUIDValidator("id"), h.Order.Update)
		protected.DELETE("/orders/:id", middleware.UUIDValidator("id"), h.Order.Delete)
		protected.PATCH("/orders/:id/status", middleware.UUIDValidator("id"), h.Order.UpdateStatus)
		protected.POST("/orders/:id/select", middleware.UUIDValidator("id"), h.Order.SelectExecutor)
		protected.POST("/orders/:id/complete", middleware.UUIDValidator("id"), h.Order.Complete)
		protected.POST("/orders/:id/accept", middleware.UUIDValidator("id"), h.Order.Accept)
		protected.POST("/orders/:id/reject", middleware.UUIDValidator("id"), h.Order.Reject)
		protected.POST("/orders/:id/refuse", middleware.UUIDValidator("id"), h.Order.Refuse)
		protected.POST("/orders/:id/cancel", middleware.UUIDValidator("id"), h.Order.Cancel)
		protected.POST("/orders/:id/refund", middleware.UUIDValidator("id"), h.Order.Refund)
		protected.POST("/orders/:id/archive", middleware.UUIDValidator("id"), h.Order.Archive)
		protected.GET("/orders/:id/transactions", middleware.UUIDValidator("id"), h.Wallet.OrderHistory)
		protected.GET("/orders/:id/steps", middleware.UUIDValidator("id"), h.Mediator.Steps)

		// Отклики
		protected.POST("/orders/:id/responses", middleware.UUIDValidator("id"), h.Response.Respond)
		protected.GET("/orders/:id/responses", middleware.UUIDValidator("id"), h.Response.ListForOrder)
		protected.GET("/responses/my", h.Response.ListMy)
		protected.POST("/responses/:id/contact", middleware.UUIDValidator("id"), h.Response.SendCustomerContact)
		protected.POST("/responses/:id/executor-contact", middleware.UUIDValidator("id"), h.Response.SendExecutorContact)
		protected.POST("/responses/:id/contact-opened", middleware.UUIDValidator("id"), h.Response.MarkContactOpened)
		protected.POST("/responses/:id/take", middleware.UUIDValidator("id"), h.Response.TakeIntoWork)
		protected.POST("/responses/:id/reject", middleware.UUIDValidator("id"), h.Response.Reject)
		protected.GET("/responses/:id/contacts", middleware.UUIDValidator("id"), h.Response.Contacts)
		protected.DELETE("/responses/:id", middleware.UUIDValidator("id"), h.Response.Withdraw)

		// Отзывы
		protected.POST("/orders/:id/reviews", middleware.UUIDValidator("id"), h.Review.Create)

		// Кошелёк
		protected.GET("/wallet/balance", h.Wallet.Balance)
		protected.POST("/wallet/deposit", h.Wallet.Deposit)
		protected.GET("/wallet/transactions", h.Wallet.History)

		// Подписки
		protected.POST("/subscriptions", h.Subscription.Purchase)
		protected.GET("/subscriptions/current", h.Subscription.Current)

		// Уведомления
		protected.GET("/notifications", h.Notification.List)
		protected.GET("/notifications/unread-count", h.Notification.UnreadCount)
		protected.POST("/notifications/:id/read", middleware.UUIDValidator("id"), h.Notification.MarkRead)
		protected.POST("/notifications/read-all", h.Notification.MarkAllRead)

		// Медиа
		protected.POST("/media/photos", h.Media.UploadPhoto)
		protected.DELETE("/media/:id", middleware.UUIDValidator("id"), h.Media.DeleteMedia)
	}

	// Маршруты посредника
	mediator := api.Group("/mediator")
	mediator.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireUserType(models.UserTypeMediator))
	{
		mediator.GET("/orders", h.Mediator.ListMy)
		mediator.POST("/orders/:id/take", middleware.UUIDValidator("id"), h.Mediator.Take)
		mediator.POST("/orders/:id/next-step", middleware.UUIDValidator("id"), h.Mediator.NextStep)
		mediator.POST("/orders/:id/archive", middleware.UUIDValidator("id"), h.Mediator.Archive)
		mediator.POST("/orders/:id/return", middleware.UUIDValidator("id"), h.Mediator.ReturnToApp)
	}

	return r
}
