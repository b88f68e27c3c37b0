package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/uslugihub/backend/internal/config"
	"github.com/uslugihub/backend/internal/db"
	"github.com/uslugihub/backend/internal/goroutine"
	httpHandlers "github.com/uslugihub/backend/internal/http/handlers"
	httpRouter "github.com/uslugihub/backend/internal/http/router"
	"github.com/uslugihub/backend/internal/logger"
	"github.com/uslugihub/backend/internal/repository"
	"github.com/uslugihub/backend/internal/service"
	"github.com/uslugihub/backend/internal/storage"
	"github.com/uslugihub/backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Инициализируем вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	mediaStore, err := storage.NewMediaStore(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	orderRepo := repository.NewOrderRepository(dbConn)
	responseRepo := repository.NewResponseRepository(dbConn)
	walletRepo := repository.NewWalletRepository(dbConn)
	mediatorRepo := repository.NewMediatorRepository(dbConn)
	reviewRepo := repository.NewReviewRepository(dbConn)
	subscriptionRepo := repository.NewSubscriptionRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	mediaRepo := repository.NewMediaRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub(ctx)
	goroutine.SafeGo(hub.Run)

	// Сервисы.
	notificationService := service.NewNotificationService(notificationRepo, hub)
	authService := service.NewAuthService(userRepo, tokenManager)
	walletService := service.NewWalletService(walletRepo)
	escrowService := service.NewEscrowService(walletRepo)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo, walletRepo)
	orderService := service.NewOrderService(orderRepo, responseRepo, escrowService, subscriptionService, notificationService)
	responseService := service.NewResponseService(responseRepo, orderRepo, userRepo, subscriptionService, notificationService)
	mediatorService := service.NewMediatorService(mediatorRepo, orderRepo, userRepo, walletRepo, notificationService)
	reviewService := service.NewReviewService(reviewRepo, orderRepo, userRepo, escrowService, notificationService)

	// HTTP хэндлеры и роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Auth:         httpHandlers.NewAuthHandler(authService),
		Order:        httpHandlers.NewOrderHandler(orderService),
		Response:     httpHandlers.NewResponseHandler(responseService),
		Wallet:       httpHandlers.NewWalletHandler(walletService),
		Mediator:     httpHandlers.NewMediatorHandler(mediatorService),
		Review:       httpHandlers.NewReviewHandler(reviewService),
		Notification: httpHandlers.NewNotificationHandler(notificationService),
		Subscription: httpHandlers.NewSubscriptionHandler(subscriptionService),
		Media:        httpHandlers.NewMediaHandler(mediaRepo, mediaStore),
		WS:           httpHandlers.NewWSHandler(hub, tokenManager),
		Health:       httpHandlers.NewHealthHandler(dbConn),
	}, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Фоновая деактивация истёкших подписок и чистка сессий.
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		expireSubscriptions(ctx, subscriptionService)
	})
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		cleanupSessions(ctx, userRepo)
	})

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия соединения с базой: %v", err)
	}
}

// cleanupSessions раз в сутки удаляет истёкшие refresh сессии.
func cleanupSessions(ctx context.Context, users *repository.UserRepository) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := users.DeleteExpiredSessions(ctx, time.Now()); err != nil {
				logger.Log.WithError(err).Error("main: не удалось удалить истёкшие сессии")
			} else if n > 0 {
				logger.Log.WithField("count", n).Info("main: удалены истёкшие сессии")
			}
		}
	}
}

// expireSubscriptions раз в час снимает флаг активности с истёкших подписок.
func expireSubscriptions(ctx context.Context, subscriptions *service.SubscriptionService) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := subscriptions.DeactivateExpired(ctx); err != nil {
				logger.Log.WithError(err).Error("main: не удалось деактивировать подписки")
			} else if n > 0 {
				logger.Log.WithField("count", n).Info("main: деактивированы истёкшие подписки")
			}
		}
	}
}
