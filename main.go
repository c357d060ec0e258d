package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"shophub/internal/config"
	"shophub/internal/database"
	"shophub/internal/handlers"
	"shophub/internal/middleware"
	"shophub/internal/payment"
	"shophub/internal/repositories"
	"shophub/internal/services"
	"shophub/pkg/rabbitmq"
)

// NewApp wires repositories, services and handlers into a Fiber app. events may be nil.
func NewApp(cfg *config.Config, db *gorm.DB, gateway payment.Gateway, events services.EventPublisher) *fiber.App {
	// --- Initialize Repositories ---
	productRepo := repositories.NewGORMProductRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	webhookRepo := repositories.NewGORMWebhookEventRepository(db)

	// --- Initialize Services ---
	authService := services.NewAuthService(userRepo, cfg.Auth)
	userService := services.NewUserService(userRepo)
	productService := services.NewProductService(productRepo)
	orderService := services.NewOrderService(orderRepo, productRepo, userRepo, gateway, events, cfg.Payment)
	paymentService := services.NewPaymentService(orderRepo, webhookRepo, events, cfg.Payment)

	// --- Initialize Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	productHandler := handlers.NewProductHandler(productService)
	orderHandler := handlers.NewOrderHandler(orderService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})

	// --- Middleware ---
	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		dbStatus := "connected"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
			dbStatus = "unreachable"
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": dbStatus,
		})
	})

	requireAuth := middleware.AuthRequired(authService)

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1, requireAuth)

	store := apiV1.Group("/store")
	productHandler.RegisterStoreRoutes(store)
	userHandler.RegisterStoreRoutes(store, requireAuth)
	orderHandler.RegisterStoreRoutes(store, requireAuth)
	paymentHandler.RegisterStoreRoutes(store, requireAuth)

	admin := apiV1.Group("/admin", requireAuth, middleware.AdminRequired())
	productHandler.RegisterAdminRoutes(admin)
	orderHandler.RegisterAdminRoutes(admin)

	// provider webhook, authenticated by body signature
	paymentHandler.RegisterWebhook(app)

	return app
}

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// --- Initialize RabbitMQ Client ---
	// The broker is optional; without it lifecycle events are skipped.
	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			log.Printf("Warning: RabbitMQ unavailable, order events disabled: %v", err)
		} else {
			defer mqClient.Close()
			events = mqClient
			if err := mqClient.ConsumeOrderEvents(rabbitmq.HandleOrderMessage); err != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", err)
			}
		}
	} else {
		log.Println("RABBITMQ_URL not set, order events disabled")
	}

	gateway := payment.NewRazorpayClient(cfg.Payment)
	app := NewApp(cfg, db, gateway, events)

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", cfg.AppPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	log.Println("Server gracefully stopped")
}
