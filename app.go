package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"agromarket/internal/config"
	"agromarket/internal/documents"
	"agromarket/internal/handlers"
	"agromarket/internal/middleware"
	"agromarket/internal/models"
	"agromarket/internal/repositories"
	"agromarket/internal/retry"
	"agromarket/internal/services"
	"agromarket/pkg/cache"
	"agromarket/pkg/recaptcha"
	"agromarket/pkg/storage"
	"agromarket/pkg/whatsapp"
)

// server is the wired HTTP application plus the pieces the queue consumers need.
type server struct {
	app      *fiber.App
	notifier *services.NotificationService
	chatbot  *services.ChatbotService
	whatsapp *whatsapp.Client
	auth     *services.AuthService
}

// serverDeps are the external resources a server is built on.
// Publisher may be nil when no broker is configured.
type serverDeps struct {
	DB        *gorm.DB
	Publisher services.Publisher
	Cache     cache.Cache
	Store     services.DocumentStore
}

// newServer wires repositories, services and handlers into a Fiber app.
func newServer(cfg *config.Config, deps serverDeps) (*server, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewMemoryCache("agromarket")
	}
	if deps.Store == nil {
		store, err := storage.NewOSStore(cfg.StorageDir)
		if err != nil {
			return nil, err
		}
		deps.Store = store
	}

	// --- Initialize Repositories ---
	userRepo := repositories.NewGORMUserRepository(deps.DB)
	productRepo := repositories.NewGORMProductRepository(deps.DB)
	orderRepo := repositories.NewGORMOrderRepository(deps.DB)
	docRepo := repositories.NewGORMOrderDocumentRepository(deps.DB)
	clientRepo := repositories.NewGORMClientRepository(deps.DB)
	commissionRepo := repositories.NewGORMCommissionRepository(deps.DB)

	// --- Initialize Services ---
	notifier := services.NewNotificationService(deps.Publisher)

	var verifier services.CaptchaVerifier
	if cfg.RecaptchaSecret != "" {
		verifier = recaptcha.NewVerifier(cfg.RecaptchaSecret, cfg.RecaptchaMinScore)
	}
	guard := services.NewBotGuard(time.Duration(cfg.MinFormFillSeconds)*time.Second, verifier)

	authService := services.NewAuthService(userRepo, cfg.JWTSecret, guard, notifier)
	productService := services.NewProductService(productRepo, cfg.PricingTiers)
	orderService := services.NewOrderService(services.OrderServiceDeps{
		Orders:      orderRepo,
		Products:    productRepo,
		Users:       userRepo,
		Numbers:     repositories.NewGORMOrderNumberAllocator(deps.DB),
		Documents:   docRepo,
		Commissions: commissionRepo,
		Renderer:    documents.NewGenerator(cfg.Bank, cfg.BoletoDueDays),
		Store:       deps.Store,
		Notifier:    notifier,
		Retry: retry.Policy{
			MaxAttempts: cfg.OrderRetryMaxAttempts,
			BaseDelay:   cfg.OrderRetryBaseDelay,
			Jitter:      cfg.OrderRetryJitter,
		},
		CommissionMaxRate: cfg.CommissionMaxRate,
		CommissionMinRate: cfg.CommissionMinRate,
	})
	importService := services.NewImportService(clientRepo, commissionRepo)
	webhookService := services.NewWebhookService(cfg.WhatsAppVerifyToken, cfg.WhatsAppAppSecret, deps.Cache, notifier)
	chatbotService := services.NewChatbotService(orderRepo, userRepo, productRepo, notifier)

	// --- Initialize Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	adminHandler := handlers.NewAdminHandler(authService)
	productHandler := handlers.NewProductHandler(productService)
	orderHandler := handlers.NewOrderHandler(orderService)
	crmHandler := handlers.NewCRMHandler(importService)
	webhookHandler := handlers.NewWebhookHandler(webhookService)

	// --- Initialize Fiber App ---
	app := fiber.New(fiber.Config{
		AppName:   "agromarket",
		BodyLimit: 10 * 1024 * 1024,
	})

	// --- Middleware ---
	app.Use(recover.New())
	app.Use(logger.New()) // Request logger

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")

	// Authentication routes (public)
	authHandler.RegisterRoutes(apiV1)

	// Protected routes (require JWT authentication)
	protected := apiV1.Group("", middleware.AuthRequired(authService))
	authHandler.RegisterProtectedRoutes(protected)
	productHandler.RegisterRoutes(protected)
	orderHandler.RegisterRoutes(protected)

	admin := protected.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	adminHandler.RegisterRoutes(admin)
	productHandler.RegisterAdminRoutes(admin)
	orderHandler.RegisterAdminRoutes(admin)

	crm := protected.Group("/crm", middleware.RequireRole(models.RoleRepresentative, models.RoleAdmin))
	crmHandler.RegisterRoutes(crm)

	webhookHandler.RegisterRoutes(app)

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		broker := "disabled"
		if deps.Publisher != nil {
			broker = "connected"
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"rabbitMQ": broker,
		})
	})

	wa := whatsapp.NewClient(whatsapp.Config{
		APIVersion:    cfg.WhatsAppAPIVersion,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		Token:         cfg.WhatsAppToken,
	})
	if !wa.Enabled() {
		log.Println("WhatsApp credentials not set; outbound WhatsApp messages will only be logged")
	}

	return &server{
		app:      app,
		notifier: notifier,
		chatbot:  chatbotService,
		whatsapp: wa,
		auth:     authService,
	}, nil
}
