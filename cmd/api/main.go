package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sagikoren/agencyops-api/internal/application/event"
	"github.com/sagikoren/agencyops-api/internal/application/service"
	"github.com/sagikoren/agencyops-api/internal/config"
	"github.com/sagikoren/agencyops-api/internal/infrastructure/database"
	"github.com/sagikoren/agencyops-api/internal/infrastructure/logger"
	"github.com/sagikoren/agencyops-api/internal/infrastructure/payment"
	"github.com/sagikoren/agencyops-api/internal/infrastructure/repository"
	"github.com/sagikoren/agencyops-api/internal/infrastructure/scheduler"
	"github.com/sagikoren/agencyops-api/internal/presentation/http/handler"
	"github.com/sagikoren/agencyops-api/internal/presentation/http/routes"
	"github.com/sagikoren/agencyops-api/pkg/email"
	"github.com/sagikoren/agencyops-api/pkg/utils"
)

func main() {
	// Load configuration
	cfg := config.Load()

	level := "info"
	if cfg.App.Debug {
		level = "debug"
	}
	log := logger.New(&logger.Config{Level: level, Format: cfg.App.LogFormat})
	defer log.Sync()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// JWT manager for validating externally issued tokens
	jwtManager := utils.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.ExpiryHours,
		cfg.JWT.ExpiryHours*7,
	)

	// Repositories
	tenantRepo := repository.NewTenantRepository(db)
	clientRepo := repository.NewClientRepository(db)
	itemRepo := repository.NewItemRepository(db)
	productRepo := repository.NewProductRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	retainerRepo := repository.NewRetainerRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	settingsRepo := repository.NewPaymentSettingsRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	// Payment providers and domain event sink
	providers := payment.NewFactory(cfg.Billing.ProviderTimeout)
	notifier := event.NewLogNotifier(log)

	// Optional SMTP mailer for payment link delivery
	var mailer service.Mailer
	if cfg.Email.SMTPHost != "" {
		mailer = email.NewEmailService(email.EmailConfig{
			SMTPHost:     cfg.Email.SMTPHost,
			SMTPPort:     cfg.Email.SMTPPort,
			SMTPUsername: cfg.Email.SMTPUsername,
			SMTPPassword: cfg.Email.SMTPPassword,
			FromName:     cfg.Email.FromName,
			FromEmail:    cfg.Email.FromEmail,
		})
	}

	// Services
	tenantService := service.NewTenantService(tenantRepo)
	clientService := service.NewClientService(clientRepo)
	catalogService := service.NewCatalogService(itemRepo, productRepo)
	settingsService := service.NewSettingsService(settingsRepo, cfg.Billing.Currency, cfg.Billing.VATRateBasisPoints)
	paymentService := service.NewPaymentService(paymentRepo, settingsRepo, clientRepo, providers, mailer, notifier, log)
	retainerService := service.NewRetainerService(retainerRepo, paymentRepo, clientRepo, settingsRepo, providers, notifier, log, cfg.Billing.FailurePauseThreshold)
	quoteService := service.NewQuoteService(
		quoteRepo, clientRepo, itemRepo, productRepo, retainerRepo, settingsRepo,
		paymentService, notifier, log,
		cfg.Billing.Currency, cfg.Billing.VATRateBasisPoints,
	)

	// Handlers
	handlers := &routes.Handlers{
		Tenant:   handler.NewTenantHandler(tenantService),
		Client:   handler.NewClientHandler(clientService),
		Catalog:  handler.NewCatalogHandler(catalogService, cfg.Billing.Currency),
		Quote:    handler.NewQuoteHandler(quoteService, cfg.Billing.Currency),
		Retainer: handler.NewRetainerHandler(retainerService, cfg.Billing.Currency),
		Payment:  handler.NewPaymentHandler(paymentService, cfg.Billing.Currency),
		Settings: handler.NewSettingsHandler(settingsService),
	}

	router := routes.Setup(handlers, &routes.Deps{
		JWTManager:      jwtManager,
		Cfg:             cfg,
		Logger:          log,
		TenantRepo:      tenantRepo,
		IdempotencyRepo: idempotencyRepo,
	})

	// Billing sweeps: retainer materialization and quote expiry
	var sweeper *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sweeper = scheduler.New(retainerService, quoteService, cfg.Scheduler.Interval, log)
		sweeper.Start()
	}

	port := cfg.App.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Info("starting server",
			zap.String("service", cfg.App.Name),
			zap.String("port", port),
			zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if sweeper != nil {
		sweeper.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
}
