package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sagikoren/agencyops-api/internal/config"
	domainRepo "github.com/sagikoren/agencyops-api/internal/domain/repository"
	"github.com/sagikoren/agencyops-api/internal/presentation/http/handler"
	"github.com/sagikoren/agencyops-api/internal/presentation/http/middleware"
	"github.com/sagikoren/agencyops-api/pkg/utils"
)

// Handlers holds all the HTTP handlers used for route registration.
type Handlers struct {
	Tenant   *handler.TenantHandler
	Client   *handler.ClientHandler
	Catalog  *handler.CatalogHandler
	Quote    *handler.QuoteHandler
	Retainer *handler.RetainerHandler
	Payment  *handler.PaymentHandler
	Settings *handler.SettingsHandler
}

// Deps holds shared dependencies needed by the routes.
type Deps struct {
	JWTManager      *utils.JWTManager
	Cfg             *config.Config
	Logger          *zap.Logger
	TenantRepo      domainRepo.TenantRepository
	IdempotencyRepo domainRepo.IdempotencyRepository
}

// Setup creates the Gin router and registers all routes.
func Setup(h *Handlers, deps *Deps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(deps.Logger))
	router.Use(middleware.CORSMiddleware(&deps.Cfg.CORS))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": deps.Cfg.App.Name,
		})
	})

	// Provider webhooks are unauthenticated. The payload signature is the
	// credential; the tenant comes from the URL, not the subdomain.
	router.POST("/webhooks/:tenant_id/:provider", h.Payment.HandleWebhook)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(deps.JWTManager))
		protected.Use(middleware.TenantMiddleware(deps.TenantRepo))

		// Per-tenant rate limiter
		rateLimiter := middleware.NewTenantRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(deps.Cfg.RateLimit.Requests) / float64(deps.Cfg.RateLimit.Duration),
			BurstSize:         deps.Cfg.RateLimit.Requests,
			CleanupInterval:   5 * time.Minute,
			EntryTTL:          10 * time.Minute,
		})
		protected.Use(rateLimiter.Middleware())

		registerProtectedRoutes(protected, h, deps)
	}

	return router
}

func registerProtectedRoutes(protected *gin.RouterGroup, h *Handlers, deps *Deps) {
	registerTenantRoutes(protected, h)

	// The remaining routes all operate on tenant-scoped data.
	tenant := protected.Group("")
	tenant.Use(middleware.RequireTenant())

	registerClientRoutes(tenant, h)
	registerCatalogRoutes(tenant, h)
	registerQuoteRoutes(tenant, h, deps)
	registerRetainerRoutes(tenant, h)
	registerPaymentRoutes(tenant, h, deps)

	// Payment settings
	tenant.GET("/settings/payments", h.Settings.GetSettings)
	tenant.PUT("/settings/payments", h.Settings.UpdateSettings)
}

func registerTenantRoutes(protected *gin.RouterGroup, h *Handlers) {
	tenants := protected.Group("/tenants")
	{
		tenants.GET("", h.Tenant.ListTenants)
		tenants.POST("", h.Tenant.CreateTenant)
		tenants.GET("/current", h.Tenant.GetCurrentTenant)
		tenants.PUT("/current", h.Tenant.UpdateTenant)
		tenants.GET("/current/members", h.Tenant.ListMembers)
		tenants.POST("/current/members", h.Tenant.InviteMember)
		tenants.PUT("/current/members/:user_id", h.Tenant.UpdateMemberRole)
		tenants.DELETE("/current/members/:user_id", h.Tenant.RemoveMember)
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole("super-admin"))
	{
		admin.POST("/tenants/assign-user", h.Tenant.AssignUserToTenant)
	}
}

func registerClientRoutes(tenant *gin.RouterGroup, h *Handlers) {
	clients := tenant.Group("/clients")
	clients.Use(middleware.RequirePermission("manage-clients"))
	{
		clients.GET("", h.Client.ListClients)
		clients.POST("", h.Client.CreateClient)
		clients.GET("/:id", h.Client.GetClient)
	}
}

func registerCatalogRoutes(tenant *gin.RouterGroup, h *Handlers) {
	items := tenant.Group("/items")
	items.Use(middleware.RequirePermission("manage-catalog"))
	{
		items.GET("", h.Catalog.ListItems)
		items.POST("", h.Catalog.CreateItem)
		items.GET("/:id", h.Catalog.GetItem)
		items.PUT("/:id", h.Catalog.UpdateItem)
		items.DELETE("/:id", h.Catalog.DeleteItem)
	}

	products := tenant.Group("/products")
	products.Use(middleware.RequirePermission("manage-catalog"))
	{
		products.GET("", h.Catalog.ListProducts)
		products.POST("", h.Catalog.CreateProduct)
		products.GET("/:id", h.Catalog.GetProduct)
		products.POST("/:id/rebuild-price", h.Catalog.RebuildProductPrice)
		products.DELETE("/:id", h.Catalog.DeleteProduct)
	}
}

func registerQuoteRoutes(tenant *gin.RouterGroup, h *Handlers, deps *Deps) {
	quotes := tenant.Group("/quotes")
	quotes.Use(middleware.RequirePermission("manage-quotes"))
	{
		quotes.GET("", h.Quote.ListQuotes)
		quotes.POST("", h.Quote.CreateQuote)
		quotes.GET("/:id", h.Quote.GetQuote)
		quotes.PUT("/:id", h.Quote.UpdateQuote)
		quotes.DELETE("/:id", h.Quote.DeleteQuote)

		quotes.POST("/:id/line-items", h.Quote.AddLineItem)
		quotes.PUT("/:id/line-items", h.Quote.ReplaceLineItems)
		quotes.DELETE("/:id/line-items/:line_id", h.Quote.RemoveLineItem)

		quotes.POST("/:id/submit", h.Quote.SubmitQuote)
		// Approval fans out real charges, so a retried request must not
		// bill twice.
		quotes.POST("/:id/approve", middleware.IdempotencyRequired(middleware.IdempotencyConfig{
			Repo: deps.IdempotencyRepo,
		}), h.Quote.ApproveQuote)
		quotes.POST("/:id/reject", h.Quote.RejectQuote)
		quotes.POST("/:id/duplicate", h.Quote.DuplicateQuote)
	}
}

func registerRetainerRoutes(tenant *gin.RouterGroup, h *Handlers) {
	retainers := tenant.Group("/retainers")
	retainers.Use(middleware.RequirePermission("manage-billing"))
	{
		retainers.GET("", h.Retainer.ListRetainers)
		retainers.POST("", h.Retainer.CreateRetainer)
		retainers.GET("/:id", h.Retainer.GetRetainer)
		retainers.PUT("/:id", h.Retainer.UpdateRetainer)
		retainers.DELETE("/:id", h.Retainer.DeleteRetainer)

		retainers.POST("/:id/pause", h.Retainer.PauseRetainer)
		retainers.POST("/:id/resume", h.Retainer.ResumeRetainer)
		retainers.POST("/:id/cancel", h.Retainer.CancelRetainer)
	}
}

func registerPaymentRoutes(tenant *gin.RouterGroup, h *Handlers, deps *Deps) {
	payments := tenant.Group("/payments")
	payments.Use(middleware.RequirePermission("manage-billing"))
	{
		payments.GET("", h.Payment.ListPayments)
		payments.POST("", middleware.IdempotencyRequired(middleware.IdempotencyConfig{
			Repo: deps.IdempotencyRepo,
		}), h.Payment.CreatePayment)
		payments.GET("/:id", h.Payment.GetPayment)
		payments.POST("/:id/capture", h.Payment.CapturePayment)
		payments.POST("/:id/mark-paid", h.Payment.MarkPaymentPaid)
	}
}
