package server

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"billing-mirror/internal/client/stripeapi"
	"billing-mirror/internal/config"
	"billing-mirror/internal/db"
	"billing-mirror/internal/facade"
	"billing-mirror/internal/handlers"
	"billing-mirror/internal/logger"
	"billing-mirror/internal/sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Handler Definitions
var (
	webhookHandler      *handlers.WebhookHandler
	customerHandler     *handlers.CustomerHandler
	subscriptionHandler *handlers.SubscriptionHandler
	paymentHandler      *handlers.PaymentHandler
	invoiceHandler      *handlers.InvoiceHandler
	checkoutHandler     *handlers.CheckoutHandler

	eventRouter *sync.Router

	// Database
	dbQueries *db.Queries
)

// InitializeHandlers builds the service graph: connection pool, store, Stripe
// client, mirror, router, facade, then the HTTP handlers on top.
func InitializeHandlers(cfg config.Config) {
	// Create a connection pool using pgxpool
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Unable to parse database connection string", zap.Error(err))
	}

	// Configure the connection pool
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	// Create the connection pool
	connPool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Fatal("Unable to create connection pool", zap.Error(err))
	}

	// Create queries instance with the connection pool
	dbQueries = db.New(connPool)

	stripeService := stripeapi.New(cfg.StripeAPIKey, cfg.StripeWebhookSecret, logger.Log)
	if !stripeService.WebhookConfigured() {
		logger.Warn("STRIPE_WEBHOOK_SECRET not set, webhook endpoint will reject deliveries")
	}

	mirror := sync.NewMirror(dbQueries, logger.Log)
	eventRouter = sync.NewRouter(mirror, dbQueries, stripeService, logger.Log)
	facadeService := facade.NewService(stripeService, dbQueries, mirror, logger.Log)

	commonServices := handlers.NewCommonServices(dbQueries, facadeService)

	// API Handler initialization
	webhookHandler = handlers.NewWebhookHandler(stripeService, eventRouter)
	customerHandler = handlers.NewCustomerHandler(commonServices)
	subscriptionHandler = handlers.NewSubscriptionHandler(commonServices)
	paymentHandler = handlers.NewPaymentHandler(commonServices)
	invoiceHandler = handlers.NewInvoiceHandler(commonServices)
	checkoutHandler = handlers.NewCheckoutHandler(commonServices)
}

// Router exposes the event router so the embedding application can register
// post-processing hooks before the server starts.
func Router() *sync.Router {
	return eventRouter
}

func InitializeRoutes(router *gin.Engine, cfg config.Config) {
	// Configure and apply CORS middleware
	router.Use(configureCORS())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Webhook endpoint, outside the API group: deliveries authenticate by
	// signature, not by API auth.
	router.POST(cfg.WebhookPath, webhookHandler.HandleWebhook)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Customers
		v1.GET("/customers", customerHandler.GetCustomerByEmail)
		v1.POST("/customers", customerHandler.UpsertCustomer)
		v1.POST("/customers/resolve", customerHandler.ResolveCustomer)
		v1.GET("/customers/:customer_id", customerHandler.GetCustomer)
		v1.GET("/customers/:customer_id/subscriptions", subscriptionHandler.ListSubscriptionsByCustomer)
		v1.GET("/customers/:customer_id/payments", paymentHandler.ListPaymentsByCustomer)
		v1.GET("/customers/:customer_id/invoices", invoiceHandler.ListInvoicesByCustomer)

		// Subscriptions
		subscriptions := v1.Group("/subscriptions")
		{
			subscriptions.GET("", subscriptionHandler.ListSubscriptions)
			subscriptions.GET("/:subscription_id", subscriptionHandler.GetSubscription)
			subscriptions.GET("/:subscription_id/invoices", invoiceHandler.ListInvoicesBySubscription)
			subscriptions.POST("/:subscription_id/cancel", subscriptionHandler.CancelSubscription)
			subscriptions.POST("/:subscription_id/reactivate", subscriptionHandler.ReactivateSubscription)
			subscriptions.PUT("/:subscription_id/quantity", subscriptionHandler.UpdateQuantity)
			subscriptions.PUT("/:subscription_id/metadata", subscriptionHandler.UpdateMetadata)
		}

		// Payments
		v1.GET("/payments", paymentHandler.ListPayments)
		v1.GET("/payments/:payment_id", paymentHandler.GetPayment)

		// Invoices
		v1.GET("/invoices", invoiceHandler.ListInvoices)
		v1.GET("/invoices/:invoice_id", invoiceHandler.GetInvoice)

		// Checkout and billing portal
		v1.POST("/checkout/sessions", checkoutHandler.CreateCheckoutSession)
		v1.GET("/checkout/sessions/:session_id", checkoutHandler.GetCheckoutSession)
		v1.POST("/portal/sessions", checkoutHandler.CreatePortalSession)
	}
}

// configureCORS returns a configured CORS middleware
func configureCORS() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	// Get allowed origins from environment variable
	originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	if originsEnv == "" {
		// Default to localhost if not set
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	} else {
		// Split and trim the origins
		origins := strings.Split(originsEnv, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		corsConfig.AllowOrigins = origins
	}

	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Stripe-Signature"}

	return cors.New(corsConfig)
}
