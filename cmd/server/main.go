package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/sikharm/moneyx-api/internal/accounts"
	"github.com/sikharm/moneyx-api/internal/auth"
	"github.com/sikharm/moneyx-api/internal/config"
	"github.com/sikharm/moneyx-api/internal/database"
	"github.com/sikharm/moneyx-api/internal/earnings"
	"github.com/sikharm/moneyx-api/internal/mt5"
	"github.com/sikharm/moneyx-api/pkg/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the account sync API server with graceful
// shutdown support. It sets up the database, the MT5 bridge client, all
// services and routes, and the background reconciler and sync scheduler.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize MT5 bridge client
	platform, err := mt5.NewClient(cfg.MT5BaseURL, cfg.MT5APIToken, cfg.MT5Timeout, cfg.StatusCacheTTL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize MT5 client")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	middleware.Configure(cfg.JWTSecret)
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret, auth.TestUserID)
	if cfg.AdminAPIKey != "" {
		authService.RegisterInternalCredentials(cfg.AdminAPIKey, cfg.AdminAPISecret, cfg.AdminEmail)
	}

	accountsService := accounts.NewService(db, platform)
	accountsHandlers := accounts.NewGinHandlers(accountsService)

	earningsService := earnings.NewService(db, accountsService, platform)
	earningsHandlers := earnings.NewGinHandlers(earningsService)

	// Create and start background workers
	reconciler := accounts.NewReconciler(accountsService, platform, cfg.ReconcileInterval)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go reconciler.Start(workerCtx)

	scheduler := earnings.NewScheduler(earningsService, cfg.SyncSchedule)
	if err := scheduler.Start(); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to start sync scheduler")
	}
	defer scheduler.Stop()

	// Setup middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.CORSOrigin}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	if cfg.CORSOrigin == "*" {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowOrigins = nil
	}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, authHandlers, accountsHandlers, earningsHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Account routes: Protected by JWT authentication
// - Internal routes: Protected by internal-permission tokens
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	accountsHandlers *accounts.GinHandlers,
	earningsHandlers *earnings.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Account routes
		accountsGroup := v1.Group("/accounts")
		accountsGroup.Use(middleware.JWTAuth())
		{
			accountsGroup.POST("", accountsHandlers.CreateAccountHandler())
			accountsGroup.GET("", accountsHandlers.ListAccountsHandler())
			accountsGroup.GET("/:account_id", accountsHandlers.GetAccountHandler())
			accountsGroup.DELETE("/:account_id", accountsHandlers.DeleteAccountHandler())
			accountsGroup.POST("/:account_id/deploy", accountsHandlers.DeployAccountHandler())
			accountsGroup.GET("/:account_id/status", accountsHandlers.CheckStatusHandler())
			accountsGroup.POST("/:account_id/sync", earningsHandlers.SyncAccountHandler())
			accountsGroup.GET("/:account_id/earnings", earningsHandlers.GetEarningsHandler())
		}

		// Internal routes (sync sweep, also driven by the cron schedule)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth())
		{
			internal.POST("/sync", earningsHandlers.SyncAllHandler())
		}
	}
}
