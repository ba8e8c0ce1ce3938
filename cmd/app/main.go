package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "pocketlegal-backend/docs"
	"pocketlegal-backend/internal/common/cache"
	"pocketlegal-backend/internal/common/config"
	"pocketlegal-backend/internal/common/logger"
	"pocketlegal-backend/internal/common/middleware"
	contentHTTP "pocketlegal-backend/internal/features/content/delivery/http"
	contentRepo "pocketlegal-backend/internal/features/content/repository/postgres"
	contentService "pocketlegal-backend/internal/features/content/service"
	documentHTTP "pocketlegal-backend/internal/features/document/delivery/http"
	documentRepo "pocketlegal-backend/internal/features/document/repository/postgres"
	documentService "pocketlegal-backend/internal/features/document/service"
	paymentHTTP "pocketlegal-backend/internal/features/payment/delivery/http"
	paymentPG "pocketlegal-backend/internal/features/payment/repository/postgres"
	paymentRedis "pocketlegal-backend/internal/features/payment/repository/redis"
	paymentService "pocketlegal-backend/internal/features/payment/service"
	userHTTP "pocketlegal-backend/internal/features/user/delivery/http"
	userRepo "pocketlegal-backend/internal/features/user/repository/postgres"
	userService "pocketlegal-backend/internal/features/user/service"
	authHTTP "pocketlegal-backend/internal/features/walletauth/delivery/http"
	authMiddleware "pocketlegal-backend/internal/features/walletauth/middleware"
	authRepo "pocketlegal-backend/internal/features/walletauth/repository/redis"
	authService "pocketlegal-backend/internal/features/walletauth/service"
	"pocketlegal-backend/internal/platform/gemini"
	"pocketlegal-backend/internal/platform/postgres"
	"pocketlegal-backend/internal/platform/redis"
	"pocketlegal-backend/internal/platform/wallet"
	"pocketlegal-backend/internal/workers"
)

// @title           PocketLegal API
// @version         1.0
// @description     Wallet-gated legal content backend: micro-payments in USDC unlock rights cards, guides and document templates.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Session token issued by /auth/verify, passed as "Bearer <token>"

// @tag.name auth
// @tag.description Wallet sign-in with a signed nonce

// @tag.name users
// @tag.description User profile

// @tag.name content
// @tag.description Legal content catalog and document templates

// @tag.name purchases
// @tag.description Purchase flow, access grants and transaction history

// @tag.name documents
// @tag.description Document drafting from purchased templates

func main() {
	cfg := config.Load()

	logger.Init("pocketlegal-backend", cfg.Debug)
	logger.Info().Bool("debug", cfg.Debug).Msg("starting pocketlegal backend")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	postgresClient, err := postgres.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer postgresClient.Close()

	redisClient, err := redis.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	cacheService := cache.NewService(redisClient)

	geminiClient, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create gemini client")
	}
	defer geminiClient.Close()

	walletClient := wallet.NewHTTPClient(
		cfg.Chain.RPCURL,
		cfg.Facilitator.BaseURL,
		cfg.Facilitator.APIToken,
		cfg.Chain.USDCContract,
		cfg.Chain.Confirmations,
	)

	db := postgresClient.GetDB()

	userRepository := userRepo.NewPostgresRepository(db)
	contentRepository := contentRepo.NewPostgresRepository(db)
	transactionRepository := paymentPG.NewTransactionRepository(db)
	grantRepository := paymentPG.NewGrantRepository(db)
	sessionRepository := paymentRedis.NewSessionRepository(redisClient)
	documentRepository := documentRepo.NewDocumentRepository(db)
	authRepository := authRepo.NewRedisRepository(redisClient)

	userSvc := userService.NewUserService(userRepository)
	authSvc := authService.NewService(authRepository, userSvc, cfg.Auth.NonceTTL, cfg.Auth.SessionTTL)
	contentSvc := contentService.NewContentService(contentRepository, cacheService)
	paymentSvc := paymentService.NewPaymentService(
		transactionRepository,
		grantRepository,
		sessionRepository,
		walletClient,
		contentSvc,
		paymentService.Options{
			RecipientAddress: cfg.Chain.RecipientAddress,
			SubmitTimeout:    cfg.Chain.SubmitTimeout,
		},
	)
	documentSvc := documentService.NewDocumentService(documentRepository, contentSvc, paymentSvc, geminiClient)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept"}
	router.Use(cors.New(corsConfig))

	requireSession := authMiddleware.RequireSession(authSvc)

	v1 := router.Group("/api/v1")
	authHTTP.NewAuthHandler(authSvc).RegisterRoutes(v1)
	userHTTP.NewUserHandler(userSvc).RegisterRoutes(v1, requireSession)
	contentHTTP.NewContentHandler(contentSvc, paymentSvc).RegisterRoutes(v1, requireSession)
	paymentHTTP.NewPaymentHandler(paymentSvc).RegisterRoutes(v1, requireSession)
	documentHTTP.NewDocumentHandler(documentSvc).RegisterRoutes(v1, requireSession)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	registerProbes(router, postgresClient, redisClient)

	reconciler := workers.NewReconciler(paymentSvc, cfg.Reconciler.Interval, cfg.Reconciler.AbandonAfter)
	go reconciler.Start(ctx)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		os.Exit(1)
	}

	logger.Info().Msg("server exited")
}

func registerProbes(router *gin.Engine, pg *postgres.Client, rdb *redis.Client) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "pocketlegal-backend",
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := pg.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready", "error": "postgres unavailable"})
			return
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready", "error": "redis unavailable"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
		})
	})
}
