package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civitas-labs/issue-relay/internal/accounts"
	"github.com/civitas-labs/issue-relay/internal/auth"
	"github.com/civitas-labs/issue-relay/internal/avatar"
	"github.com/civitas-labs/issue-relay/internal/cleanup"
	"github.com/civitas-labs/issue-relay/internal/config"
	"github.com/civitas-labs/issue-relay/internal/httperr"
	"github.com/civitas-labs/issue-relay/internal/logger"
	"github.com/civitas-labs/issue-relay/internal/metrics"
	"github.com/civitas-labs/issue-relay/internal/platform"
	"github.com/civitas-labs/issue-relay/internal/report"
	"github.com/civitas-labs/issue-relay/internal/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig
	cfg.RequirePlatform()

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))

	gin.SetMode(cfg.GinMode)

	platformClient := platform.NewClient(cfg.PlatformURL, cfg.PlatformAnonKey, cfg.PlatformServiceKey)

	tokenValidator, err := newTokenValidator(cfg, platformClient)
	if err != nil {
		log.Error("failed to initialize token validator", slog.String("error", err.Error()))
		os.Exit(1)
	}
	authMiddleware := auth.NewMiddleware(tokenValidator)

	uploads, err := storage.NewS3(context.Background(), storage.S3Configuration{
		Endpoint:      cfg.StorageEndpoint,
		Region:        cfg.StorageRegion,
		BucketName:    cfg.StorageBucket,
		AccessID:      cfg.StorageAccessID,
		AccessKey:     cfg.StorageAccessKey,
		PublicBaseURL: cfg.PlatformURL + "/storage/v1/object/public",
	})
	if err != nil {
		log.Error("failed to initialize object storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	avatars, err := storage.NewS3(context.Background(), storage.S3Configuration{
		Endpoint:      cfg.StorageEndpoint,
		Region:        cfg.StorageRegion,
		BucketName:    cfg.AvatarBucket,
		AccessID:      cfg.StorageAccessID,
		AccessKey:     cfg.StorageAccessKey,
		PublicBaseURL: cfg.PlatformURL + "/storage/v1/object/public",
	})
	if err != nil {
		log.Error("failed to initialize avatar storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	reportService := report.NewService(platformClient, uploads, log)
	reportHandler := report.NewHandler(reportService, cfg.UploadTmpDir, log)
	accountsHandler := accounts.NewHandler(platformClient, log)
	avatarHandler := avatar.NewHandler(avatars, log)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	sweeper := cleanup.NewSweeper(uploads, platformClient, cfg.CleanupGrace, log)
	if _, err := sweeper.Schedule(sweepCtx, cfg.CleanupSchedule); err != nil {
		log.Error("failed to schedule cleanup sweep", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.CleanupSchedule != "" {
		log.Info("orphan sweep scheduled", slog.String("schedule", cfg.CleanupSchedule))
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxUploadBytes
	router.Use(gin.Recovery())
	router.Use(metrics.RequestTimer())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization"},
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())

	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/signup", accountsHandler.SignUp)
		authGroup.POST("/signin", accountsHandler.SignIn)
	}

	protected := router.Group("/api")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.POST("/upload", reportHandler.Upload)
		protected.GET("/messages", reportHandler.ListMessages)
		protected.GET("/avatar", avatarHandler.GetSignedURL)
	}

	// JSON 404 handler, after all routes.
	router.NoRoute(func(c *gin.Context) {
		httperr.NotFound(c, "Route not found")
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("upload relay listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("server exited")
}

// newTokenValidator picks the configured validation strategy: the
// platform's user-info endpoint, or local JWKS verification.
func newTokenValidator(cfg *config.Config, client *platform.Client) (auth.TokenValidator, error) {
	switch cfg.ValidatorType {
	case "jwks":
		return auth.NewJWTTokenValidator(context.Background(), cfg.JWKSURL)
	default:
		return auth.NewPlatformTokenValidator(client), nil
	}
}
