package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/solacepv/qapflow/internal/config"
	"github.com/solacepv/qapflow/internal/middleware"
	qapentity "github.com/solacepv/qapflow/internal/qap/entity"
	qaphandler "github.com/solacepv/qapflow/internal/qap/handler"
	qaprepository "github.com/solacepv/qapflow/internal/qap/repository"
	qapservice "github.com/solacepv/qapflow/internal/qap/service"
	salesentity "github.com/solacepv/qapflow/internal/sales/entity"
	saleshandler "github.com/solacepv/qapflow/internal/sales/handler"
	salesrepository "github.com/solacepv/qapflow/internal/sales/repository"
	salesservice "github.com/solacepv/qapflow/internal/sales/service"
	"github.com/solacepv/qapflow/pkg/metrics"
)

// Set via -ldflags at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting qapflow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	db, err := initDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := autoMigrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	redisClient := initRedis(cfg.Redis, logger)
	minioClient := initMinio(cfg.MinIO, logger)

	qapRepos := qaprepository.NewRepositories(db)
	salesRepos := salesrepository.NewRepositories(db)

	qapServices := qapservice.NewServices(db, qapRepos, cfg, redisClient, minioClient, logger)
	salesService := salesservice.NewSalesService(salesRepos, redisClient, logger)
	qapServices.QAP.SetSalesLinker(salesService)

	if err := seedAll(qapServices, salesService, qapRepos, logger); err != nil {
		logger.Fatal("failed to seed database", zap.Error(err))
	}
	if err := qapServices.Attachment.EnsureBucket(context.Background()); err != nil {
		logger.Warn("failed to ensure attachment bucket", zap.Error(err))
	}

	router := setupRouter(cfg, qapServices, salesService, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

func initDB(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	logger.Info("database connected",
		zap.String("host", cfg.Host),
		zap.String("dbname", cfg.DBName))
	return db, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&qapentity.User{},
		&qapentity.QAP{},
		&qapentity.SpecificationItem{},
		&qapentity.LevelResponse{},
		&qapentity.TimelineEntry{},
		&qapentity.SpecCatalogItem{},
		&salesentity.SalesRequest{},
		&salesentity.BOMComponent{},
	)
}

// initRedis returns nil when Redis is unreachable: caching degrades, the
// workflow keeps working.
func initRedis(cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	if cfg.Host == "" {
		logger.Info("redis not configured, caching disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, caching disabled", zap.Error(err))
		return nil
	}
	logger.Info("redis connected", zap.String("host", cfg.Host))
	return client
}

// initMinio returns nil when object storage is not configured; attachment
// endpoints then report it as unavailable.
func initMinio(cfg config.MinIOConfig, logger *zap.Logger) *minio.Client {
	if cfg.Endpoint == "" {
		logger.Info("minio not configured, attachments disabled")
		return nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		logger.Warn("minio init failed, attachments disabled", zap.Error(err))
		return nil
	}
	logger.Info("minio connected", zap.String("endpoint", cfg.Endpoint))
	return client
}

func setupRouter(cfg *config.Config, qapServices *qapservice.Services, salesService *salesservice.SalesService, logger *zap.Logger) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": Version, "build_time": BuildTime})
	})
	r.GET("/metrics", metrics.Handler())

	handlers := qaphandler.NewHandlers(qapServices)
	salesHandler := saleshandler.NewSalesHandler(salesService)

	api := r.Group("/api/v1")
	api.POST("/auth/login", handlers.Auth.Login)

	authed := api.Group("", middleware.JWTAuth(cfg.JWT.Secret))
	{
		qaps := authed.Group("/qaps")
		{
			qaps.POST("", handlers.QAP.Create)
			qaps.GET("", handlers.QAP.List)
			qaps.GET("/for-review", handlers.QAP.ListForReview)
			qaps.GET("/:id", handlers.QAP.Get)
			qaps.DELETE("/:id", middleware.RequireRole(qapentity.RoleAdmin), handlers.QAP.Delete)
			qaps.POST("/:id/share", handlers.QAP.Share)

			qaps.POST("/:id/levels/:level/response", handlers.Review.SubmitLevelResponse)
			qaps.POST("/:id/final-comments", handlers.Review.SubmitFinalComments)
			qaps.POST("/:id/approve", handlers.Review.Approve)
			qaps.POST("/:id/reject", handlers.Review.Reject)
		}

		authed.POST("/uploads", handlers.Upload.Upload)

		sales := authed.Group("/sales-requests")
		{
			sales.POST("", salesHandler.Create)
			sales.GET("", salesHandler.List)
			sales.GET("/:id", salesHandler.Get)
			sales.POST("/:id/submit", salesHandler.Submit)
		}
		authed.GET("/bom/options", salesHandler.BOMOptions)
	}

	return r
}
