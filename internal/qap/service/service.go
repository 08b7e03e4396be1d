package service

import (
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/solacepv/qapflow/internal/config"
	"github.com/solacepv/qapflow/internal/qap/entity"
	"github.com/solacepv/qapflow/internal/qap/repository"
	"github.com/solacepv/qapflow/internal/qap/workflow"
)

// Services bundles the QAP module's services for wiring into handlers.
type Services struct {
	QAP          *QAPService
	Review       *ReviewService
	Auth         *AuthService
	Catalog      *CatalogService
	Attachment   *AttachmentService
	Notification *NotificationService
}

func NewServices(
	db *gorm.DB,
	repos *repository.Repositories,
	cfg *config.Config,
	redisClient *redis.Client,
	minioClient *minio.Client,
	logger *zap.Logger,
) *Services {
	fastTrack := make([]entity.Plant, 0, len(cfg.Workflow.FastTrackPlants))
	for _, p := range cfg.Workflow.FastTrackPlants {
		fastTrack = append(fastTrack, entity.Plant(p))
	}
	engine := workflow.NewEngine(entity.NewPlantSet(fastTrack...))

	notification := NewNotificationService(cfg, repos.User, logger)
	catalog := NewCatalogService(repos.Catalog, redisClient, cfg.Workflow.CatalogVersion, logger)

	return &Services{
		QAP:          NewQAPService(db, repos, engine, catalog, notification, logger),
		Review:       NewReviewService(db, repos, engine, notification, logger),
		Auth:         NewAuthService(repos.User, cfg.JWT),
		Catalog:      catalog,
		Attachment:   NewAttachmentService(minioClient, cfg.MinIO, logger),
		Notification: notification,
	}
}
