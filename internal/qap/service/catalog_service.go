package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/solacepv/qapflow/internal/qap/entity"
	"github.com/solacepv/qapflow/internal/qap/repository"
)

const catalogCacheTTL = time.Hour

// CatalogService serves the versioned checkpoint catalog with a Redis
// cache in front. The catalog is read on every QAP creation and changes
// only on deploys, so cache-aside with a modest TTL is enough.
type CatalogService struct {
	repo    *repository.CatalogRepository
	redis   *redis.Client
	version string
	logger  *zap.Logger
}

func NewCatalogService(repo *repository.CatalogRepository, redisClient *redis.Client, version string, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		repo:    repo,
		redis:   redisClient,
		version: version,
		logger:  logger,
	}
}

func (s *CatalogService) cacheKey() string {
	return fmt.Sprintf("qap:spec_catalog:%s", s.version)
}

// Items returns the active catalog version's checkpoints, ordered by kind
// then seq. Cache failures fall through to the database.
func (s *CatalogService) Items(ctx context.Context) ([]entity.SpecCatalogItem, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, s.cacheKey()).Result()
		if err == nil {
			var items []entity.SpecCatalogItem
			if err := json.Unmarshal([]byte(cached), &items); err == nil {
				return items, nil
			}
		}
	}

	items, err := s.repo.FindByVersion(ctx, s.version)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(items); err == nil {
			if err := s.redis.Set(ctx, s.cacheKey(), data, catalogCacheTTL).Err(); err != nil {
				s.logger.Warn("failed to cache spec catalog", zap.Error(err))
			}
		}
	}
	return items, nil
}

// Seed inserts the catalog rows once. A non-empty version is left alone so
// restarts never duplicate or reorder checkpoints.
func (s *CatalogService) Seed(ctx context.Context, items []entity.SpecCatalogItem) error {
	count, err := s.repo.CountByVersion(ctx, s.version)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if err := s.repo.CreateBatch(ctx, items); err != nil {
		return err
	}
	s.logger.Info("seeded spec catalog",
		zap.String("version", s.version),
		zap.Int("items", len(items)))
	return s.Invalidate(ctx)
}

// Invalidate drops the cached catalog.
func (s *CatalogService) Invalidate(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, s.cacheKey()).Err()
}
