package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"github.com/solacepv/qapflow/internal/config"
)

// AttachmentService stores final-comments attachments in object storage.
// Object keys are prefixed with a UUID so uploads never collide on filename.
type AttachmentService struct {
	client *minio.Client
	cfg    config.MinIOConfig
	logger *zap.Logger
}

func NewAttachmentService(client *minio.Client, cfg config.MinIOConfig, logger *zap.Logger) *AttachmentService {
	return &AttachmentService{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Upload stores a file and returns its object key and a download URL.
func (s *AttachmentService) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (objectName string, downloadURL string, err error) {
	if s.client == nil {
		return "", "", fmt.Errorf("object storage is not configured")
	}

	safeName := strings.ReplaceAll(filepath.Base(filename), " ", "_")
	objectName = fmt.Sprintf("qap-attachments/%s_%s", uuid.NewString(), safeName)

	_, err = s.client.PutObject(ctx, s.cfg.Bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload attachment: %w", err)
	}

	downloadURL, err = s.DownloadURL(ctx, objectName)
	if err != nil {
		return "", "", err
	}

	s.logger.Info("attachment uploaded",
		zap.String("object", objectName),
		zap.Int64("size", size))
	return objectName, downloadURL, nil
}

// DownloadURL returns a presigned link valid for 24 hours.
func (s *AttachmentService) DownloadURL(ctx context.Context, objectName string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("object storage is not configured")
	}
	u, err := s.client.PresignedGetObject(ctx, s.cfg.Bucket, objectName, 24*time.Hour, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign attachment url: %w", err)
	}
	return u.String(), nil
}

// EnsureBucket creates the attachment bucket on startup when missing.
func (s *AttachmentService) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{})
}
