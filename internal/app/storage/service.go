package storage

import (
	"context"
	"io"
	"time"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// StorageService defines the public interface for the image storage service.
// Message and profile images are uploaded server-side (the client sends them
// inline) and handed back to clients as presigned download URLs.
type StorageService interface {
	// Upload stores an object under the given key and returns the key.
	Upload(ctx context.Context, key string, mimeType string, body io.Reader) (string, error)

	// PresignDownload generates a pre-signed URL for downloading the given key.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the object specified by the given key.
	Delete(ctx context.Context, key string) error
}

// NewStorageService is the factory function for StorageService.
// It initializes and returns a concrete implementation based on the provided configuration.
func NewStorageService(cfg ServiceConfig) (StorageService, error) {
	// Currently, only S3 compatible implementations are supported.
	return newS3Client(cfg)
}
