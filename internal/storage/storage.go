// Package storage defines the blob storage contracts used for profile
// images. Clients either upload through the service (small avatars) or
// receive a presigned URL and upload directly to the store.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage defines the interface for file storage operations.
type Storage interface {
	// Upload stores a file and returns the result with key and URL.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)

	// Delete removes a file by its key.
	Delete(ctx context.Context, key string) error

	// GetURL returns the public URL for the given key.
	GetURL(ctx context.Context, key string) (string, error)
}

// Presigner mints short-lived upload URLs so clients can PUT objects
// directly to the store without routing bytes through the service.
type Presigner interface {
	PresignPut(key, contentType string, ttl time.Duration) (string, error)
}

// UploadInput holds the parameters for uploading a file.
type UploadInput struct {
	Key         string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult holds the result of a successful upload.
type UploadResult struct {
	Key string
	URL string
}
