package storage

import "context"

// ObjectStore uploads and downloads named blobs in a single bucket.
// Errors caused by missing credentials wrap detection.ErrCredentialsMissing.
type ObjectStore interface {
	// Upload stores the file at localPath under key
	Upload(ctx context.Context, localPath, key string) error

	// Download writes the object at key to localPath, creating parent directories
	Download(ctx context.Context, key, localPath string) error

	// Bucket returns the bucket name the store operates on
	Bucket() string
}

var (
	_ ObjectStore = (*S3Store)(nil)
	_ ObjectStore = (*FilesystemStore)(nil)
)
