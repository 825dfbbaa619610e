package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStore implements ObjectStore on a local directory, one subdirectory per bucket.
// It is used for development and tests in place of S3.
type FilesystemStore struct {
	baseDir string
	bucket  string
}

// NewFilesystemStore creates a filesystem object store rooted at baseDir/bucket
func NewFilesystemStore(baseDir, bucket string) (*FilesystemStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	root := filepath.Join(baseDir, bucket)
	// Ensure bucket directory exists
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create bucket directory: %w", err)
	}

	return &FilesystemStore{
		baseDir: root,
		bucket:  bucket,
	}, nil
}

// Bucket returns the bucket name
func (fs *FilesystemStore) Bucket() string {
	return fs.bucket
}

// resolve maps a key to a path inside the bucket directory
func (fs *FilesystemStore) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("invalid key: empty")
	}
	path := filepath.Join(fs.baseDir, filepath.FromSlash(key))

	// Security: prevent directory traversal
	root := filepath.Clean(fs.baseDir) + string(filepath.Separator)
	if !strings.HasPrefix(filepath.Clean(path), root) {
		return "", fmt.Errorf("invalid key: path traversal detected")
	}
	return path, nil
}

// Upload copies localPath into the bucket under key
func (fs *FilesystemStore) Upload(ctx context.Context, localPath, key string) error {
	dst, err := fs.resolve(key)
	if err != nil {
		return err
	}
	if err := copyFile(localPath, dst); err != nil {
		return fmt.Errorf("failed to upload %s to %s/%s: %w", localPath, fs.bucket, key, err)
	}
	return nil
}

// Download copies the object at key to localPath
func (fs *FilesystemStore) Download(ctx context.Context, key, localPath string) error {
	src, err := fs.resolve(key)
	if err != nil {
		return err
	}
	if err := copyFile(src, localPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("object not found: %s/%s", fs.bucket, key)
		}
		return fmt.Errorf("failed to download %s/%s: %w", fs.bucket, key, err)
	}
	return nil
}

// GetReader returns a reader for the object at the given key
func (fs *FilesystemStore) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := fs.resolve(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
