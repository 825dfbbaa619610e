package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

// S3Config holds connection settings for S3Store
type S3Config struct {
	Bucket string

	// Region is optional when the shared AWS config provides one
	Region string

	// Endpoint overrides the S3 endpoint (MinIO, localstack)
	Endpoint string
}

// S3Store implements ObjectStore on an S3 bucket
type S3Store struct {
	bucket     string
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
}

// NewS3Store creates an S3-backed object store using the default credential chain
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	awsCfg := aws.Config{}
	if cfg.Region != "" {
		awsCfg.Region = aws.String(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            awsCfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Store{
		bucket:     cfg.Bucket,
		uploader:   s3manager.NewUploader(sess),
		downloader: s3manager.NewDownloader(sess),
	}, nil
}

// Bucket returns the bucket name
func (s *S3Store) Bucket() string {
	return s.bucket
}

// Upload stores localPath in the bucket under key
func (s *S3Store) Upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return classifyS3Error(fmt.Sprintf("upload s3://%s/%s", s.bucket, key), err)
	}
	return nil
}

// Download writes the object at key to localPath
func (s *S3Store) Download(ctx context.Context, key, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}

	_, err = s.downloader.DownloadWithContext(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	closeErr := f.Close()
	if err != nil {
		os.Remove(localPath)
		return classifyS3Error(fmt.Sprintf("download s3://%s/%s", s.bucket, key), err)
	}
	return closeErr
}

// credentialCodes are the SDK error codes raised when no usable credentials exist
var credentialCodes = map[string]bool{
	"NoCredentialProviders": true,
	"EnvAccessKeyNotFound":  true,
	"EnvSecretNotFound":     true,
	"SharedCredsLoad":       true,
}

// isCredentialsError walks the awserr chain looking for a credentials failure
func isCredentialsError(err error) bool {
	for err != nil {
		aerr, ok := err.(awserr.Error)
		if !ok {
			return false
		}
		if credentialCodes[aerr.Code()] {
			return true
		}
		err = aerr.OrigErr()
	}
	return false
}

func classifyS3Error(op string, err error) error {
	if isCredentialsError(err) {
		return fmt.Errorf("%s: %w: %w", op, detection.ErrCredentialsMissing, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
