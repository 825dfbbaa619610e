package config

import "github.com/spf13/pflag"

// BindStorageFlags registers flags that override the loaded storage settings
func BindStorageFlags(f *pflag.FlagSet, s *Storage) {
	f.StringVar(&s.Backend, "storage", s.Backend, "s3 or filesystem (STORAGE_BACKEND)")
	f.StringVar(&s.Bucket, "bucket", s.Bucket, "bucket name (BUCKET_NAME)")
	f.StringVar(&s.Dir, "storage-dir", s.Dir, "filesystem storage root (STORAGE_DIR)")
	f.StringVar(&s.Region, "aws-region", s.Region, "AWS region (AWS_REGION)")
	f.StringVar(&s.Endpoint, "s3-endpoint", s.Endpoint, "S3-compatible endpoint (S3_ENDPOINT)")
}

// BindLoggingFlags registers flags that override the loaded logging settings
func BindLoggingFlags(f *pflag.FlagSet, l *Logging) {
	f.StringVar(&l.Level, "log-level", l.Level, "debug, info, warn or error (LOG_LEVEL)")
	f.StringVar(&l.Format, "log-format", l.Format, "text or json (LOG_FORMAT)")
}
