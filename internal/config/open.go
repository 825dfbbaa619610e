package config

import (
	"context"
	"fmt"
	"time"

	"github.com/tendant/simple-detection-pipeline/internal/results"
	"github.com/tendant/simple-detection-pipeline/internal/storage"
)

// OpenObjectStore builds the object store selected by c
func OpenObjectStore(c Storage) (storage.ObjectStore, error) {
	switch c.Backend {
	case StorageS3:
		s, err := storage.NewS3Store(storage.S3Config{
			Bucket:   c.Bucket,
			Region:   c.Region,
			Endpoint: c.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case StorageFilesystem:
		s, err := storage.NewFilesystemStore(c.Dir, c.Bucket)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", c.Backend)
}

// OpenResultStore connects to the result store selected by c
func OpenResultStore(ctx context.Context, c Worker) (results.Store, error) {
	switch c.ResultStore {
	case ResultsMongo:
		s, err := results.NewMongoStore(ctx, results.MongoConfig{
			URI:            c.MongoURI,
			Database:       c.MongoDatabase,
			Collection:     c.MongoCollection,
			ConnectTimeout: 10 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case ResultsPostgres:
		s, err := results.NewPostgresStore(ctx, c.PostgresURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ResultsMemory:
		return results.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown result store %q", c.ResultStore)
}
