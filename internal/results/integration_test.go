package results

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// requireDocker skips integration tests when -short is set or Docker is unreachable
func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Recover from panics inside testcontainers (e.g. socket not found)
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		cli, err := testcontainers.NewDockerClientWithOpts(context.Background())
		if err != nil {
			return err
		}
		defer cli.Close()
		_, err = cli.Ping(context.Background())
		return err
	}()
	if err != nil {
		t.Skipf("Docker not available: %v", err)
	}
}

func TestMongoStoreIntegration(t *testing.T) {
	requireDocker(t)
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("Failed to start mongo container: %v", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	}()

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	store, err := NewMongoStore(ctx, MongoConfig{URI: uri, Database: "detections_test", Collection: "predictions"})
	if err != nil {
		t.Fatalf("NewMongoStore failed: %v", err)
	}
	defer store.Close(ctx)

	exerciseStore(t, store)
}

func TestPostgresStoreIntegration(t *testing.T) {
	requireDocker(t)
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("detections_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	}()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	store, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgresStore failed: %v", err)
	}
	defer store.Close(ctx)

	exerciseStore(t, store)
}

// exerciseStore checks insert, read back and duplicate rejection against a real backend
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	first := sampleSummary("pred-a")
	second := sampleSummary("pred-b")

	if err := store.Insert(ctx, first); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, second); err != nil {
		t.Fatalf("Insert of second summary failed: %v", err)
	}

	got, err := store.Get(ctx, "pred-a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.OriginalImgPath != first.OriginalImgPath || got.PredictedImgKey != first.PredictedImgKey {
		t.Errorf("Get() = %+v, want %+v", got, first)
	}
	if len(got.Labels) != len(first.Labels) {
		t.Fatalf("got %d labels, want %d", len(got.Labels), len(first.Labels))
	}
	for i := range first.Labels {
		if got.Labels[i] != first.Labels[i] {
			t.Errorf("label %d = %+v, want %+v", i, got.Labels[i], first.Labels[i])
		}
	}
	if !got.Time.Equal(first.Time) {
		t.Errorf("Time = %v, want %v", got.Time, first.Time)
	}

	if err := store.Insert(ctx, sampleSummary("pred-a")); err == nil {
		t.Error("expected duplicate prediction id to be rejected")
	}

	if _, err := store.Get(ctx, "does-not-exist"); !errors.Is(err, ErrSummaryNotFound) {
		t.Errorf("expected ErrSummaryNotFound, got %v", err)
	}
}
