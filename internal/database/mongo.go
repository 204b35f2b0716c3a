package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/keyxmakerx/gatehouse/internal/config"
)

// NewMongo connects to MongoDB and pings the primary until it answers.
// The returned database is the one named in the URI path.
func NewMongo(cfg config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	client, err := mongo.Connect(ctx, opts)
	cancel()
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	pingErr := withRetry("mongodb", func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	})
	if pingErr != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, pingErr
	}

	return client, client.Database(cfg.DatabaseName()), nil
}

// withRetry pings a dependency with exponential backoff. Containers for the
// store may still be starting when the app launches.
func withRetry(name string, ping func(ctx context.Context) error) error {
	const maxRetries = 10
	backoff := 1 * time.Second
	var pingErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		pingErr = ping(ctx)
		cancel()

		if pingErr == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}

		slog.Warn(name+" not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxRetries),
			slog.Duration("backoff", backoff),
			slog.Any("error", pingErr),
		)
		time.Sleep(backoff)
		backoff = min(backoff*2, 30*time.Second)
	}

	return fmt.Errorf("pinging %s after %d attempts: %w", name, maxRetries, pingErr)
}
