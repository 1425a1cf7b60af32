package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"companydir/internal/config"
)

// NewMongo connects to MongoDB and verifies the primary is reachable.
// The caller owns the client and must Disconnect it.
func NewMongo(ctx context.Context, c config.MongoConfig, timeout time.Duration) (*mongo.Client, error) {
	if c.URI == "" {
		return nil, fmt.Errorf("invalid mongo config: uri is required")
	}
	if c.Database == "" || c.Collection == "" {
		return nil, fmt.Errorf("invalid mongo config: database and collection are required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	opts := options.Client().
		ApplyURI(c.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, nil
}
