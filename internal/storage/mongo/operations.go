package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/storage"
)

// inserter is the collection subset used by OperationLog.
type inserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// Config locates the operations collection.
type Config struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// OperationLog appends strategy operations to a MongoDB collection.
type OperationLog struct {
	client     *mongo.Client
	collection inserter
	now        func() time.Time
}

var _ storage.OperationLog = (*OperationLog)(nil)

// Connect opens the client and verifies the primary is reachable.
func Connect(ctx context.Context, cfg Config) (*OperationLog, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = "manager"
	}
	if cfg.Collection == "" {
		cfg.Collection = "operations"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &OperationLog{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		now:        time.Now,
	}, nil
}

// Close disconnects the client.
func (l *OperationLog) Close(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	return l.client.Disconnect(ctx)
}

// RecordOperation inserts one document per operation.
func (l *OperationLog) RecordOperation(ctx context.Context, kind string, payload map[string]any) error {
	op := storage.NewOperation(kind, payload, l.now())
	doc := bson.D{
		{Key: "kind", Value: op.Kind},
		{Key: "correlation_id", Value: op.CorrelationID},
		{Key: "payload", Value: op.Payload},
		{Key: "recorded_at", Value: op.RecordedAt},
	}
	if _, err := l.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert operation %s: %w", kind, err)
	}
	return nil
}
