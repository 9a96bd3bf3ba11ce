package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/callistaenterprise/blog-test-aync-processes/logger"
	"github.com/callistaenterprise/blog-test-aync-processes/models"
)

var (
	ErrNotInitialized = errors.New("transactions collection not initialized")
	ErrNotFound       = errors.New("transaction not found")
)

// Mongo is the transaction journal: one document per /dosomething call.
type Mongo struct {
	client       *mongo.Client
	transactions *mongo.Collection
}

// Connect connects to MongoDB, pings, and ensures indexes.
func Connect(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	m := &Mongo{client: client, transactions: client.Database(database).Collection("transactions")}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	logger.Info("mongo initialized", logger.FieldKV("database", database))
	return m, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

// Ping health check.
func (m *Mongo) Ping(ctx context.Context) error {
	if m == nil || m.client == nil {
		return ErrNotInitialized
	}
	return m.client.Ping(ctx, readpref.Primary())
}

// InsertTransaction performs idempotent insert (upsert ignoring duplicates).
func (m *Mongo) InsertTransaction(ctx context.Context, rec models.TransactionRecord) error {
	if m == nil || m.transactions == nil {
		return ErrNotInitialized
	}
	filter := bson.M{"transaction_id": rec.TransactionID}
	update := bson.M{"$setOnInsert": rec}
	_, err := m.transactions.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// GetTransaction returns ErrNotFound when no document matches.
func (m *Mongo) GetTransaction(ctx context.Context, id string) (models.TransactionRecord, error) {
	var rec models.TransactionRecord
	if m == nil || m.transactions == nil {
		return rec, ErrNotInitialized
	}
	err := m.transactions.FindOne(ctx, bson.M{"transaction_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return rec, ErrNotFound
	}
	return rec, err
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.transactions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "transaction_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_transaction_id")},
		{Keys: bson.D{{Key: "trace_id", Value: 1}}, Options: options.Index().SetName("idx_trace_id")},
	})
	return err
}
