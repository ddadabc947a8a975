package repo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/strathmore/pipescore/pkg/errors"
	"github.com/strathmore/pipescore/pkg/score"
)

// MongoConfig configures the MongoDB store backend.
type MongoConfig struct {
	URI        string // e.g. "mongodb://localhost:27017"
	Database   string // defaults to "pipescore"
	Collection string // defaults to "documents"
}

// MongoStore persists score documents in a MongoDB collection, one BSON
// document per score, keyed by the score's id. Change notifications are
// process-local: cross-instance coordination is the deployment's
// concern, not the repository's.
type MongoStore struct {
	client  *mongo.Client
	col     *mongo.Collection
	changes chan ChangeNotification
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Database == "" {
		cfg.Database = "pipescore"
	}
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "ping mongodb")
	}

	return &MongoStore{
		client:  client,
		col:     client.Database(cfg.Database).Collection(cfg.Collection),
		changes: make(chan ChangeNotification, changeBuffer),
	}, nil
}

// LoadDocument retrieves a document by id.
func (s *MongoStore) LoadDocument(ctx context.Context, id string) (*score.Document, error) {
	var doc score.Document
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, errors.NewEntity(errors.ErrCodeDocumentNotFound, id, "document not found")
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "load document %s", id)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SaveDocument upserts a document after validating it.
func (s *MongoStore) SaveDocument(ctx context.Context, doc *score.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "save document %s", doc.ID)
	}
	return nil
}

// DeleteDocument removes a document.
func (s *MongoStore) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "delete document %s", id)
	}
	return nil
}

// Changes returns the process-local notification stream.
func (s *MongoStore) Changes() <-chan ChangeNotification { return s.changes }

// NotifyChange publishes a change notification.
func (s *MongoStore) NotifyChange(ctx context.Context, n ChangeNotification) error {
	select {
	case s.changes <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from MongoDB and closes the notification stream.
func (s *MongoStore) Close(ctx context.Context) error {
	close(s.changes)
	return s.client.Disconnect(ctx)
}

// Ensure MongoStore implements Store.
var _ Store = (*MongoStore)(nil)
