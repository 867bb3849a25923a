// Package mongo implements the document store on MongoDB. Each model maps to
// a collection named after it; hooks fire in process after a successful
// write, so only writes issued through this store are observed.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docbridge/docbridge/internal/schema"
	"github.com/docbridge/docbridge/internal/store"
)

// Config holds MongoDB connection settings.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Store is a MongoDB-backed document store.
type Store struct {
	client   *mongo.Client
	database string
	timeout  time.Duration

	schemas map[string]schema.Tree
	models  map[string]string // model name -> schema name
	hooks   *store.Hooks
}

// New connects to MongoDB and builds a store over the given schema and model
// declarations.
func New(cfg Config, schemas map[string]schema.Tree, models map[string]string) (*Store, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	for model, schemaName := range models {
		if _, ok := schemas[schemaName]; !ok {
			return nil, fmt.Errorf("model %s references undeclared schema %s", model, schemaName)
		}
	}

	return &Store{
		client:   client,
		database: cfg.Database,
		timeout:  cfg.Timeout,
		schemas:  schemas,
		models:   models,
		hooks:    store.NewHooks(),
	}, nil
}

// Disconnect closes the MongoDB connection.
func (s *Store) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) collection(model string) *mongo.Collection {
	return s.client.Database(s.database).Collection(model)
}

// Schema returns the schema tree declared for a model.
func (s *Store) Schema(model string) (schema.Tree, bool) {
	name, ok := s.models[model]
	if !ok {
		return nil, false
	}
	tree, ok := s.schemas[name]
	return tree, ok
}

// Save upserts a record and fires after-save hooks for its schema.
func (s *Store) Save(ctx context.Context, rec store.Record) (store.Record, error) {
	schemaName, ok := s.models[rec.Model]
	if !ok {
		return store.Record{}, store.ErrUnknownModel
	}
	if rec.ID == "" {
		rec.ID = primitive.NewObjectID().Hex()
	}

	doc := bson.M{}
	for k, v := range rec.Data {
		doc[k] = v
	}
	doc["_id"] = rec.ID

	opts := options.Replace().SetUpsert(true)
	if _, err := s.collection(rec.Model).ReplaceOne(ctx, bson.M{"_id": rec.ID}, doc, opts); err != nil {
		return store.Record{}, fmt.Errorf("failed to save %s/%s: %w", rec.Model, rec.ID, err)
	}

	saved := store.Record{ID: rec.ID, Model: rec.Model, Data: rec.Snapshot()}
	s.hooks.FireSave(schemaName, saved)
	return saved, nil
}

// Remove deletes a record and fires after-remove hooks for its schema.
func (s *Store) Remove(ctx context.Context, model, id string) error {
	schemaName, ok := s.models[model]
	if !ok {
		return store.ErrUnknownModel
	}

	rec, err := s.FetchByID(ctx, model, id)
	if err != nil {
		return err
	}

	result, err := s.collection(model).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to remove %s/%s: %w", model, id, err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}

	s.hooks.FireRemove(schemaName, rec)
	return nil
}

// FetchByID loads a record by model and id.
func (s *Store) FetchByID(ctx context.Context, model, id string) (store.Record, error) {
	if _, ok := s.models[model]; !ok {
		return store.Record{}, store.ErrUnknownModel
	}

	var doc bson.M
	err := s.collection(model).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return store.Record{}, store.ErrNotFound
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("failed to fetch %s/%s: %w", model, id, err)
	}

	return store.Record{ID: id, Model: model, Data: plainData(doc)}, nil
}

// OnAfterSave subscribes to persisted records of the model's schema.
func (s *Store) OnAfterSave(model string, fn store.Hook) (func(), error) {
	schemaName, ok := s.models[model]
	if !ok {
		return nil, store.ErrUnknownModel
	}
	return s.hooks.OnSave(schemaName, fn), nil
}

// OnAfterRemove subscribes to removed records of the model's schema.
func (s *Store) OnAfterRemove(model string, fn store.Hook) (func(), error) {
	schemaName, ok := s.models[model]
	if !ok {
		return nil, store.ErrUnknownModel
	}
	return s.hooks.OnRemove(schemaName, fn), nil
}

// plainData converts a decoded BSON document into a plain map, dropping the
// id field and unwrapping BSON-specific value types.
func plainData(doc bson.M) map[string]interface{} {
	data := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		data[k] = plainValue(v)
	}
	return data
}

func plainValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = plainValue(e)
		}
		return out
	case bson.D:
		// Nested documents decode as bson.D by default.
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = plainValue(e)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time()
	default:
		return v
	}
}
