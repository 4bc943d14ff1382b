package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.uber.org/zap"

	"schemabench/src/models"
)

// MongoStorageEngine runs every operation against one database of a MongoDB
// deployment. The client is opened once per process and closed by Close.
type MongoStorageEngine struct {
	client   *mongo.Client
	database *mongo.Database
	logger   *zap.SugaredLogger
}

// NewMongoStore connects to uri and pings the primary. Any failure is an
// ErrStoreConnection; there is no retry. Errors and logs name the hosts and
// the database, never the URI, which may carry credentials.
func NewMongoStore(ctx context.Context, uri, databaseName string, timeout time.Duration, logger *zap.SugaredLogger) (*MongoStorageEngine, error) {
	hosts := redactedHosts(uri)
	clientOptions := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to %s: %w", ErrStoreConnection, hosts, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: pinging %s: %w", ErrStoreConnection, hosts, err)
	}

	logger.Infow("Connected to MongoDB", "hosts", hosts, "database", databaseName)

	return &MongoStorageEngine{
		client:   client,
		database: client.Database(databaseName),
		logger:   logger,
	}, nil
}

// redactedHosts returns the host list of a connection string without the
// user information and options.
func redactedHosts(uri string) string {
	cs, err := connstring.Parse(uri)
	if err != nil || len(cs.Hosts) == 0 {
		return "<unparsable uri>"
	}
	return strings.Join(cs.Hosts, ",")
}

func (m *MongoStorageEngine) DropCollection(ctx context.Context, name string) error {
	if err := m.database.Collection(name).Drop(ctx); err != nil {
		return fmt.Errorf("%w: dropping collection %s: %w", ErrStoreOperation, name, err)
	}
	m.logger.Infof("Dropped collection: %s", name)
	return nil
}

func (m *MongoStorageEngine) CreateCollection(ctx context.Context, name string) error {
	if err := m.database.CreateCollection(ctx, name); err != nil {
		return fmt.Errorf("%w: creating collection %s: %w", ErrStoreOperation, name, err)
	}
	return nil
}

func (m *MongoStorageEngine) InsertOne(ctx context.Context, collection string, document interface{}) error {
	if _, err := m.database.Collection(collection).InsertOne(ctx, document); err != nil {
		return fmt.Errorf("%w: inserting into %s: %w", ErrStoreOperation, collection, err)
	}
	return nil
}

func (m *MongoStorageEngine) UpdateOne(ctx context.Context, collection string, filter, update interface{}) (models.UpdateResult, error) {
	res, err := m.database.Collection(collection).UpdateOne(ctx, filter, update)
	if err != nil {
		return models.UpdateResult{}, fmt.Errorf("%w: updating one in %s: %w", ErrStoreOperation, collection, err)
	}
	return models.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (m *MongoStorageEngine) UpdateMany(ctx context.Context, collection string, filter, update interface{}, arrayFilters ...interface{}) (models.UpdateResult, error) {
	opts := options.Update()
	if len(arrayFilters) > 0 {
		opts.SetArrayFilters(options.ArrayFilters{Filters: arrayFilters})
	}

	res, err := m.database.Collection(collection).UpdateMany(ctx, filter, update, opts)
	if err != nil {
		return models.UpdateResult{}, fmt.Errorf("%w: updating many in %s: %w", ErrStoreOperation, collection, err)
	}
	return models.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (m *MongoStorageEngine) Aggregate(ctx context.Context, collection string, pipeline []bson.D) ([]bson.M, error) {
	var results []bson.M
	if err := m.AggregateInto(ctx, collection, pipeline, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// AggregateInto drains the cursor before returning so callers time the whole
// query. Rows are decoded once, by the cursor.
func (m *MongoStorageEngine) AggregateInto(ctx context.Context, collection string, pipeline []bson.D, results interface{}) error {
	cursor, err := m.database.Collection(collection).Aggregate(ctx, mongo.Pipeline(pipeline))
	if err != nil {
		return fmt.Errorf("%w: aggregating %s: %w", ErrStoreOperation, collection, err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, results); err != nil {
		return fmt.Errorf("%w: reading aggregation results from %s: %w", ErrStoreOperation, collection, err)
	}
	return nil
}

func (m *MongoStorageEngine) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("%w: disconnecting: %w", ErrStoreOperation, err)
	}
	m.logger.Info("Disconnected from MongoDB")
	return nil
}
