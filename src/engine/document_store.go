package engine

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"schemabench/src/models"
)

var (
	// ErrStoreConnection is returned when the store cannot be reached at startup.
	ErrStoreConnection = errors.New("store connection error")

	// ErrStoreOperation wraps every failed drop, create, insert, update or aggregate.
	ErrStoreOperation = errors.New("store operation error")

	// ErrUnsupportedOperator is returned by the memory engine for operators it
	// does not interpret.
	ErrUnsupportedOperator = fmt.Errorf("%w: unsupported operator", ErrStoreOperation)

	// ErrCollectionExists is returned when creating a collection that already exists.
	ErrCollectionExists = fmt.Errorf("%w: collection already exists", ErrStoreOperation)

	// ErrDuplicateKey is returned when inserting a document whose _id is taken.
	ErrDuplicateKey = fmt.Errorf("%w: duplicate key", ErrStoreOperation)
)

// DocumentStore is the document database the schema variants run against.
// Filters, updates and pipeline stages use MongoDB query syntax (bson.D or
// bson.M). Identifiers are supplied by the caller in _id.
type DocumentStore interface {
	DropCollection(ctx context.Context, name string) error
	CreateCollection(ctx context.Context, name string) error

	InsertOne(ctx context.Context, collection string, document interface{}) error

	UpdateOne(ctx context.Context, collection string, filter, update interface{}) (models.UpdateResult, error)
	// UpdateMany applies update to every matching document. arrayFilters bind
	// the $[identifier] placeholders used in update paths.
	UpdateMany(ctx context.Context, collection string, filter, update interface{}, arrayFilters ...interface{}) (models.UpdateResult, error)

	// Aggregate runs pipeline and returns every result document. The result
	// is fully materialized when Aggregate returns.
	Aggregate(ctx context.Context, collection string, pipeline []bson.D) ([]bson.M, error)
	// AggregateInto runs pipeline and decodes every result document straight
	// into results, which must be a pointer to a slice.
	AggregateInto(ctx context.Context, collection string, pipeline []bson.D, results interface{}) error

	Close(ctx context.Context) error
}
