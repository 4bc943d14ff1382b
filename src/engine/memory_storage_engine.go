package engine

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"schemabench/src/models"
)

// MemoryStorageEngine is an in-process DocumentStore. It interprets the
// subset of MongoDB filters, update operators and aggregation stages the
// schema variants use. Documents keep insertion order, and nothing survives
// the process.
type MemoryStorageEngine struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
	logger      *zap.SugaredLogger
}

type memoryCollection struct {
	name      string
	documents []bson.M
	// ids maps the canonical key of each _id to the document's position.
	// Documents are never removed one at a time, so positions are stable.
	ids map[string]int
}

func newMemoryCollection(name string) *memoryCollection {
	return &memoryCollection{
		name: name,
		ids:  make(map[string]int),
	}
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore(logger *zap.SugaredLogger) *MemoryStorageEngine {
	return &MemoryStorageEngine{
		collections: make(map[string]*memoryCollection),
		logger:      logger,
	}
}

func (m *MemoryStorageEngine) DropCollection(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: dropping collection %s: %w", ErrStoreOperation, name, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.collections[name]; exists {
		delete(m.collections, name)
		m.logger.Infof("Dropped collection: %s", name)
	}
	return nil
}

func (m *MemoryStorageEngine) CreateCollection(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: creating collection %s: %w", ErrStoreOperation, name, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.collections[name]; exists {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}
	m.collections[name] = newMemoryCollection(name)
	return nil
}

// collection returns the named collection, creating it the way an implicit
// insert does in MongoDB. Callers hold m.mu.
func (m *MemoryStorageEngine) collection(name string) *memoryCollection {
	coll, exists := m.collections[name]
	if !exists {
		coll = newMemoryCollection(name)
		m.collections[name] = coll
	}
	return coll
}

func (m *MemoryStorageEngine) InsertOne(ctx context.Context, collection string, document interface{}) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: inserting into %s: %w", ErrStoreOperation, collection, err)
	}
	doc, err := normalizeDocument(document)
	if err != nil {
		return fmt.Errorf("inserting into %s: %w", collection, err)
	}
	id, ok := doc["_id"]
	if !ok {
		return fmt.Errorf("%w: inserting into %s: document has no _id", ErrStoreOperation, collection)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	coll := m.collection(collection)
	key := canonicalKey(id)
	if _, taken := coll.ids[key]; taken {
		return fmt.Errorf("%w: collection %s, _id %s", ErrDuplicateKey, collection, key)
	}
	coll.ids[key] = len(coll.documents)
	coll.documents = append(coll.documents, doc)
	return nil
}

func (m *MemoryStorageEngine) UpdateOne(ctx context.Context, collection string, filter, update interface{}) (models.UpdateResult, error) {
	return m.update(ctx, collection, filter, update, nil, false)
}

func (m *MemoryStorageEngine) UpdateMany(ctx context.Context, collection string, filter, update interface{}, arrayFilters ...interface{}) (models.UpdateResult, error) {
	return m.update(ctx, collection, filter, update, arrayFilters, true)
}

// update applies the change to a copy of each matching document and swaps it
// in only on success, so a failing update leaves the document untouched. The
// copy shares every top-level field the update does not write.
func (m *MemoryStorageEngine) update(ctx context.Context, collection string, filter, update interface{}, arrayFilters []interface{}, many bool) (models.UpdateResult, error) {
	var result models.UpdateResult
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("%w: updating %s: %w", ErrStoreOperation, collection, err)
	}

	filterDoc, err := normalizeDocument(filter)
	if err != nil {
		return result, fmt.Errorf("updating %s: %w", collection, err)
	}
	updateDoc, err := normalizeDocument(update)
	if err != nil {
		return result, fmt.Errorf("updating %s: %w", collection, err)
	}
	filters, err := parseArrayFilters(arrayFilters)
	if err != nil {
		return result, fmt.Errorf("updating %s: %w", collection, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	coll, exists := m.collections[collection]
	if !exists {
		return result, nil
	}

	for _, i := range coll.candidates(filterDoc) {
		doc := coll.documents[i]
		matched, err := matchDocument(doc, filterDoc)
		if err != nil {
			return result, fmt.Errorf("updating %s: %w", collection, err)
		}
		if !matched {
			continue
		}
		result.Matched++

		clone := cloneForUpdate(doc, updateDoc)
		changed, err := applyUpdate(clone, updateDoc, filters)
		if err != nil {
			return result, fmt.Errorf("updating %s: %w", collection, err)
		}
		if changed {
			coll.documents[i] = clone
			result.Modified++
		}
		if !many {
			break
		}
	}
	return result, nil
}

// candidates returns the positions a filter can match. A filter that is
// exactly {_id: value} goes through the _id index; anything else scans.
func (c *memoryCollection) candidates(filter bson.M) []int {
	if id, ok := filter["_id"]; ok && len(filter) == 1 {
		switch id.(type) {
		case bson.M, bson.A:
		default:
			if pos, found := c.ids[canonicalKey(id)]; found {
				return []int{pos}
			}
			return nil
		}
	}
	positions := make([]int, len(c.documents))
	for i := range positions {
		positions[i] = i
	}
	return positions
}

// cloneForUpdate copies doc shallowly and deep-copies only the top-level
// fields update writes into. A top-level $push needs no copy because pushAt
// always builds a new array.
func cloneForUpdate(doc, update bson.M) bson.M {
	clone := make(bson.M, len(doc))
	for k, v := range doc {
		clone[k] = v
	}
	for op, arg := range update {
		fields, ok := arg.(bson.M)
		if !ok {
			continue
		}
		for path := range fields {
			segments := splitPath(path)
			if op == "$push" && len(segments) == 1 {
				continue
			}
			if v, exists := doc[segments[0]]; exists {
				clone[segments[0]] = deepCopy(v)
			}
		}
	}
	return clone
}

func (m *MemoryStorageEngine) Aggregate(ctx context.Context, collection string, pipeline []bson.D) ([]bson.M, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: aggregating %s: %w", ErrStoreOperation, collection, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.snapshot(collection)
	resolve := func(name string) []bson.M {
		if coll, exists := m.collections[name]; exists {
			return coll.documents
		}
		return nil
	}

	results, err := executePipeline(docs, pipeline, resolve)
	if err != nil {
		return nil, fmt.Errorf("aggregating %s: %w", collection, err)
	}
	return results, nil
}

func (m *MemoryStorageEngine) AggregateInto(ctx context.Context, collection string, pipeline []bson.D, results interface{}) error {
	documents, err := m.Aggregate(ctx, collection, pipeline)
	if err != nil {
		return err
	}
	if err := decodeInto(documents, results); err != nil {
		return fmt.Errorf("aggregating %s: %w", collection, err)
	}
	return nil
}

// snapshot copies every document of a collection. Callers hold m.mu.
func (m *MemoryStorageEngine) snapshot(name string) []bson.M {
	coll, exists := m.collections[name]
	if !exists {
		return []bson.M{}
	}
	docs := make([]bson.M, len(coll.documents))
	for i, doc := range coll.documents {
		docs[i] = copyDocument(doc)
	}
	return docs
}

func (m *MemoryStorageEngine) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections = make(map[string]*memoryCollection)
	m.logger.Info("Memory store closed")
	return nil
}
