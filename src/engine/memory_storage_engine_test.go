package engine

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T) *MemoryStorageEngine {
	t.Helper()
	return NewMemoryStore(zaptest.NewLogger(t).Sugar())
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

type testEmployee struct {
	ID          string    `bson:"_id"`
	FullName    string    `bson:"fullName"`
	DateOfBirth time.Time `bson:"dateOfBirth"`
	Age         int       `bson:"age"`
}

type testCompany struct {
	ID        string         `bson:"_id"`
	Name      string         `bson:"name"`
	Employees []testEmployee `bson:"employees"`
}

func TestMemoryStore_CollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.DropCollection(ctx, "Person"), "dropping a missing collection is a no-op")
	require.NoError(t, store.CreateCollection(ctx, "Person"))
	assert.ErrorIs(t, store.CreateCollection(ctx, "Person"), ErrCollectionExists)
	assert.ErrorIs(t, store.CreateCollection(ctx, "Person"), ErrStoreOperation)

	require.NoError(t, store.InsertOne(ctx, "Person", bson.M{"_id": "p1"}))
	require.NoError(t, store.DropCollection(ctx, "Person"))
	require.NoError(t, store.CreateCollection(ctx, "Person"))

	rows, err := store.Aggregate(ctx, "Person", nil)
	require.NoError(t, err)
	assert.Empty(t, rows, "drop must discard documents")
}

func TestMemoryStore_InsertOne(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.InsertOne(ctx, "Company", testCompany{ID: "c1", Name: "Acme"}))

	err := store.InsertOne(ctx, "Company", bson.D{{Key: "_id", Value: "c1"}})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	err = store.InsertOne(ctx, "Company", bson.M{"name": "no id"})
	assert.ErrorIs(t, err, ErrStoreOperation)

	rows, err := store.Aggregate(ctx, "Company", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Acme", rows[0]["name"])
}

func TestMemoryStore_AggregateReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.InsertOne(ctx, "Company", bson.M{"_id": "c1", "name": "Acme"}))

	rows, err := store.Aggregate(ctx, "Company", nil)
	require.NoError(t, err)
	rows[0]["name"] = "changed"

	rows, err = store.Aggregate(ctx, "Company", nil)
	require.NoError(t, err)
	assert.Equal(t, "Acme", rows[0]["name"])
}

func TestMemoryStore_UpdateCounts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, doc := range []bson.M{
		{"_id": "a", "name": "Acme"},
		{"_id": "b", "name": "Company"},
		{"_id": "c", "name": "Initech"},
	} {
		require.NoError(t, store.InsertOne(ctx, "Company", doc))
	}

	update := bson.D{{Key: "$set", Value: bson.D{{Key: "name", Value: "Company"}}}}

	res, err := store.UpdateMany(ctx, "Company", bson.D{}, update)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Matched)
	assert.Equal(t, int64(2), res.Modified, "a document already holding the value is matched but not modified")

	res, err = store.UpdateMany(ctx, "Company", bson.D{}, update)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Matched)
	assert.Equal(t, int64(0), res.Modified)

	res, err = store.UpdateOne(ctx, "Company", bson.M{"_id": "a"}, bson.M{"$set": bson.M{"name": "Acme"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Matched)
	assert.Equal(t, int64(1), res.Modified)

	res, err = store.UpdateOne(ctx, "Company", bson.M{"_id": "missing"}, bson.M{"$set": bson.M{"name": "x"}})
	require.NoError(t, err)
	assert.Zero(t, res.Matched)

	res, err = store.UpdateMany(ctx, "Unknown", bson.M{}, update)
	require.NoError(t, err)
	assert.Zero(t, res.Matched)
}

func TestMemoryStore_UpdateRejectsUnknownOperator(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.InsertOne(ctx, "Company", bson.M{"_id": "a", "n": 1}))

	_, err := store.UpdateMany(ctx, "Company", bson.M{}, bson.M{"$inc": bson.M{"n": 1}})
	assert.ErrorIs(t, err, ErrUnsupportedOperator)
	assert.ErrorIs(t, err, ErrStoreOperation)
}

func TestMemoryStore_SetNestedPath(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.InsertOne(ctx, "Person", bson.M{
		"_id":     "p1",
		"company": bson.M{"_id": "c1", "name": "Acme", "domain": "acme.com"},
	}))

	res, err := store.UpdateMany(ctx, "Person", bson.M{}, bson.M{"$set": bson.M{"company.name": "Company"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Modified)

	rows, err := store.Aggregate(ctx, "Person", nil)
	require.NoError(t, err)
	company := rows[0]["company"].(bson.M)
	assert.Equal(t, "Company", company["name"])
	assert.Equal(t, "acme.com", company["domain"], "sibling fields are untouched")
}

func TestMemoryStore_ExprYearFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, p := range []testEmployee{
		{ID: "old", DateOfBirth: date(1970, 5, 1), Age: 54},
		{ID: "edge", DateOfBirth: date(1987, 12, 31), Age: 30},
		{ID: "young", DateOfBirth: date(1988, 1, 1), Age: 36},
	} {
		require.NoError(t, store.InsertOne(ctx, "Person", p))
	}

	filter := bson.D{{Key: "$expr", Value: bson.D{{Key: "$lt", Value: bson.A{
		bson.D{{Key: "$year", Value: "$dateOfBirth"}}, 1988,
	}}}}}
	res, err := store.UpdateMany(ctx, "Person", filter, bson.D{{Key: "$set", Value: bson.D{{Key: "age", Value: 30}}}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Matched)
	assert.Equal(t, int64(1), res.Modified)
}

func TestMemoryStore_ArrayFilterUpdate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.InsertOne(ctx, "Company", testCompany{ID: "c1", Name: "Acme", Employees: []testEmployee{
		{ID: "p1", DateOfBirth: date(1960, 1, 1), Age: 64},
		{ID: "p2", DateOfBirth: date(1995, 1, 1), Age: 29},
	}}))
	require.NoError(t, store.InsertOne(ctx, "Company", testCompany{ID: "c2", Name: "Young Co", Employees: []testEmployee{
		{ID: "p3", DateOfBirth: date(2000, 1, 1), Age: 24},
	}}))
	require.NoError(t, store.InsertOne(ctx, "Company", testCompany{ID: "c3", Name: "Empty", Employees: []testEmployee{}}))

	cutoff := date(1988, 1, 1)
	filter := bson.D{{Key: "employees", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
		{Key: "dateOfBirth", Value: bson.D{{Key: "$lt", Value: cutoff}}},
	}}}}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "employees.$[elem].age", Value: 30}}}}
	arrayFilter := bson.D{{Key: "elem.dateOfBirth", Value: bson.D{{Key: "$lt", Value: cutoff}}}}

	res, err := store.UpdateMany(ctx, "Company", filter, update, arrayFilter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Matched, "only companies with a qualifying employee match")
	assert.Equal(t, int64(1), res.Modified)

	res, err = store.UpdateMany(ctx, "Company", filter, update, arrayFilter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Matched)
	assert.Equal(t, int64(0), res.Modified)

	var companies []testCompany
	require.NoError(t, store.AggregateInto(ctx, "Company", []bson.D{{{Key: "$match", Value: bson.M{"_id": "c1"}}}}, &companies))
	require.Len(t, companies, 1)
	assert.Equal(t, 30, companies[0].Employees[0].Age)
	assert.Equal(t, 29, companies[0].Employees[1].Age, "non-qualifying elements keep their value")
}

func TestMemoryStore_ArrayFilterWithoutBinding(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.InsertOne(ctx, "Company", bson.M{"_id": "c1", "employees": bson.A{bson.M{"age": 1}}}))

	_, err := store.UpdateMany(ctx, "Company", bson.M{}, bson.M{"$set": bson.M{"employees.$[elem].age": 30}})
	assert.ErrorIs(t, err, ErrStoreOperation)

	rows, err := store.Aggregate(ctx, "Company", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows[0]["employees"].(bson.A)[0].(bson.M)["age"], "failed updates leave the document unchanged")
}

func TestMemoryStore_Push(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.InsertOne(ctx, "Company", testCompany{ID: "c1", Employees: []testEmployee{}}))

	for _, id := range []string{"p1", "p2"} {
		res, err := store.UpdateOne(ctx, "Company", bson.M{"_id": "c1"},
			bson.M{"$push": bson.M{"employees": testEmployee{ID: id, FullName: "Name " + id}}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Modified)
	}
	_, err := store.UpdateOne(ctx, "Company", bson.M{"_id": "c1"},
		bson.M{"$push": bson.M{"tags": bson.M{"$each": bson.A{"x", "y"}}}})
	require.NoError(t, err)

	rows, err := store.Aggregate(ctx, "Company", nil)
	require.NoError(t, err)
	assert.Len(t, rows[0]["employees"], 2)
	assert.Equal(t, bson.A{"x", "y"}, rows[0]["tags"])

	_, err = store.UpdateOne(ctx, "Company", bson.M{"_id": "c1"}, bson.M{"$push": bson.M{"_id": "x"}})
	assert.ErrorIs(t, err, ErrStoreOperation)
}

func TestMemoryStore_LookupUnwindProject(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.InsertOne(ctx, "Company", bson.M{"_id": "c1", "name": "Acme"}))
	require.NoError(t, store.InsertOne(ctx, "Person", bson.M{"_id": "p1", "fullName": "Ada Byron", "companyId": "c1"}))
	require.NoError(t, store.InsertOne(ctx, "Person", bson.M{"_id": "p2", "fullName": "Orphan", "companyId": "gone"}))

	pipeline := []bson.D{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "Company"},
			{Key: "localField", Value: "companyId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "company"},
		}}},
		{{Key: "$unwind", Value: "$company"}},
		{{Key: "$project", Value: bson.D{
			{Key: "fullName", Value: "$fullName"},
			{Key: "companyName", Value: "$company.name"},
		}}},
	}

	rows, err := store.Aggregate(ctx, "Person", pipeline)
	require.NoError(t, err)
	require.Len(t, rows, 1, "persons without a matching company are dropped")
	assert.Equal(t, bson.M{"_id": "p1", "fullName": "Ada Byron", "companyName": "Acme"}, rows[0])
}

func TestMemoryStore_UnwindDropsEmptyArrays(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.InsertOne(ctx, "Company", testCompany{ID: "c1", Name: "Acme", Employees: []testEmployee{
		{ID: "p1", FullName: "Ada"}, {ID: "p2", FullName: "Grace"},
	}}))
	require.NoError(t, store.InsertOne(ctx, "Company", testCompany{ID: "c2", Name: "Empty", Employees: []testEmployee{}}))

	rows, err := store.Aggregate(ctx, "Company", []bson.D{
		{{Key: "$unwind", Value: "$employees"}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "fullName", Value: "$employees.fullName"},
			{Key: "companyName", Value: "$name"},
		}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []bson.M{
		{"fullName": "Ada", "companyName": "Acme"},
		{"fullName": "Grace", "companyName": "Acme"},
	}, rows)

	rows, err = store.Aggregate(ctx, "Company", []bson.D{
		{{Key: "$unwind", Value: bson.D{{Key: "path", Value: "$employees"}, {Key: "preserveNullAndEmptyArrays", Value: true}}}},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestMemoryStore_GroupAndSize(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	people := []bson.M{
		{"_id": "p1", "company": bson.M{"_id": "c1", "name": "Acme"}},
		{"_id": "p2", "company": bson.M{"_id": "c2", "name": "Initech"}},
		{"_id": "p3", "company": bson.M{"_id": "c1", "name": "Acme"}},
	}
	for _, p := range people {
		require.NoError(t, store.InsertOne(ctx, "Person", p))
	}

	rows, err := store.Aggregate(ctx, "Person", []bson.D{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$company._id"},
			{Key: "companyName", Value: bson.D{{Key: "$first", Value: "$company.name"}}},
			{Key: "numEmployees", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "ids", Value: bson.D{{Key: "$push", Value: "$_id"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "numEmployees", Value: -1}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []bson.M{
		{"_id": "c1", "companyName": "Acme", "numEmployees": int64(2), "ids": bson.A{"p1", "p3"}},
		{"_id": "c2", "companyName": "Initech", "numEmployees": int64(1), "ids": bson.A{"p2"}},
	}, rows)

	require.NoError(t, store.InsertOne(ctx, "Company", bson.M{"_id": "c1", "name": "Acme", "employeeIds": bson.A{"p1", "p3"}}))
	rows, err = store.Aggregate(ctx, "Company", []bson.D{
		{{Key: "$project", Value: bson.D{
			{Key: "companyName", Value: "$name"},
			{Key: "numEmployees", Value: bson.D{{Key: "$size", Value: "$employeeIds"}}},
		}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []bson.M{{"_id": "c1", "companyName": "Acme", "numEmployees": int64(2)}}, rows)
}

func TestMemoryStore_SizeOfMissingFieldFails(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.InsertOne(ctx, "Company", bson.M{"_id": "c1"}))

	_, err := store.Aggregate(ctx, "Company", []bson.D{
		{{Key: "$project", Value: bson.D{{Key: "n", Value: bson.D{{Key: "$size", Value: "$employeeIds"}}}}}},
	})
	assert.ErrorIs(t, err, ErrStoreOperation)
}

func TestMemoryStore_UnsupportedStage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Aggregate(ctx, "Company", []bson.D{{{Key: "$facet", Value: bson.D{}}}})
	assert.ErrorIs(t, err, ErrUnsupportedOperator)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.InsertOne(ctx, "Company", bson.M{"_id": "c1"})
	assert.ErrorIs(t, err, ErrStoreOperation)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeInto(t *testing.T) {
	type row struct {
		Name  string `bson:"companyName"`
		Count int    `bson:"numEmployees"`
	}
	documents := []bson.M{
		{"companyName": "Acme", "numEmployees": int64(4)},
		{"companyName": "Initech", "numEmployees": int32(2)},
	}

	var rows []row
	require.NoError(t, decodeInto(documents, &rows))
	assert.Equal(t, []row{{"Acme", 4}, {"Initech", 2}}, rows)

	var raw []bson.M
	require.NoError(t, decodeInto(documents, &raw))
	assert.Equal(t, documents, raw)

	assert.ErrorIs(t, decodeInto(documents, rows), ErrStoreOperation, "results must be a pointer")
	var wrong []struct {
		Name int `bson:"companyName"`
	}
	assert.ErrorIs(t, decodeInto(documents, &wrong), ErrStoreOperation)
}

func lookupIDs(t *testing.T, row bson.M, field string) []string {
	t.Helper()
	matches, ok := row[field].(bson.A)
	require.True(t, ok, "%s is an array", field)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.(bson.M)["_id"].(string))
	}
	return ids
}

func TestMemoryStore_LookupEqualityRules(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, doc := range []bson.M{
		{"_id": "tags", "key": bson.A{"a", "b"}},
		{"_id": "missing"},
		{"_id": "null", "key": nil},
		{"_id": "int", "key": int64(1)},
		{"_id": "float", "key": 1.0},
		{"_id": "letter", "key": "a"},
		{"_id": "pair", "key": bson.A{"a", "b"}},
	} {
		require.NoError(t, store.InsertOne(ctx, "Foreign", doc))
	}
	for _, doc := range []bson.M{
		{"_id": "l1", "ref": "a"},
		{"_id": "l2"},
		{"_id": "l3", "ref": int64(1)},
		{"_id": "l4", "ref": bson.A{"b", "a"}},
		{"_id": "l5", "ref": "zzz"},
	} {
		require.NoError(t, store.InsertOne(ctx, "Local", doc))
	}

	rows, err := store.Aggregate(ctx, "Local", []bson.D{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "Foreign"},
			{Key: "localField", Value: "ref"},
			{Key: "foreignField", Value: "key"},
			{Key: "as", Value: "matched"},
		}}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, []string{"tags", "letter", "pair"}, lookupIDs(t, rows[0], "matched"), "array elements match, in foreign order")
	assert.Equal(t, []string{"missing", "null"}, lookupIDs(t, rows[1], "matched"), "a missing local field matches null and missing")
	assert.Equal(t, []string{"int", "float"}, lookupIDs(t, rows[2], "matched"), "numbers compare across types")
	assert.Equal(t, []string{"tags", "letter", "pair"}, lookupIDs(t, rows[3], "matched"), "each foreign document is added once")
	assert.Empty(t, lookupIDs(t, rows[4], "matched"))

	rows, err = store.Aggregate(ctx, "Local", []bson.D{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "Nowhere"},
			{Key: "localField", Value: "ref"},
			{Key: "foreignField", Value: "key"},
			{Key: "as", Value: "matched"},
		}}},
	})
	require.NoError(t, err)
	assert.Empty(t, lookupIDs(t, rows[0], "matched"), "an unknown collection joins nothing")
}

func TestMemoryStore_LookupMatchesAreCopies(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.InsertOne(ctx, "Company", bson.M{"_id": "c1", "name": "Acme"}))
	require.NoError(t, store.InsertOne(ctx, "Person", bson.M{"_id": "p1", "companyId": "c1"}))

	lookup := []bson.D{{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: "Company"},
		{Key: "localField", Value: "companyId"},
		{Key: "foreignField", Value: "_id"},
		{Key: "as", Value: "company"},
	}}}}
	rows, err := store.Aggregate(ctx, "Person", lookup)
	require.NoError(t, err)
	rows[0]["company"].(bson.A)[0].(bson.M)["name"] = "changed"

	rows, err = store.Aggregate(ctx, "Company", nil)
	require.NoError(t, err)
	assert.Equal(t, "Acme", rows[0]["name"])
}

func TestMemoryStore_UpdateByID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, doc := range []bson.M{
		{"_id": "a", "name": "Acme"},
		{"_id": "b", "name": "Initech"},
		{"_id": int64(7), "name": "Seven"},
	} {
		require.NoError(t, store.InsertOne(ctx, "Company", doc))
	}
	rename := bson.M{"$set": bson.M{"name": "Company"}}

	res, err := store.UpdateOne(ctx, "Company", bson.M{"_id": "b"}, rename)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Modified)

	res, err = store.UpdateOne(ctx, "Company", bson.M{"_id": "nobody"}, rename)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Matched)

	res, err = store.UpdateOne(ctx, "Company", bson.M{"_id": 7.0}, rename)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Matched, "numeric ids compare across types")

	res, err = store.UpdateOne(ctx, "Company", bson.M{"_id": "a", "name": "Initech"}, rename)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Matched, "the other fields of the filter still apply")

	rows, err := store.Aggregate(ctx, "Company", nil)
	require.NoError(t, err)
	assert.Equal(t, []bson.M{
		{"_id": "a", "name": "Acme"},
		{"_id": "b", "name": "Company"},
		{"_id": int64(7), "name": "Company"},
	}, rows)
}

func TestMemoryStore_FailedUpdateLeavesDocumentUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.InsertOne(ctx, "Company", testCompany{ID: "c1", Name: "Acme", Employees: []testEmployee{
		{ID: "p1", Age: 40},
	}}))

	_, err := store.UpdateOne(ctx, "Company", bson.M{"_id": "c1"}, bson.M{
		"$set":  bson.M{"employees.0.age": 99},
		"$push": bson.M{"name": "not an array"},
	})
	require.ErrorIs(t, err, ErrStoreOperation)

	var companies []testCompany
	require.NoError(t, store.AggregateInto(ctx, "Company", nil, &companies))
	require.Len(t, companies, 1)
	assert.Equal(t, "Acme", companies[0].Name)
	assert.Equal(t, 40, companies[0].Employees[0].Age)
}

// bestOf returns the fastest of runs executions of fn.
func bestOf(runs int, fn func()) time.Duration {
	best := time.Duration(math.MaxInt64)
	for i := 0; i < runs; i++ {
		start := time.Now()
		fn()
		if elapsed := time.Since(start); elapsed < best {
			best = elapsed
		}
	}
	return best
}

// A linear operation grows about 8x from the small to the large size and a
// quadratic one about 64x. The bound leaves room for timing noise.
const (
	smallScale    = 2000
	largeScale    = 16000
	maxGrowthRate = 24
)

func loadReferenced(t *testing.T, store *MemoryStorageEngine, people int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.DropCollection(ctx, "Company"))
	require.NoError(t, store.DropCollection(ctx, "Person"))
	companies := people / 5
	for i := 0; i < companies; i++ {
		require.NoError(t, store.InsertOne(ctx, "Company", bson.M{"_id": fmt.Sprintf("c%d", i), "name": "Acme"}))
	}
	for i := 0; i < people; i++ {
		require.NoError(t, store.InsertOne(ctx, "Person", bson.M{
			"_id": fmt.Sprintf("p%d", i), "fullName": "Ada", "companyId": fmt.Sprintf("c%d", i%companies),
		}))
	}
}

func TestMemoryStore_LookupScalesLinearly(t *testing.T) {
	if testing.Short() {
		t.Skip("times joins over thousands of documents")
	}
	ctx := context.Background()
	pipeline := []bson.D{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "Company"},
			{Key: "localField", Value: "companyId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "company"},
		}}},
		{{Key: "$unwind", Value: "$company"}},
		{{Key: "$project", Value: bson.D{{Key: "fullName", Value: "$fullName"}, {Key: "companyName", Value: "$company.name"}}}},
	}
	join := func(people int) time.Duration {
		store := newTestStore(t)
		loadReferenced(t, store, people)
		return bestOf(3, func() {
			rows, err := store.Aggregate(ctx, "Person", pipeline)
			require.NoError(t, err)
			require.Len(t, rows, people)
		})
	}

	small, large := join(smallScale), join(largeScale)
	assert.Less(t, large, small*maxGrowthRate, "join took %s for %d people and %s for %d", small, smallScale, large, largeScale)
}

func TestMemoryStore_UpdateByIDScalesLinearly(t *testing.T) {
	if testing.Short() {
		t.Skip("times updates over thousands of documents")
	}
	ctx := context.Background()
	generate := func(people int) time.Duration {
		companies := people / 5
		return bestOf(3, func() {
			store := newTestStore(t)
			for i := 0; i < companies; i++ {
				require.NoError(t, store.InsertOne(ctx, "Company", bson.M{"_id": fmt.Sprintf("c%d", i), "employees": bson.A{}}))
			}
			for i := 0; i < people; i++ {
				res, err := store.UpdateOne(ctx, "Company", bson.M{"_id": fmt.Sprintf("c%d", i%companies)},
					bson.M{"$push": bson.M{"employees": bson.M{"_id": fmt.Sprintf("p%d", i), "fullName": "Ada"}}})
				require.NoError(t, err)
				require.Equal(t, int64(1), res.Modified)
			}
			for i := 0; i < companies; i++ {
				_, err := store.UpdateOne(ctx, "Company", bson.M{"_id": fmt.Sprintf("c%d", i)},
					bson.M{"$set": bson.M{"name": "Company"}})
				require.NoError(t, err)
			}
		})
	}

	small, large := generate(smallScale), generate(largeScale)
	assert.Less(t, large, small*maxGrowthRate, "updates took %s for %d people and %s for %d", small, smallScale, large, largeScale)
}
