package engine

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"schemabench/src/helpers"
)

// The memory engine keeps every value in one canonical form so comparisons
// stay simple:
//
//	documents -> bson.M, arrays -> bson.A, integers -> int64,
//	floats -> float64, dates -> time.Time (UTC, millisecond precision)
//
// Anything else (structs, typed slices, maps) is transcoded through BSON first.
func normalizeValue(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bson.M:
		return normalizeMap(v)
	case map[string]interface{}:
		return normalizeMap(v)
	case bson.D:
		out := make(bson.M, len(v))
		for _, e := range v {
			n, err := normalizeValue(e.Value)
			if err != nil {
				return nil, err
			}
			out[e.Key] = n
		}
		return out, nil
	case bson.A:
		return normalizeSlice([]interface{}(v))
	case []interface{}:
		return normalizeSlice(v)
	case string, bool, primitive.ObjectID, primitive.Binary, primitive.Decimal128:
		return v, nil
	case time.Time:
		return v.UTC().Truncate(time.Millisecond), nil
	case primitive.DateTime:
		return v.Time().UTC(), nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]interface{}, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return normalizeSlice(items)
	case reflect.Ptr:
		if rv.IsNil() {
			return nil, nil
		}
		return normalizeValue(rv.Elem().Interface())
	case reflect.Struct, reflect.Map:
		raw, err := helpers.EncodeBSON(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreOperation, err)
		}
		doc, err := helpers.DecodeBSON(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreOperation, err)
		}
		return normalizeValue(doc)
	}
	return nil, fmt.Errorf("%w: cannot store value of type %T", ErrStoreOperation, value)
}

func normalizeMap(m map[string]interface{}) (bson.M, error) {
	out := make(bson.M, len(m))
	for k, v := range m {
		n, err := normalizeValue(v)
		if err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, nil
}

func normalizeSlice(items []interface{}) (bson.A, error) {
	out := make(bson.A, len(items))
	for i, item := range items {
		n, err := normalizeValue(item)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// normalizeDocument normalizes value and requires the result to be a document.
func normalizeDocument(value interface{}) (bson.M, error) {
	n, err := normalizeValue(value)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return bson.M{}, nil
	}
	doc, ok := n.(bson.M)
	if !ok {
		return nil, fmt.Errorf("%w: expected a document, got %T", ErrStoreOperation, value)
	}
	return doc, nil
}

// deepCopy copies a normalized value.
func deepCopy(value interface{}) interface{} {
	switch v := value.(type) {
	case bson.M:
		out := make(bson.M, len(v))
		for k, item := range v {
			out[k] = deepCopy(item)
		}
		return out
	case bson.A:
		out := make(bson.A, len(v))
		for i, item := range v {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}

func copyDocument(doc bson.M) bson.M {
	return deepCopy(doc).(bson.M)
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

// lookupPath resolves a dotted path. Traversing an array without an index
// collects the value from every element, the way MongoDB resolves
// "employees.fullName".
func lookupPath(value interface{}, segments []string) (interface{}, bool) {
	if len(segments) == 0 {
		return value, true
	}
	switch v := value.(type) {
	case bson.M:
		child, ok := v[segments[0]]
		if !ok {
			return nil, false
		}
		return lookupPath(child, segments[1:])
	case bson.A:
		if idx, err := strconv.Atoi(segments[0]); err == nil {
			if idx < 0 || idx >= len(v) {
				return nil, false
			}
			return lookupPath(v[idx], segments[1:])
		}
		collected := bson.A{}
		for _, item := range v {
			if found, ok := lookupPath(item, segments); ok {
				collected = append(collected, found)
			}
		}
		if len(collected) == 0 {
			return nil, false
		}
		return collected, true
	default:
		return nil, false
	}
}

// setPath assigns value at a dotted path, creating intermediate documents.
func setPath(doc bson.M, segments []string, value interface{}) error {
	current := doc
	for i, seg := range segments[:len(segments)-1] {
		child, ok := current[seg]
		if !ok || child == nil {
			next := bson.M{}
			current[seg] = next
			current = next
			continue
		}
		next, ok := child.(bson.M)
		if !ok {
			return fmt.Errorf("%w: cannot create field %q in element of type %T",
				ErrStoreOperation, strings.Join(segments[:i+2], "."), child)
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
	return nil
}

// typeRank follows the BSON comparison order for the types the engine stores.
func typeRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 1
	case int64, float64:
		return 2
	case string:
		return 3
	case bson.M:
		return 4
	case bson.A:
		return 5
	case primitive.Binary:
		return 6
	case primitive.ObjectID:
		return 7
	case bool:
		return 8
	case time.Time:
		return 9
	default:
		return 10
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// bsonCompare orders two normalized values: negative when a < b, zero when
// equal, positive when a > b.
func bsonCompare(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}

	switch av := a.(type) {
	case nil:
		return 0
	case int64, float64:
		if ai, ok := av.(int64); ok {
			if bi, ok := b.(int64); ok {
				return compareOrdered(ai, bi)
			}
		}
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return compareOrdered(af, bf)
	case string:
		return strings.Compare(av, b.(string))
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case time.Time:
		return av.Compare(b.(time.Time))
	case primitive.ObjectID:
		return strings.Compare(av.Hex(), b.(primitive.ObjectID).Hex())
	case bson.A:
		bv := b.(bson.A)
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := bsonCompare(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return len(av) - len(bv)
	case bson.M:
		return strings.Compare(canonicalKey(av), canonicalKey(b))
	default:
		return strings.Compare(canonicalKey(a), canonicalKey(b))
	}
}

type ordered interface {
	~int64 | ~float64
}

func compareOrdered[T ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func valuesEqual(a, b interface{}) bool {
	return bsonCompare(a, b) == 0
}

// canonicalKey renders a normalized value as a stable string, with document
// keys sorted. It identifies documents by _id and groups by key.
func canonicalKey(v interface{}) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

func writeCanonical(b *strings.Builder, v interface{}) {
	switch x := v.(type) {
	case nil:
		b.WriteString("null")
	case bson.M:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeCanonical(b, x[k])
		}
		b.WriteByte('}')
	case bson.A:
		b.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
	case string:
		b.WriteString(strconv.Quote(x))
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case float64:
		if x == float64(int64(x)) {
			b.WriteString(strconv.FormatInt(int64(x), 10))
		} else {
			b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		}
	case time.Time:
		b.WriteString("date(" + x.UTC().Format(time.RFC3339Nano) + ")")
	default:
		fmt.Fprintf(b, "%T(%v)", x, x)
	}
}

func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}
