package engine

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"

	"schemabench/src/helpers"
)

// decodeInto fills results, a pointer to a slice, with one decoded element
// per document the way mongo.Cursor.All does. A *[]bson.M receives the
// documents as they are.
func decodeInto(documents []bson.M, results interface{}) error {
	if raw, ok := results.(*[]bson.M); ok {
		*raw = documents
		return nil
	}

	rv := reflect.ValueOf(results)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("%w: results argument must be a pointer to a slice, but was a %T", ErrStoreOperation, results)
	}
	slice := rv.Elem()
	out := reflect.MakeSlice(slice.Type(), 0, len(documents))
	for i, doc := range documents {
		elem := reflect.New(slice.Type().Elem())
		if err := helpers.Transcode(doc, elem.Interface()); err != nil {
			return fmt.Errorf("%w: decoding result row %d: %w", ErrStoreOperation, i, err)
		}
		out = reflect.Append(out, elem.Elem())
	}
	slice.Set(out)
	return nil
}
