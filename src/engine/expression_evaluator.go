package engine

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// evalExpression evaluates an aggregation expression against doc:
// "$a.b" field paths, operator documents like {$size: "$employees"},
// plain documents (evaluated field by field), arrays and literals.
func evalExpression(doc bson.M, expr interface{}) (interface{}, error) {
	switch e := expr.(type) {
	case string:
		if e == "$$ROOT" {
			return doc, nil
		}
		if strings.HasPrefix(e, "$$") {
			return nil, fmt.Errorf("%w: variable %s", ErrUnsupportedOperator, e)
		}
		if strings.HasPrefix(e, "$") {
			v, _ := lookupPath(doc, splitPath(e[1:]))
			return v, nil
		}
		return e, nil
	case bson.A:
		out := make(bson.A, len(e))
		for i, item := range e {
			v, err := evalExpression(doc, item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case bson.M:
		if len(e) == 1 {
			for op, arg := range e {
				if strings.HasPrefix(op, "$") {
					return evalOperator(doc, op, arg)
				}
			}
		}
		out := make(bson.M, len(e))
		for k, item := range e {
			v, err := evalExpression(doc, item)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return e, nil
	}
}

func evalOperator(doc bson.M, op string, arg interface{}) (interface{}, error) {
	switch op {
	case "$literal":
		return arg, nil
	case "$size":
		v, err := evalSingleArgument(doc, op, arg)
		if err != nil {
			return nil, err
		}
		arr, ok := v.(bson.A)
		if !ok {
			return nil, fmt.Errorf("%w: the argument to $size must be an array, but was of type %s",
				ErrStoreOperation, typeName(v))
		}
		return int64(len(arr)), nil
	case "$year":
		v, err := evalSingleArgument(doc, op, arg)
		if err != nil {
			return nil, err
		}
		switch t := v.(type) {
		case nil:
			return nil, nil
		case time.Time:
			return int64(t.UTC().Year()), nil
		default:
			return nil, fmt.Errorf("%w: can't convert from BSON type %s to Date", ErrStoreOperation, typeName(v))
		}
	case "$lt", "$lte", "$gt", "$gte", "$eq", "$ne":
		a, b, err := evalPair(doc, op, arg)
		if err != nil {
			return nil, err
		}
		c := bsonCompare(a, b)
		switch op {
		case "$lt":
			return c < 0, nil
		case "$lte":
			return c <= 0, nil
		case "$gt":
			return c > 0, nil
		case "$gte":
			return c >= 0, nil
		case "$eq":
			return c == 0, nil
		default:
			return c != 0, nil
		}
	default:
		return nil, fmt.Errorf("%w: expression operator %s", ErrUnsupportedOperator, op)
	}
}

// evalSingleArgument accepts both {$op: x} and {$op: [x]}.
func evalSingleArgument(doc bson.M, op string, arg interface{}) (interface{}, error) {
	if arr, ok := arg.(bson.A); ok {
		if len(arr) != 1 {
			return nil, fmt.Errorf("%w: %s takes exactly 1 argument, %d were passed in", ErrStoreOperation, op, len(arr))
		}
		arg = arr[0]
	}
	return evalExpression(doc, arg)
}

func evalPair(doc bson.M, op string, arg interface{}) (interface{}, interface{}, error) {
	arr, ok := arg.(bson.A)
	if !ok || len(arr) != 2 {
		return nil, nil, fmt.Errorf("%w: %s takes exactly 2 arguments", ErrStoreOperation, op)
	}
	a, err := evalExpression(doc, arr[0])
	if err != nil {
		return nil, nil, err
	}
	b, err := evalExpression(doc, arr[1])
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "missing"
	case int64:
		return "long"
	case float64:
		return "double"
	case string:
		return "string"
	case bson.M:
		return "object"
	case bson.A:
		return "array"
	case bool:
		return "bool"
	case time.Time:
		return "date"
	default:
		return fmt.Sprintf("%T", v)
	}
}
