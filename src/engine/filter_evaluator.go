package engine

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// matchDocument reports whether doc satisfies a normalized query filter.
// Top-level clauses combine with AND.
func matchDocument(doc bson.M, filter bson.M) (bool, error) {
	for key, cond := range filter {
		ok, err := matchClause(doc, key, cond)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchClause(doc bson.M, key string, cond interface{}) (bool, error) {
	switch key {
	case "$and", "$or", "$nor":
		clauses, ok := cond.(bson.A)
		if !ok || len(clauses) == 0 {
			return false, fmt.Errorf("%w: %s needs a non-empty array", ErrStoreOperation, key)
		}
		for _, c := range clauses {
			sub, ok := c.(bson.M)
			if !ok {
				return false, fmt.Errorf("%w: %s entries must be documents", ErrStoreOperation, key)
			}
			matched, err := matchDocument(doc, sub)
			if err != nil {
				return false, err
			}
			switch {
			case key == "$and" && !matched:
				return false, nil
			case key == "$or" && matched:
				return true, nil
			case key == "$nor" && matched:
				return false, nil
			}
		}
		return key != "$or", nil
	case "$expr":
		v, err := evalExpression(doc, cond)
		if err != nil {
			return false, err
		}
		return truthy(v), nil
	}

	if strings.HasPrefix(key, "$") {
		return false, fmt.Errorf("%w: query operator %s", ErrUnsupportedOperator, key)
	}

	value, exists := lookupPath(doc, splitPath(key))
	return matchCondition(value, exists, cond)
}

func isOperatorDocument(v interface{}) (bson.M, bool) {
	m, ok := v.(bson.M)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

// matchCondition checks one field value against either a literal (equality)
// or an operator document such as {$lt: x, $exists: true}.
func matchCondition(value interface{}, exists bool, cond interface{}) (bool, error) {
	ops, isOps := isOperatorDocument(cond)
	if !isOps {
		return matchesEquality(value, exists, cond), nil
	}

	for op, arg := range ops {
		ok, err := applyQueryOperator(op, value, exists, arg)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func applyQueryOperator(op string, value interface{}, exists bool, arg interface{}) (bool, error) {
	switch op {
	case "$eq":
		return matchesEquality(value, exists, arg), nil
	case "$ne":
		return !matchesEquality(value, exists, arg), nil
	case "$lt":
		return anyElement(value, exists, arg, func(c int) bool { return c < 0 }), nil
	case "$lte":
		return anyElement(value, exists, arg, func(c int) bool { return c <= 0 }), nil
	case "$gt":
		return anyElement(value, exists, arg, func(c int) bool { return c > 0 }), nil
	case "$gte":
		return anyElement(value, exists, arg, func(c int) bool { return c >= 0 }), nil
	case "$in":
		candidates, ok := arg.(bson.A)
		if !ok {
			return false, fmt.Errorf("%w: $in needs an array", ErrStoreOperation)
		}
		for _, c := range candidates {
			if matchesEquality(value, exists, c) {
				return true, nil
			}
		}
		return false, nil
	case "$exists":
		return truthy(arg) == exists, nil
	case "$size":
		arr, ok := value.(bson.A)
		if !ok {
			return false, nil
		}
		want, ok := toFloat(arg)
		return ok && float64(len(arr)) == want, nil
	case "$elemMatch":
		return matchElement(value, arg)
	default:
		return false, fmt.Errorf("%w: query operator %s", ErrUnsupportedOperator, op)
	}
}

// matchesEquality follows MongoDB: null matches a missing field, and a
// scalar matches an array that contains it.
func matchesEquality(value interface{}, exists bool, target interface{}) bool {
	if !exists {
		return target == nil
	}
	if valuesEqual(value, target) {
		return true
	}
	if arr, ok := value.(bson.A); ok {
		for _, item := range arr {
			if valuesEqual(item, target) {
				return true
			}
		}
	}
	return false
}

// anyElement applies a range comparison to value, or to any element when
// value is an array. Values of a different BSON type never match.
func anyElement(value interface{}, exists bool, target interface{}, accept func(int) bool) bool {
	if !exists {
		return false
	}
	candidates := bson.A{value}
	if arr, ok := value.(bson.A); ok {
		candidates = arr
	}
	for _, c := range candidates {
		if typeRank(c) != typeRank(target) {
			continue
		}
		if accept(bsonCompare(c, target)) {
			return true
		}
	}
	return false
}

// matchElement implements $elemMatch: at least one array element satisfies
// the sub-filter. Document elements are matched field by field, scalar
// elements against operators directly.
func matchElement(value interface{}, arg interface{}) (bool, error) {
	arr, ok := value.(bson.A)
	if !ok {
		return false, nil
	}
	sub, ok := arg.(bson.M)
	if !ok {
		return false, fmt.Errorf("%w: $elemMatch needs a document", ErrStoreOperation)
	}
	_, scalarForm := isOperatorDocument(sub)

	for _, item := range arr {
		var matched bool
		var err error
		if elemDoc, isDoc := item.(bson.M); isDoc && !scalarForm {
			matched, err = matchDocument(elemDoc, sub)
		} else {
			matched, err = matchCondition(item, true, sub)
		}
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}
