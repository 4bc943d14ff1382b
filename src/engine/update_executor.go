package engine

import (
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// arrayFilterSet maps a $[identifier] to the filter its elements must pass.
// Keys inside each filter have the "identifier." prefix removed; a filter on
// the bare identifier is stored under "".
type arrayFilterSet map[string]bson.M

func parseArrayFilters(filters []interface{}) (arrayFilterSet, error) {
	set := make(arrayFilterSet, len(filters))
	for _, raw := range filters {
		filter, err := normalizeDocument(raw)
		if err != nil {
			return nil, err
		}
		for key, cond := range filter {
			ident, rest, _ := strings.Cut(key, ".")
			if ident == "" {
				return nil, fmt.Errorf("%w: array filter key %q has no identifier", ErrStoreOperation, key)
			}
			if set[ident] == nil {
				set[ident] = bson.M{}
			}
			set[ident][rest] = cond
		}
	}
	return set, nil
}

// elementMatches evaluates the array filter bound to ident against one element.
func (s arrayFilterSet) elementMatches(ident string, element interface{}) (bool, error) {
	filter, ok := s[ident]
	if !ok {
		return false, fmt.Errorf("%w: no array filter found for identifier '%s'", ErrStoreOperation, ident)
	}
	for key, cond := range filter {
		if key == "" {
			ok, err := matchCondition(element, true, cond)
			if err != nil || !ok {
				return false, err
			}
			continue
		}
		elemDoc, isDoc := element.(bson.M)
		if !isDoc {
			return false, nil
		}
		ok, err := matchClause(elemDoc, key, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// applyUpdate applies a normalized update document to doc in place and
// reports whether any stored value actually changed.
func applyUpdate(doc bson.M, update bson.M, filters arrayFilterSet) (bool, error) {
	if len(update) == 0 {
		return false, fmt.Errorf("%w: update document must not be empty", ErrStoreOperation)
	}

	changed := false
	for op, arg := range update {
		fields, ok := arg.(bson.M)
		if !ok {
			return false, fmt.Errorf("%w: modifier %s needs a document", ErrStoreOperation, op)
		}
		for path, value := range fields {
			if path == "_id" {
				return false, fmt.Errorf("%w: performing an update on the path '_id' would modify the immutable field '_id'", ErrStoreOperation)
			}
			var c bool
			var err error
			switch op {
			case "$set":
				c, err = setAt(doc, splitPath(path), value, filters)
			case "$push":
				c, err = pushAt(doc, splitPath(path), value)
			default:
				return false, fmt.Errorf("%w: update operator %s", ErrUnsupportedOperator, op)
			}
			if err != nil {
				return false, fmt.Errorf("%s %s: %w", op, path, err)
			}
			changed = changed || c
		}
	}
	return changed, nil
}

// setAt walks segments from container, expanding $[] and $[identifier]
// over arrays, and assigns a copy of value at the end of each branch.
func setAt(container interface{}, segments []string, value interface{}, filters arrayFilterSet) (bool, error) {
	seg := segments[0]
	last := len(segments) == 1

	if strings.HasPrefix(seg, "$[") && strings.HasSuffix(seg, "]") {
		arr, ok := container.(bson.A)
		if !ok {
			return false, fmt.Errorf("%w: the path must refer to an array for %s", ErrStoreOperation, seg)
		}
		ident := seg[2 : len(seg)-1]
		changed := false
		for i, item := range arr {
			if ident != "" {
				ok, err := filters.elementMatches(ident, item)
				if err != nil {
					return false, err
				}
				if !ok {
					continue
				}
			}
			if last {
				if !valuesEqual(item, value) || typeRank(item) != typeRank(value) {
					arr[i] = deepCopy(value)
					changed = true
				}
				continue
			}
			c, err := setAt(item, segments[1:], value, filters)
			if err != nil {
				return false, err
			}
			changed = changed || c
		}
		return changed, nil
	}

	switch c := container.(type) {
	case bson.M:
		if last {
			current, exists := c[seg]
			if exists && valuesEqual(current, value) && typeRank(current) == typeRank(value) {
				return false, nil
			}
			c[seg] = deepCopy(value)
			return true, nil
		}
		child, exists := c[seg]
		if !exists || child == nil {
			child = bson.M{}
			c[seg] = child
		}
		return setAt(child, segments[1:], value, filters)
	case bson.A:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(c) {
			return false, fmt.Errorf("%w: cannot create field '%s' in array", ErrStoreOperation, seg)
		}
		if last {
			if valuesEqual(c[idx], value) && typeRank(c[idx]) == typeRank(value) {
				return false, nil
			}
			c[idx] = deepCopy(value)
			return true, nil
		}
		return setAt(c[idx], segments[1:], value, filters)
	default:
		return false, fmt.Errorf("%w: cannot create field '%s' in element of type %s", ErrStoreOperation, seg, typeName(container))
	}
}

// pushAt appends value (or every element of {$each: [...]}) to the array at
// segments, creating the array when the field is missing. The stored array
// is never appended to in place; existing elements are shared, not copied.
func pushAt(doc bson.M, segments []string, value interface{}) (bool, error) {
	items := bson.A{value}
	if mod, ok := value.(bson.M); ok {
		if each, hasEach := mod["$each"]; hasEach {
			list, ok := each.(bson.A)
			if !ok {
				return false, fmt.Errorf("%w: $each needs an array", ErrStoreOperation)
			}
			if len(mod) > 1 {
				return false, fmt.Errorf("%w: $push modifiers other than $each", ErrUnsupportedOperator)
			}
			items = list
		}
	}

	current, exists := lookupPath(doc, segments)
	if !exists || current == nil {
		arr := make(bson.A, 0, len(items))
		for _, item := range items {
			arr = append(arr, deepCopy(item))
		}
		return true, setPath(doc, segments, arr)
	}
	arr, ok := current.(bson.A)
	if !ok {
		return false, fmt.Errorf("%w: the field '%s' must be an array but is of type %s",
			ErrStoreOperation, strings.Join(segments, "."), typeName(current))
	}
	grown := make(bson.A, len(arr), len(arr)+len(items))
	copy(grown, arr)
	for _, item := range items {
		grown = append(grown, deepCopy(item))
	}
	return len(items) > 0, setPath(doc, segments, grown)
}
