package engine

import (
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// collectionResolver returns the stored documents of another collection,
// used by $lookup. The documents are shared with the store and must only be
// read; a stage copies whatever it keeps.
type collectionResolver func(name string) []bson.M

type sortKey struct {
	path      []string
	direction int
}

// executePipeline runs stages over docs in order. docs must already be
// copies; stages are free to modify them.
func executePipeline(docs []bson.M, pipeline []bson.D, resolve collectionResolver) ([]bson.M, error) {
	for i, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("%w: pipeline stage %d must have exactly one field, has %d", ErrStoreOperation, i, len(stage))
		}
		name, raw := stage[0].Key, stage[0].Value

		var err error
		if name == "$sort" {
			docs, err = sortStage(docs, raw)
		} else {
			var spec interface{}
			spec, err = normalizeValue(raw)
			if err != nil {
				return nil, err
			}
			docs, err = executeStage(docs, name, spec, resolve)
		}
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i, name, err)
		}
	}
	return docs, nil
}

func executeStage(docs []bson.M, name string, spec interface{}, resolve collectionResolver) ([]bson.M, error) {
	switch name {
	case "$match":
		filter, ok := spec.(bson.M)
		if !ok {
			return nil, fmt.Errorf("%w: $match needs a document", ErrStoreOperation)
		}
		return matchStage(docs, filter)
	case "$project":
		projection, ok := spec.(bson.M)
		if !ok || len(projection) == 0 {
			return nil, fmt.Errorf("%w: $project needs a non-empty document", ErrStoreOperation)
		}
		return projectStage(docs, projection)
	case "$unwind":
		return unwindStage(docs, spec)
	case "$lookup":
		lookup, ok := spec.(bson.M)
		if !ok {
			return nil, fmt.Errorf("%w: $lookup needs a document", ErrStoreOperation)
		}
		return lookupStage(docs, lookup, resolve)
	case "$group":
		group, ok := spec.(bson.M)
		if !ok {
			return nil, fmt.Errorf("%w: $group needs a document", ErrStoreOperation)
		}
		return groupStage(docs, group)
	case "$limit":
		n, ok := toFloat(spec)
		if !ok || n <= 0 {
			return nil, fmt.Errorf("%w: $limit needs a positive number", ErrStoreOperation)
		}
		if int(n) < len(docs) {
			docs = docs[:int(n)]
		}
		return docs, nil
	default:
		return nil, fmt.Errorf("%w: pipeline stage %s", ErrUnsupportedOperator, name)
	}
}

func matchStage(docs []bson.M, filter bson.M) ([]bson.M, error) {
	out := docs[:0]
	for _, doc := range docs {
		ok, err := matchDocument(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func isProjectionFlag(v interface{}) (include bool, isFlag bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case int64:
		return x != 0, true
	case float64:
		return x != 0, true
	}
	return false, false
}

// projectStage supports inclusion ({a: 1}), exclusion ({a: 0}) and computed
// fields ({n: {$size: "$arr"}}). _id is kept unless excluded explicitly.
func projectStage(docs []bson.M, projection bson.M) ([]bson.M, error) {
	keepID := true
	exclusions := make([]string, 0)
	hasInclusions := false
	for field, v := range projection {
		include, isFlag := isProjectionFlag(v)
		switch {
		case field == "_id" && isFlag:
			keepID = include
		case isFlag && !include:
			exclusions = append(exclusions, field)
		default:
			hasInclusions = true
		}
	}
	if hasInclusions && len(exclusions) > 0 {
		return nil, fmt.Errorf("%w: cannot mix inclusion and exclusion in $project", ErrStoreOperation)
	}

	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		if len(exclusions) > 0 || !hasInclusions {
			projected := doc
			for _, field := range exclusions {
				unsetPath(projected, splitPath(field))
			}
			if !keepID {
				delete(projected, "_id")
			}
			out = append(out, projected)
			continue
		}

		projected := bson.M{}
		if id, ok := doc["_id"]; ok && keepID {
			projected["_id"] = id
		}
		for field, v := range projection {
			if field == "_id" {
				if _, isFlag := isProjectionFlag(v); isFlag {
					continue
				}
			}
			segments := splitPath(field)
			if _, isFlag := isProjectionFlag(v); isFlag {
				if value, ok := lookupPath(doc, segments); ok {
					if err := setPath(projected, segments, value); err != nil {
						return nil, err
					}
				}
				continue
			}
			value, err := evalExpression(doc, v)
			if err != nil {
				return nil, err
			}
			if value == nil {
				continue
			}
			if err := setPath(projected, segments, value); err != nil {
				return nil, err
			}
		}
		out = append(out, projected)
	}
	return out, nil
}

func unsetPath(doc bson.M, segments []string) {
	current := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg].(bson.M)
		if !ok {
			return
		}
		current = next
	}
	delete(current, segments[len(segments)-1])
}

// unwindStage emits one document per array element. Documents whose field is
// missing, null or an empty array are dropped unless
// preserveNullAndEmptyArrays is set.
func unwindStage(docs []bson.M, spec interface{}) ([]bson.M, error) {
	var path string
	preserve := false
	switch s := spec.(type) {
	case string:
		path = s
	case bson.M:
		p, _ := s["path"].(string)
		path = p
		preserve = truthy(s["preserveNullAndEmptyArrays"])
	}
	if !strings.HasPrefix(path, "$") || len(path) < 2 {
		return nil, fmt.Errorf("%w: $unwind path must be a field path prefixed by '$'", ErrStoreOperation)
	}
	segments := splitPath(path[1:])

	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		value, exists := lookupPath(doc, segments)
		arr, isArray := value.(bson.A)
		switch {
		case !exists || value == nil || (isArray && len(arr) == 0):
			if preserve {
				if exists && isArray {
					unsetPath(doc, segments)
				}
				out = append(out, doc)
			}
		case !isArray:
			out = append(out, doc)
		default:
			for _, item := range arr {
				clone := copyDocument(doc)
				if err := setPath(clone, segments, deepCopy(item)); err != nil {
					return nil, err
				}
				out = append(out, clone)
			}
		}
	}
	return out, nil
}

// lookupStage performs an equality join against another collection and
// stores the matches as an array in the "as" field. The foreign collection
// is indexed once per stage, so the join costs one pass over each side.
func lookupStage(docs []bson.M, spec bson.M, resolve collectionResolver) ([]bson.M, error) {
	from, _ := spec["from"].(string)
	localField, _ := spec["localField"].(string)
	foreignField, _ := spec["foreignField"].(string)
	as, _ := spec["as"].(string)
	if from == "" || localField == "" || foreignField == "" || as == "" {
		return nil, fmt.Errorf("%w: $lookup needs from, localField, foreignField and as", ErrStoreOperation)
	}

	foreign := resolve(from)
	index := indexForeign(foreign, splitPath(foreignField))
	localSegments := splitPath(localField)
	asSegments := splitPath(as)

	for _, doc := range docs {
		local, exists := lookupPath(doc, localSegments)
		if !exists {
			local = nil
		}
		localValues := bson.A{local}
		if arr, ok := local.(bson.A); ok {
			localValues = arr
		}

		var positions []int
		for _, lv := range localValues {
			positions = append(positions, index[canonicalKey(lv)]...)
		}
		if len(localValues) > 1 {
			positions = uniqueSorted(positions)
		}

		matches := make(bson.A, 0, len(positions))
		for _, pos := range positions {
			matches = append(matches, copyDocument(foreign[pos]))
		}
		if err := setPath(doc, asSegments, matches); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// indexForeign maps the canonical key of every value a local value can equal
// to the positions of the foreign documents holding it. A missing field is
// indexed as null and an array under itself and each of its elements, which
// mirrors matchesEquality. Positions are ascending within each entry.
func indexForeign(foreign []bson.M, segments []string) map[string][]int {
	index := make(map[string][]int, len(foreign))
	add := func(key string, pos int) {
		entry := index[key]
		if n := len(entry); n > 0 && entry[n-1] == pos {
			return
		}
		index[key] = append(entry, pos)
	}
	for pos, doc := range foreign {
		value, exists := lookupPath(doc, segments)
		if !exists {
			add(canonicalKey(nil), pos)
			continue
		}
		add(canonicalKey(value), pos)
		if arr, ok := value.(bson.A); ok {
			for _, item := range arr {
				add(canonicalKey(item), pos)
			}
		}
	}
	return index
}

func uniqueSorted(positions []int) []int {
	sort.Ints(positions)
	out := positions[:0]
	for i, pos := range positions {
		if i == 0 || pos != positions[i-1] {
			out = append(out, pos)
		}
	}
	return out
}

type groupAccumulator struct {
	field string
	op    string
	expr  interface{}
}

// groupStage groups by the _id expression. Groups are emitted in the order
// their first document was seen.
func groupStage(docs []bson.M, spec bson.M) ([]bson.M, error) {
	idExpr, ok := spec["_id"]
	if !ok {
		return nil, fmt.Errorf("%w: a group specification must include an _id", ErrStoreOperation)
	}

	accumulators := make([]groupAccumulator, 0, len(spec)-1)
	for field, v := range spec {
		if field == "_id" {
			continue
		}
		accDoc, ok := v.(bson.M)
		if !ok || len(accDoc) != 1 {
			return nil, fmt.Errorf("%w: the field '%s' must be an accumulator object", ErrStoreOperation, field)
		}
		for op, expr := range accDoc {
			accumulators = append(accumulators, groupAccumulator{field: field, op: op, expr: expr})
		}
	}

	order := make([]string, 0)
	groups := make(map[string]bson.M)
	for _, doc := range docs {
		key, err := evalExpression(doc, idExpr)
		if err != nil {
			return nil, err
		}
		k := canonicalKey(key)
		group, seen := groups[k]
		if !seen {
			group = bson.M{"_id": key}
			groups[k] = group
			order = append(order, k)
		}

		for _, acc := range accumulators {
			value, err := evalExpression(doc, acc.expr)
			if err != nil {
				return nil, err
			}
			if err := accumulate(group, acc, value, !seen); err != nil {
				return nil, err
			}
		}
	}

	out := make([]bson.M, 0, len(order))
	for _, k := range order {
		out = append(out, groups[k])
	}
	return out, nil
}

func accumulate(group bson.M, acc groupAccumulator, value interface{}, first bool) error {
	switch acc.op {
	case "$first":
		if first {
			group[acc.field] = value
		}
	case "$last":
		group[acc.field] = value
	case "$push":
		list, _ := group[acc.field].(bson.A)
		group[acc.field] = append(list, value)
	case "$sum":
		current, ok := group[acc.field]
		if !ok {
			current = int64(0)
		}
		group[acc.field] = addNumbers(current, value)
	default:
		return fmt.Errorf("%w: accumulator %s", ErrUnsupportedOperator, acc.op)
	}
	return nil
}

// addNumbers adds b to a, ignoring non-numeric values as $sum does.
func addNumbers(a, b interface{}) interface{} {
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		return ai + bi
	}
	bf, ok := toFloat(b)
	if !ok {
		return a
	}
	af, _ := toFloat(a)
	return af + bf
}

func sortStage(docs []bson.M, raw interface{}) ([]bson.M, error) {
	var keys []sortKey
	switch spec := raw.(type) {
	case bson.D:
		for _, e := range spec {
			keys = append(keys, sortKey{path: splitPath(e.Key), direction: sortDirection(e.Value)})
		}
	case bson.M:
		if len(spec) > 1 {
			return nil, fmt.Errorf("%w: $sort on several keys needs an ordered document (bson.D)", ErrStoreOperation)
		}
		for k, v := range spec {
			keys = append(keys, sortKey{path: splitPath(k), direction: sortDirection(v)})
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: $sort needs at least one key", ErrStoreOperation)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range keys {
			a, _ := lookupPath(docs[i], key.path)
			b, _ := lookupPath(docs[j], key.path)
			if c := bsonCompare(a, b); c != 0 {
				return c*key.direction < 0
			}
		}
		return false
	})
	return docs, nil
}

func sortDirection(v interface{}) int {
	n, err := normalizeValue(v)
	if err == nil {
		if f, ok := toFloat(n); ok && f < 0 {
			return -1
		}
	}
	return 1
}
