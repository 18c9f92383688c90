package store

import (
	"context"
	"encoding/json"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/totegamma/heritage-repo/internal/domain"
)

// MemoryStore is an in-process document store understanding the subset of
// mongo filter syntax the repository issues: equality on dotted paths, $in,
// $exists, $ne and $regex. Documents are held as decoded JSON.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[domain.Collection]map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[domain.Collection]map[string]map[string]any)}
}

func (s *MemoryStore) FindOne(ctx context.Context, collection domain.Collection, filter domain.Filter, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.sorted(collection) {
		if matches(doc, filter) {
			return decode(doc, out)
		}
	}
	return domain.NotFoundError{Resource: string(collection)}
}

func (s *MemoryStore) Find(ctx context.Context, collection domain.Collection, filter domain.Filter, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make([]map[string]any, 0)
	for _, doc := range s.sorted(collection) {
		if matches(doc, filter) {
			found = append(found, doc)
		}
	}
	return decode(found, out)
}

func (s *MemoryStore) UpdateOne(ctx context.Context, collection domain.Collection, filter domain.Filter, update domain.Update, upsert bool) (domain.UpdateResult, error) {
	set, err := setFields(update.Set)
	if err != nil {
		return domain.UpdateResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range s.sorted(collection) {
		if !matches(doc, filter) {
			continue
		}
		before := deepCopy(doc)
		apply(doc, set, update.Unset)
		result := domain.UpdateResult{MatchedCount: 1}
		if !reflect.DeepEqual(before, doc) {
			result.ModifiedCount = 1
		}
		return result, nil
	}

	if !upsert {
		return domain.UpdateResult{}, nil
	}

	id, _ := filter["_id"].(string)
	if id == "" {
		id = domain.NewID()
	}
	doc := map[string]any{"_id": id}
	apply(doc, set, update.Unset)
	s.collection(collection)[id] = doc
	return domain.UpdateResult{UpsertedCount: 1}, nil
}

func (s *MemoryStore) DeleteOne(ctx context.Context, collection domain.Collection, filter domain.Filter) (int64, error) {
	return s.delete(collection, filter, false)
}

func (s *MemoryStore) DeleteMany(ctx context.Context, collection domain.Collection, filter domain.Filter) (int64, error) {
	return s.delete(collection, filter, true)
}

// Count is used by tests and diagnostics.
func (s *MemoryStore) Count(collection domain.Collection) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[collection])
}

func (s *MemoryStore) delete(collection domain.Collection, filter domain.Filter, many bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for _, doc := range s.sorted(collection) {
		if !matches(doc, filter) {
			continue
		}
		delete(s.data[collection], doc["_id"].(string))
		deleted++
		if !many {
			break
		}
	}
	return deleted, nil
}

func (s *MemoryStore) collection(c domain.Collection) map[string]map[string]any {
	coll, ok := s.data[c]
	if !ok {
		coll = make(map[string]map[string]any)
		s.data[c] = coll
	}
	return coll
}

// sorted returns documents ordered by id so that results are deterministic.
func (s *MemoryStore) sorted(c domain.Collection) []map[string]any {
	coll := s.data[c]
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, coll[id])
	}
	return out
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "document is not an object")
	}
	return out, nil
}

func setFields(set any) (map[string]any, error) {
	if set == nil {
		return nil, nil
	}
	fields, err := toMap(set)
	if err != nil {
		return nil, err
	}
	delete(fields, "_id")
	return fields, nil
}

func decode(v any, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return errors.Wrap(json.Unmarshal(data, out), "decode document")
}

func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func deepCopy(doc map[string]any) map[string]any {
	return normalize(doc).(map[string]any)
}

func apply(doc map[string]any, set map[string]any, unset []string) {
	for k, v := range set {
		setPath(doc, k, v)
	}
	for _, path := range unset {
		unsetPath(doc, path)
	}
}

func setPath(doc map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

func unsetPath(doc map[string]any, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

func lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, p := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func matches(doc map[string]any, filter domain.Filter) bool {
	for path, cond := range filter {
		value, present := lookup(doc, path)
		if !matchCondition(value, present, normalize(cond)) {
			return false
		}
	}
	return true
}

func matchCondition(value any, present bool, cond any) bool {
	ops, ok := cond.(map[string]any)
	if !ok || !isOperatorMap(ops) {
		return present && equal(value, cond)
	}
	for op, arg := range ops {
		switch op {
		case "$in":
			list, _ := arg.([]any)
			if !matchIn(value, present, list) {
				return false
			}
		case "$exists":
			want, _ := arg.(bool)
			if present != want {
				return false
			}
		case "$ne":
			if present && equal(value, arg) {
				return false
			}
		case "$regex":
			pattern, _ := arg.(string)
			str, ok := value.(string)
			if !ok {
				return false
			}
			matched, err := regexp.MatchString(pattern, str)
			if err != nil || !matched {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func isOperatorMap(m map[string]any) bool {
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return len(m) > 0
}

func matchIn(value any, present bool, list []any) bool {
	for _, candidate := range list {
		if candidate == nil && (!present || value == nil) {
			return true
		}
		if present && equal(value, candidate) {
			return true
		}
	}
	return false
}

// equal follows mongo: an array field matches when any element matches.
func equal(value, cond any) bool {
	if reflect.DeepEqual(value, cond) {
		return true
	}
	if arr, ok := value.([]any); ok {
		for _, el := range arr {
			if reflect.DeepEqual(el, cond) {
				return true
			}
		}
	}
	return false
}
