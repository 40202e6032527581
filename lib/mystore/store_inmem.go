package mystore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"
)

// inmemTransactionKey is per store, so a transaction on one store does not skip locking on another
type inmemTransactionKey struct {
	store any
}

type InMemoryStore[T any] struct {
	sync.Mutex
	Items map[string]T
}

func NewInMemoryStore[T any](c context.Context) (*InMemoryStore[T], func(), error) {
	return &InMemoryStore[T]{
		Items: make(map[string]T),
	}, func() {}, nil
}

func (s *InMemoryStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	if c.Value(inmemTransactionKey{store: s}) != nil {
		// nested: already holding the lock
		return f(c)
	}

	// Start transaction
	s.Lock()
	defer s.Unlock()

	snapshot := make(map[string]T, len(s.Items))
	for k, v := range s.Items {
		snapshot[k] = v
	}

	ctx := context.WithValue(c, inmemTransactionKey{store: s}, true)

	// Within this block everything is transactional
	err := f(ctx)
	if err != nil {
		// Rollback
		s.Items = snapshot
		return err
	}

	// Commit
	return nil
}

func (s *InMemoryStore[T]) Put(c context.Context, uid string, value T) error {
	nonTransactional := c.Value(inmemTransactionKey{store: s}) == nil

	if nonTransactional {
		s.Lock()
		defer s.Unlock()
	}

	s.Items[uid] = value

	return nil
}

func (s *InMemoryStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	nonTransactional := c.Value(inmemTransactionKey{store: s}) == nil

	if nonTransactional {
		s.Lock()
		defer s.Unlock()
	}

	result, exists := s.Items[uid]

	return result, exists, nil
}

func (s *InMemoryStore[T]) Delete(c context.Context, uid string) error {
	nonTransactional := c.Value(inmemTransactionKey{store: s}) == nil

	if nonTransactional {
		s.Lock()
		defer s.Unlock()
	}

	delete(s.Items, uid)

	return nil
}

func (s *InMemoryStore[T]) List(c context.Context) ([]T, error) {
	nonTransactional := c.Value(inmemTransactionKey{store: s}) == nil

	if nonTransactional {
		s.Lock()
		defer s.Unlock()
	}

	keys := make([]string, 0, len(s.Items))
	for k := range s.Items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]T, 0, len(s.Items))
	for _, k := range keys {
		result = append(result, s.Items[k])
	}

	return result, nil
}

// Query supports equality filters on exported top-level fields,
// ordered ascending by orderByField (by uid when empty).
func (s *InMemoryStore[T]) Query(c context.Context, filters []Filter, orderByField string) ([]T, error) {
	all, err := s.List(c)
	if err != nil {
		return nil, err
	}

	result := []T{}
	for _, item := range all {
		matches, err := matchesFilters(item, filters)
		if err != nil {
			return nil, err
		}
		if matches {
			result = append(result, item)
		}
	}

	err = sortByField(result, orderByField)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func sortByField[T any](items []T, field string) error {
	if field == "" || len(items) == 0 {
		return nil
	}
	// validate upfront, the less func cannot report errors
	_, err := orderValue(items[0], field)
	if err != nil {
		return err
	}

	var sortErr error
	sort.SliceStable(items, func(i, j int) bool {
		less, err := lessByField(items[i], items[j], field)
		if err != nil {
			sortErr = err
		}
		return less
	})
	return sortErr
}

func orderValue(item any, field string) (reflect.Value, error) {
	v := reflect.Indirect(reflect.ValueOf(item))
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("cannot order %s by field %s", v.Kind(), field)
	}
	fv := v.FieldByName(field)
	if !fv.IsValid() {
		return reflect.Value{}, fmt.Errorf("unknown order field %s", field)
	}
	return fv, nil
}

func lessByField(a, b any, field string) (bool, error) {
	va, err := orderValue(a, field)
	if err != nil {
		return false, err
	}
	vb, err := orderValue(b, field)
	if err != nil {
		return false, err
	}

	if ta, ok := va.Interface().(time.Time); ok {
		return ta.Before(vb.Interface().(time.Time)), nil
	}
	switch va.Kind() {
	case reflect.String:
		return va.String() < vb.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return va.Int() < vb.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return va.Uint() < vb.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return va.Float() < vb.Float(), nil
	case reflect.Bool:
		return !va.Bool() && vb.Bool(), nil
	default:
		return false, fmt.Errorf("unsupported order field %s of kind %s", field, va.Kind())
	}
}

func matchesFilters(item any, filters []Filter) (bool, error) {
	v := reflect.Indirect(reflect.ValueOf(item))
	for _, f := range filters {
		if f.Compare != "=" {
			return false, fmt.Errorf("unsupported comparison %q on field %s", f.Compare, f.Field)
		}
		field := v.FieldByName(f.Field)
		if !field.IsValid() {
			return false, fmt.Errorf("unknown field %s", f.Field)
		}
		if !reflect.DeepEqual(field.Interface(), f.Value) {
			return false, nil
		}
	}
	return true, nil
}
