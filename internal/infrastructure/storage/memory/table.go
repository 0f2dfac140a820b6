package memory

import (
	"context"
	"sort"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
)

// row is what every table stores: an entity with an optimistic version.
type row interface {
	GetID() id.ID
	GetVersion() int
	Touch()
}

// anyTable is the type-erased view the commit step works with.
type anyTable interface {
	versionOf(rowID id.ID) (int, bool)
	uniqueTaken(v any) (string, bool)
	put(v any)
}

// table holds the committed rows of one entity type. Guarded by Store.mu.
type table[T row] struct {
	name  string
	rows  map[id.ID]T
	clone func(T) T

	// unique returns the value that must be unique across rows, "" for none
	unique func(T) string
}

func newTable[T row](name string, clone func(T) T, unique func(T) string) *table[T] {
	return &table[T]{name: name, rows: make(map[id.ID]T), clone: clone, unique: unique}
}

func (t *table[T]) versionOf(rowID id.ID) (int, bool) {
	r, ok := t.rows[rowID]
	if !ok {
		return 0, false
	}
	return r.GetVersion(), true
}

func (t *table[T]) uniqueTaken(v any) (string, bool) {
	if t.unique == nil {
		return "", false
	}
	r := v.(T)
	key := t.unique(r)
	if key == "" {
		return "", false
	}
	for _, other := range t.rows {
		if other.GetID() != r.GetID() && t.unique(other) == key {
			return key, true
		}
	}
	return "", false
}

func (t *table[T]) put(v any) {
	r := v.(T)
	t.rows[r.GetID()] = r
}

// get reads a row through the transaction's pending writes.
func get[T row](ctx context.Context, s *Store, t *table[T], rowID id.ID) (T, bool) {
	if tx := txFrom(ctx); tx != nil {
		if w, ok := tx.writes[t.name][rowID]; ok {
			return t.clone(w.val.(T)), true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := t.rows[rowID]
	if !ok {
		var zero T
		return zero, false
	}
	return t.clone(r), true
}

// scan returns every row visible to ctx that keep accepts, in id order.
func scan[T row](ctx context.Context, s *Store, t *table[T], keep func(T) bool) []T {
	visible := make(map[id.ID]T)
	s.mu.RLock()
	for k, r := range t.rows {
		visible[k] = r
	}
	s.mu.RUnlock()
	if tx := txFrom(ctx); tx != nil {
		for k, w := range tx.writes[t.name] {
			visible[k] = w.val.(T)
		}
	}

	out := make([]T, 0, len(visible))
	for _, r := range visible {
		if keep == nil || keep(r) {
			out = append(out, t.clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return id.Compare(out[i].GetID(), out[j].GetID()) < 0 })
	return out
}

// insert stages a new row.
func insert[T row](ctx context.Context, s *Store, t *table[T], v T) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		if _, exists := get(ctx, s, t, v.GetID()); exists {
			return apperror.NewDuplicate(t.name, "id", v.GetID().String())
		}
		txFrom(ctx).stage(t.name, v.GetID(), &write{val: t.clone(v), insert: true})
		return nil
	})
}

// update stages a version-checked write and bumps v's version.
func update[T row](ctx context.Context, s *Store, t *table[T], v T) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		cur, ok := get(ctx, s, t, v.GetID())
		if !ok {
			return apperror.NewNotFound(t.name, v.GetID())
		}
		if cur.GetVersion() != v.GetVersion() {
			return apperror.NewConcurrentModification(t.name, v.GetID()).
				WithDetail("expected_version", v.GetVersion()).
				WithDetail("actual_version", cur.GetVersion())
		}

		tx := txFrom(ctx)
		w, staged := tx.writes[t.name][v.GetID()]
		if !staged {
			w = &write{base: cur.GetVersion()}
		}
		v.Touch()
		w.val = t.clone(v)
		tx.stage(t.name, v.GetID(), w)
		return nil
	})
}
