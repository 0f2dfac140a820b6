package postgres

import (
	"reflect"
	"sync"
)

// column is one db-tagged field reachable from a row struct, possibly
// through embedded headers such as entity.Document.
type column struct {
	name  string
	index []int
}

// rowLayouts caches the column layout per struct type.
var rowLayouts sync.Map // reflect.Type -> []column

func layoutOf(t reflect.Type) []column {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	if cached, ok := rowLayouts.Load(t); ok {
		return cached.([]column)
	}

	var cols []column
	collectColumns(t, nil, &cols)
	actual, _ := rowLayouts.LoadOrStore(t, cols)
	return actual.([]column)
}

// collectColumns walks embedded structs in place so that header columns
// (id, version, number...) come before the row's own columns.
func collectColumns(t reflect.Type, prefix []int, out *[]column) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		path := append(append([]int(nil), prefix...), i)

		if f.Anonymous {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				collectColumns(ft, path, out)
			}
			continue
		}

		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		*out = append(*out, column{name: tag, index: path})
	}
}

// ExtractDBColumns lists the db column names of T in field order,
// embedded headers first.
//
//	cols := ExtractDBColumns[stock.Batch]()
func ExtractDBColumns[T any]() []string {
	layout := layoutOf(reflect.TypeOf((*T)(nil)).Elem())
	if layout == nil {
		return nil
	}
	names := make([]string, len(layout))
	for i, c := range layout {
		names[i] = c.name
	}
	return names
}

// StructToMap returns the db-tagged values of v keyed by column name, ready
// for squirrel's SetMap. Non-struct values yield nil.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	layout := layoutOf(rv.Type())
	res := make(map[string]any, len(layout))
	for _, c := range layout {
		fv, err := rv.FieldByIndexErr(c.index)
		if err != nil {
			// nil embedded pointer: the column stays unset
			continue
		}
		res[c.name] = fv.Interface()
	}
	return res
}
