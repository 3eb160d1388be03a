package storage

import (
	"reflect"
	"slices"
)

type FilterOp string

const (
	OpEq            FilterOp = "=="
	OpArrayContains FilterOp = "array-contains"
	OpIn            FilterOp = "in"
)

// Filter — условие на поле верхнего уровня.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEq, Value: Normalize(value)}
}

func ArrayContains(field string, value any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: Normalize(value)}
}

func In(field string, values ...any) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = Normalize(v)
	}
	return Filter{Field: field, Op: OpIn, Value: vs}
}

// Match проверяет документ на соответствие всем фильтрам.
func Match(doc Document, filters []Filter) bool {
	for _, f := range filters {
		v := doc[f.Field]
		switch f.Op {
		case OpEq:
			if !reflect.DeepEqual(v, f.Value) {
				return false
			}
		case OpArrayContains:
			arr, ok := v.([]any)
			if !ok || !containsValue(arr, f.Value) {
				return false
			}
		case OpIn:
			vs, _ := f.Value.([]any)
			if !containsValue(vs, v) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func containsValue(arr []any, v any) bool {
	return slices.ContainsFunc(arr, func(x any) bool { return reflect.DeepEqual(x, v) })
}

type UpdateOp int

const (
	UpdateSet UpdateOp = iota
	UpdateUnset
	UpdateArrayUnion
	UpdateArrayRemove
)

// Update — изменение одного поля документа.
type Update struct {
	Op     UpdateOp
	Field  string
	Value  any
	Values []any
}

func Set(field string, value any) Update {
	return Update{Op: UpdateSet, Field: field, Value: Normalize(value)}
}

func Unset(field string) Update {
	return Update{Op: UpdateUnset, Field: field}
}

// ArrayUnion добавляет значения в массив, пропуская уже имеющиеся.
func ArrayUnion(field string, values ...any) Update {
	return Update{Op: UpdateArrayUnion, Field: field, Values: normalizeValues(values)}
}

// ArrayRemove удаляет все вхождения значений из массива.
func ArrayRemove(field string, values ...any) Update {
	return Update{Op: UpdateArrayRemove, Field: field, Values: normalizeValues(values)}
}

func normalizeValues(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		n := Normalize(v)
		if !containsValue(out, n) {
			out = append(out, n)
		}
	}
	return out
}

// Apply применяет изменения к документу на месте. Поле, не являющееся массивом,
// при ArrayUnion / ArrayRemove считается пустым массивом.
func Apply(doc Document, updates []Update) {
	for _, u := range updates {
		switch u.Op {
		case UpdateSet:
			doc[u.Field] = cloneValue(u.Value)
		case UpdateUnset:
			delete(doc, u.Field)
		case UpdateArrayUnion:
			arr, _ := doc[u.Field].([]any)
			next := make([]any, 0, len(arr)+len(u.Values))
			next = append(next, arr...)
			for _, v := range u.Values {
				if !containsValue(next, v) {
					next = append(next, cloneValue(v))
				}
			}
			doc[u.Field] = next
		case UpdateArrayRemove:
			arr, _ := doc[u.Field].([]any)
			next := make([]any, 0, len(arr))
			for _, v := range arr {
				if !containsValue(u.Values, v) {
					next = append(next, v)
				}
			}
			doc[u.Field] = next
		}
	}
}
