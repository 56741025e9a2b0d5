package observer

import (
	"reflect"
	"slices"
)

// FromValue converts plain Go data into containers that can be observed.
// Maps with string keys become *Object with keys in sorted order and slices
// become *Array, recursively. Containers and scalars are returned as is.
func FromValue(v any) any {
	switch t := v.(type) {
	case nil, *Object, *Array, *Ref:
		return v
	case map[string]any:
		obj := NewObject()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			obj.Set(k, FromValue(t[k]))
		}
		return obj
	case []any:
		items := make([]any, len(t))
		for i, item := range t {
			items[i] = FromValue(item)
		}
		return NewArray(items...)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = FromValue(rv.Index(i).Interface())
		}
		return NewArray(items...)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return FromValue(m)
	}
	return v
}

// ToValue converts containers back to plain maps and slices, reading
// through getters so the conversion is tracked like any other read.
func ToValue(v any) any {
	switch t := v.(type) {
	case *Object:
		if t == nil {
			return nil
		}
		m := make(map[string]any, t.Len())
		for _, k := range t.Keys() {
			m[k] = ToValue(t.Get(k))
		}
		return m
	case *Array:
		if t == nil {
			return nil
		}
		out := make([]any, t.Len())
		for i := range out {
			out[i] = ToValue(t.At(i))
		}
		return out
	case *Ref:
		return ToValue(t.Value())
	}
	return v
}
