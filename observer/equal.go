package observer

import (
	"math"
	"reflect"
)

// hasChanged reports whether y differs from x. It is strict equality
// except that NaN is unchanged from NaN; +0 and -0 are the same value.
func hasChanged(x, y any) bool {
	if strictEqual(x, y) {
		return false
	}
	return !(isNaN(x) && isNaN(y))
}

// strictEqual is identity for reference-like values and == for the rest.
// NaN is unequal to itself and +0 equals -0.
func strictEqual(x, y any) (eq bool) {
	if x == nil || y == nil {
		return isNil(x) && isNil(y)
	}
	tx, ty := reflect.TypeOf(x), reflect.TypeOf(y)
	if tx != ty {
		return false
	}
	if !tx.Comparable() {
		vx, vy := reflect.ValueOf(x), reflect.ValueOf(y)
		switch tx.Kind() {
		case reflect.Slice:
			return vx.Pointer() == vy.Pointer() && vx.Len() == vy.Len()
		case reflect.Map, reflect.Func:
			return vx.Pointer() == vy.Pointer()
		}
		return false
	}
	// structs holding interfaces can still panic on ==
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return x == y
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func isNaN(v any) bool {
	switch n := v.(type) {
	case float64:
		return math.IsNaN(n)
	case float32:
		return math.IsNaN(float64(n))
	}
	return false
}

// isObject reports whether v is a reference value whose contents may change
// without its identity changing.
func isObject(v any) bool {
	switch v.(type) {
	case nil:
		return false
	case *Object, *Array, *Ref:
		return !isNil(v)
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Struct:
		return !isNil(v)
	}
	return false
}
