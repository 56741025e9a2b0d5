package observer

import (
	"fmt"
	"strconv"
)

// IsReadonly reports whether v was marked read-only.
func IsReadonly(v any) bool {
	switch t := v.(type) {
	case *Object:
		return t != nil && t.readonly
	case *Array:
		return t != nil && t.readonly
	}
	return false
}

// Set assigns key on target. Adding a new key to an observed object makes
// it reactive and notifies the object's dep, which plain assignment cannot
// do. Array indices go through Splice so the write is observed.
func (s *System) Set(target any, key any, val any) any {
	switch t := target.(type) {
	case *Array:
		if t == nil {
			break
		}
		if IsReadonly(t) {
			s.Warn(fmt.Sprintf("Set operation on key %q failed: target is readonly.", fmt.Sprint(key)))
			return nil
		}
		i, ok := arrayIndex(key)
		if !ok {
			s.Warn(fmt.Sprintf("Cannot set non-index key %q on an array.", fmt.Sprint(key)))
			return nil
		}
		t.SetLen(max(t.Len(), i))
		t.Splice(i, 1, val)
		// mock observers do not intercept array methods
		if ob := t.ob; ob != nil && !ob.shallow && ob.mock {
			s.ObserveWith(val, ObserveOptions{Mock: true})
		}
		return val

	case *Object:
		if t == nil {
			break
		}
		if IsReadonly(t) {
			s.Warn(fmt.Sprintf("Set operation on key %q failed: target is readonly.", fmt.Sprint(key)))
			return nil
		}
		k := fmt.Sprint(key)
		if t.Has(k) {
			t.Set(k, val)
			return val
		}
		ob := t.ob
		if ob != nil && ob.rootCount > 0 {
			s.Warn("Avoid adding reactive properties to a root data object at runtime - declare it upfront.", "key", k)
			return val
		}
		if ob == nil {
			t.Set(k, val)
			return val
		}
		s.defineReactive(t, k, propertyConfig{value: val, hasValue: true, shallow: ob.shallow, mock: ob.mock})
		if s.cfg.Dev {
			ob.dep.NotifyInfo(DebugEvent{Target: t, Type: OpAdd, Key: k, NewValue: val})
		} else {
			ob.dep.Notify()
		}
		return val
	}
	s.Warn(fmt.Sprintf("Cannot set reactive property on undefined, null, or primitive value: %v", target))
	return nil
}

// Delete removes key from target and notifies the target's dep.
func (s *System) Delete(target any, key any) {
	switch t := target.(type) {
	case *Array:
		if t == nil {
			break
		}
		if IsReadonly(t) {
			s.Warn(fmt.Sprintf("Delete operation on key %q failed: target is readonly.", fmt.Sprint(key)))
			return
		}
		if i, ok := arrayIndex(key); ok {
			t.Splice(i, 1)
		}
		return

	case *Object:
		if t == nil {
			break
		}
		ob := t.ob
		if ob != nil && ob.rootCount > 0 {
			s.Warn("Avoid deleting properties on a root data object - just set it to nil.", "key", fmt.Sprint(key))
			return
		}
		if IsReadonly(t) {
			s.Warn(fmt.Sprintf("Delete operation on key %q failed: target is readonly.", fmt.Sprint(key)))
			return
		}
		k := fmt.Sprint(key)
		if !t.Has(k) {
			return
		}
		if !t.Delete(k) || ob == nil {
			return
		}
		if s.cfg.Dev {
			ob.dep.NotifyInfo(DebugEvent{Target: t, Type: OpDelete, Key: k})
		} else {
			ob.dep.Notify()
		}
		return
	}
	s.Warn(fmt.Sprintf("Cannot delete reactive property on undefined, null, or primitive value: %v", target))
}

// arrayIndex accepts non-negative ints and their decimal string forms.
func arrayIndex(key any) (int, bool) {
	switch k := key.(type) {
	case int:
		return k, k >= 0
	case int64:
		return int(k), k >= 0
	case uint:
		return int(k), true
	case float64:
		i := int(k)
		return i, k >= 0 && float64(i) == k
	case string:
		i, err := strconv.Atoi(k)
		return i, err == nil && i >= 0
	}
	return 0, false
}
