package observer

import mapset "github.com/deckarep/golang-set/v2"

// traverse reads every nested property of val so that all of them are
// collected as dependencies of the current target.
func traverse(val any) {
	seen := mapset.NewThreadUnsafeSet[uint64]()
	traverseInto(val, seen)
}

func traverseInto(val any, seen mapset.Set[uint64]) {
	switch v := val.(type) {
	case *Object:
		if v == nil || v.skip || v.frozen {
			return
		}
	case *Array:
		if v == nil || v.skip || v.frozen {
			return
		}
	case *Ref:
		if v == nil {
			return
		}
	default:
		return
	}

	if ob := ObserverOf(val); ob != nil {
		if !seen.Add(ob.dep.id) {
			return
		}
	}

	switch v := val.(type) {
	case *Array:
		for i := len(v.items) - 1; i >= 0; i-- {
			traverseInto(v.items[i], seen)
		}
	case *Ref:
		traverseInto(v.Value(), seen)
	case *Object:
		keys := v.Keys()
		for i := len(keys) - 1; i >= 0; i-- {
			traverseInto(v.Get(keys[i]), seen)
		}
	}
}
