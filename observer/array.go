package observer

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ArrayMutator is the set of operations that change an Array in place.
type ArrayMutator interface {
	Push(items ...any) int
	Pop() any
	Shift() any
	Unshift(items ...any) int
	Splice(start, deleteCount int, items ...any) []any
	Sort(less func(x, y any) bool)
	Reverse()
}

// Array is an ordered container. Element reads and index writes are plain;
// only the ArrayMutator methods are observable once the array is observed.
type Array struct {
	items   []any
	methods ArrayMutator

	ob         *Observer
	extensible bool
	frozen     bool
	skip       bool
	readonly   bool
}

func NewArray(items ...any) *Array {
	return &Array{items: append([]any(nil), items...), extensible: true}
}

func (a *Array) mutator() ArrayMutator {
	if a.methods != nil {
		return a.methods
	}
	return nativeArray{a}
}

func (a *Array) Len() int { return len(a.items) }

// At returns the element at i, or nil when i is out of range.
func (a *Array) At(i int) any {
	if i < 0 || i >= len(a.items) {
		return nil
	}
	return a.items[i]
}

// SetAt writes index i directly. Like any index write it is not observed;
// use Set on the System for a reactive write.
func (a *Array) SetAt(i int, v any) {
	if a.frozen || i < 0 {
		return
	}
	if i >= len(a.items) {
		if !a.extensible {
			return
		}
		a.SetLen(i + 1)
	}
	a.items[i] = v
}

// SetLen truncates or pads the array with nils.
func (a *Array) SetLen(n int) {
	if a.frozen || n < 0 {
		return
	}
	if n <= len(a.items) {
		clear(a.items[n:])
		a.items = a.items[:n]
		return
	}
	a.items = append(a.items, make([]any, n-len(a.items))...)
}

// Items returns a copy of the elements.
func (a *Array) Items() []any {
	return append([]any(nil), a.items...)
}

func (a *Array) Push(items ...any) int {
	return a.mutator().Push(items...)
}

func (a *Array) Pop() any {
	return a.mutator().Pop()
}

func (a *Array) Shift() any {
	return a.mutator().Shift()
}

func (a *Array) Unshift(items ...any) int {
	return a.mutator().Unshift(items...)
}

// Splice removes deleteCount elements at start and inserts items there.
// A negative start counts back from the end.
func (a *Array) Splice(start, deleteCount int, items ...any) []any {
	return a.mutator().Splice(start, deleteCount, items...)
}

// Sort sorts stably; a nil less compares string forms.
func (a *Array) Sort(less func(x, y any) bool) {
	a.mutator().Sort(less)
}

func (a *Array) Reverse() {
	a.mutator().Reverse()
}

func (a *Array) PreventExtensions() *Array {
	a.extensible = false
	return a
}

func (a *Array) Freeze() *Array {
	a.extensible = false
	a.frozen = true
	return a
}

func (a *Array) IsExtensible() bool { return a.extensible }
func (a *Array) IsFrozen() bool     { return a.frozen }

func (a *Array) MarkRaw() *Array {
	a.skip = true
	return a
}

func (a *Array) MarkReadonly() *Array {
	a.readonly = true
	return a
}

func (a *Array) Observer() *Observer {
	return a.ob
}

func (a *Array) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, len(a.items))
	for i, v := range a.items {
		b, err := marshalValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return json.Marshal(out)
}

// nativeArray performs the mutations with no notification.
type nativeArray struct {
	a *Array
}

func (n nativeArray) Push(items ...any) int {
	if !n.a.extensible {
		return len(n.a.items)
	}
	n.a.items = append(n.a.items, items...)
	return len(n.a.items)
}

func (n nativeArray) Pop() any {
	if n.a.frozen || len(n.a.items) == 0 {
		return nil
	}
	last := len(n.a.items) - 1
	v := n.a.items[last]
	n.a.items[last] = nil
	n.a.items = n.a.items[:last]
	return v
}

func (n nativeArray) Shift() any {
	if n.a.frozen || len(n.a.items) == 0 {
		return nil
	}
	v := n.a.items[0]
	n.a.items[0] = nil
	n.a.items = n.a.items[1:]
	return v
}

func (n nativeArray) Unshift(items ...any) int {
	if !n.a.extensible {
		return len(n.a.items)
	}
	n.a.items = append(append([]any(nil), items...), n.a.items...)
	return len(n.a.items)
}

func (n nativeArray) Splice(start, deleteCount int, items ...any) []any {
	if n.a.frozen {
		return nil
	}
	l := len(n.a.items)
	if start < 0 {
		start = max(l+start, 0)
	}
	start = min(start, l)
	deleteCount = min(max(deleteCount, 0), l-start)
	if !n.a.extensible && len(items) > deleteCount {
		return nil
	}

	removed := append([]any(nil), n.a.items[start:start+deleteCount]...)
	tail := append([]any(nil), n.a.items[start+deleteCount:]...)
	n.a.items = append(append(n.a.items[:start], items...), tail...)
	return removed
}

func (n nativeArray) Sort(less func(x, y any) bool) {
	if n.a.frozen {
		return
	}
	if less == nil {
		less = defaultLess
	}
	sort.SliceStable(n.a.items, func(i, j int) bool {
		return less(n.a.items[i], n.a.items[j])
	})
}

func (n nativeArray) Reverse() {
	if n.a.frozen {
		return
	}
	for i, j := 0, len(n.a.items)-1; i < j; i, j = i+1, j-1 {
		n.a.items[i], n.a.items[j] = n.a.items[j], n.a.items[i]
	}
}

// defaultLess compares string forms, with nils sorted last.
func defaultLess(a, b any) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

// interceptedArray decorates the native mutations of an observed array:
// inserted elements are observed and the array's dep is notified after
// each call.
type interceptedArray struct {
	native ArrayMutator
	ob     *Observer
}

func (m interceptedArray) notify(method string) {
	if m.ob.sys.cfg.Dev {
		m.ob.dep.NotifyInfo(DebugEvent{Type: OpArrayMutation, Target: m.ob.value, Key: method})
		return
	}
	m.ob.dep.Notify()
}

func (m interceptedArray) Push(items ...any) int {
	n := m.native.Push(items...)
	m.ob.observeArray(items)
	m.notify("push")
	return n
}

func (m interceptedArray) Pop() any {
	v := m.native.Pop()
	m.notify("pop")
	return v
}

func (m interceptedArray) Shift() any {
	v := m.native.Shift()
	m.notify("shift")
	return v
}

func (m interceptedArray) Unshift(items ...any) int {
	n := m.native.Unshift(items...)
	m.ob.observeArray(items)
	m.notify("unshift")
	return n
}

func (m interceptedArray) Splice(start, deleteCount int, items ...any) []any {
	removed := m.native.Splice(start, deleteCount, items...)
	m.ob.observeArray(items)
	m.notify("splice")
	return removed
}

func (m interceptedArray) Sort(less func(x, y any) bool) {
	m.native.Sort(less)
	m.notify("sort")
}

func (m interceptedArray) Reverse() {
	m.native.Reverse()
	m.notify("reverse")
}
