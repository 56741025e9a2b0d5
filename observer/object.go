package observer

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Descriptor describes one property of an Object. A property is either a
// data property (Value, Writable) or an accessor (Get, Set).
type Descriptor struct {
	Value        any
	Get          func() any
	Set          func(v any)
	Writable     bool
	Enumerable   bool
	Configurable bool
}

func (d Descriptor) isAccessor() bool {
	return d.Get != nil || d.Set != nil
}

// Object is a keyed container whose properties are reached through Get and
// Set. Reactivity is installed per property by replacing its descriptor
// with an accessor pair, so all field access must go through these methods.
type Object struct {
	keys  []string
	props map[string]*Descriptor

	ob         *Observer
	extensible bool
	frozen     bool
	skip       bool
	readonly   bool
}

func NewObject() *Object {
	return &Object{
		props:      map[string]*Descriptor{},
		extensible: true,
	}
}

// With adds a plain data property and returns o for chaining.
func (o *Object) With(key string, value any) *Object {
	o.Set(key, value)
	return o
}

// Get returns the value of key, invoking its getter if it has one.
func (o *Object) Get(key string) any {
	v, _ := o.Lookup(key)
	return v
}

// Lookup is Get that also reports whether the property exists.
func (o *Object) Lookup(key string) (any, bool) {
	p, ok := o.props[key]
	if !ok {
		return nil, false
	}
	if p.Get != nil {
		return p.Get(), true
	}
	if p.Set != nil {
		return nil, true
	}
	return p.Value, true
}

// Set assigns value to key. Setters are invoked, accessors without a setter
// and read-only data properties ignore the write, and a missing key is
// added as a plain (non-reactive) property unless o is not extensible.
func (o *Object) Set(key string, value any) {
	p, ok := o.props[key]
	if !ok {
		if !o.extensible {
			return
		}
		o.keys = append(o.keys, key)
		o.props[key] = &Descriptor{Value: value, Writable: true, Enumerable: true, Configurable: true}
		return
	}
	switch {
	case p.Set != nil:
		p.Set(value)
	case p.Get != nil:
	case p.Writable:
		p.Value = value
	}
}

func (o *Object) Has(key string) bool {
	_, ok := o.props[key]
	return ok
}

// Keys returns the enumerable keys in insertion order.
func (o *Object) Keys() []string {
	out := make([]string, 0, len(o.keys))
	for _, k := range o.keys {
		if o.props[k].Enumerable {
			out = append(out, k)
		}
	}
	return out
}

func (o *Object) Len() int {
	return len(o.Keys())
}

// Delete removes key. It fails for non-configurable properties.
func (o *Object) Delete(key string) bool {
	p, ok := o.props[key]
	if !ok {
		return true
	}
	if !p.Configurable {
		return false
	}
	delete(o.props, key)
	o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == key })
	return true
}

// DefineProperty installs or replaces the descriptor for key. Replacing a
// non-configurable property or adding to a non-extensible object fails.
func (o *Object) DefineProperty(key string, d Descriptor) bool {
	p, ok := o.props[key]
	if ok && !p.Configurable {
		return false
	}
	if !ok && !o.extensible {
		return false
	}
	if d.isAccessor() {
		d.Value, d.Writable = nil, false
	}
	if !ok {
		o.keys = append(o.keys, key)
	}
	o.props[key] = &d
	return true
}

// OwnPropertyDescriptor returns a copy of the descriptor for key.
func (o *Object) OwnPropertyDescriptor(key string) (Descriptor, bool) {
	p, ok := o.props[key]
	if !ok {
		return Descriptor{}, false
	}
	return *p, true
}

func (o *Object) PreventExtensions() *Object {
	o.extensible = false
	return o
}

// Freeze makes o non-extensible and every property read-only and
// non-configurable.
func (o *Object) Freeze() *Object {
	o.extensible = false
	o.frozen = true
	for _, p := range o.props {
		p.Configurable = false
		if !p.isAccessor() {
			p.Writable = false
		}
	}
	return o
}

func (o *Object) IsExtensible() bool { return o.extensible }
func (o *Object) IsFrozen() bool     { return o.frozen }

// MarkRaw flags o so it is never observed.
func (o *Object) MarkRaw() *Object {
	o.skip = true
	return o
}

// MarkReadonly makes Set and Delete from this package refuse o.
func (o *Object) MarkReadonly() *Object {
	o.readonly = true
	return o
}

// Observer returns the observer attached to o, or nil.
func (o *Object) Observer() *Observer {
	return o.ob
}

// MarshalJSON reads every enumerable property through Get, so encoding an
// object inside an evaluation depends on all of it.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshalValue(o.Get(k))
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalValue(v any) ([]byte, error) {
	if r, ok := v.(*Ref); ok {
		v = r.Value()
	}
	return json.Marshal(v)
}
