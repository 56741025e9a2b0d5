package observer

// Ref is a reactive cell holding a single value. A Ref stored in a reactive
// property is unwrapped on read and written through on assignment unless
// the property is shallow.
type Ref struct {
	box     *Object
	dep     *Dep
	shallow bool
}

func (s *System) NewRef(v any) *Ref {
	return s.newRef(v, false)
}

// ShallowRef does not observe the value it holds.
func (s *System) ShallowRef(v any) *Ref {
	return s.newRef(v, true)
}

func (s *System) newRef(v any, shallow bool) *Ref {
	if r, ok := v.(*Ref); ok {
		return r
	}
	r := &Ref{box: NewObject(), shallow: shallow}
	opts := []PropertyOption{InitialValue(v)}
	if shallow {
		opts = append(opts, ShallowProperty())
	}
	if s.cfg.ServerRendering {
		opts = append(opts, MockProperty())
	}
	r.dep = s.DefineReactive(r.box, "value", opts...)
	return r
}

func (r *Ref) Value() any {
	return r.box.Get("value")
}

func (r *Ref) SetValue(v any) {
	r.box.Set("value", v)
}

// Trigger notifies subscribers without changing the value, for shallow refs
// whose contents were mutated.
func (r *Ref) Trigger() {
	r.dep.Notify()
}

func (r *Ref) Dep() *Dep {
	return r.dep
}

func (r *Ref) IsShallow() bool {
	return r.shallow
}

func (r *Ref) MarshalJSON() ([]byte, error) {
	return marshalValue(r.Value())
}

func IsRef(v any) bool {
	r, ok := v.(*Ref)
	return ok && r != nil
}

// Unref returns the value held by v if it is a Ref, else v.
func Unref(v any) any {
	if r, ok := v.(*Ref); ok && r != nil {
		return r.Value()
	}
	return v
}
