package observer

// ViewNode marks values that belong to a rendered view tree. They are
// never observed.
type ViewNode interface {
	ViewNode()
}

// Observer is attached to each observed Object or Array. It converts the
// object's properties into reactive accessors, or decorates the array's
// mutations, and owns the dep notified when keys are added or removed or
// the array is mutated.
type Observer struct {
	sys       *System
	value     any
	dep       *Dep
	rootCount int
	shallow   bool
	mock      bool
}

type ObserveOptions struct {
	// Shallow observes only the top level of the value.
	Shallow bool
	// Mock attaches an observer with a no-op dep and no array
	// interception, even when server rendering.
	Mock bool
}

// Observe returns the observer for value, creating it if value is an
// extensible Object or Array not marked raw. It returns nil for anything
// that cannot be observed.
func (s *System) Observe(value any) *Observer {
	return s.ObserveWith(value, ObserveOptions{})
}

func (s *System) ObserveWith(value any, opts ObserveOptions) *Observer {
	if ob := ObserverOf(value); ob != nil {
		return ob
	}
	if !s.shouldObserve || (s.cfg.ServerRendering && !opts.Mock) {
		return nil
	}
	if _, ok := value.(ViewNode); ok {
		return nil
	}
	switch v := value.(type) {
	case *Object:
		if v == nil || !v.extensible || v.skip {
			return nil
		}
	case *Array:
		if v == nil || !v.extensible || v.skip {
			return nil
		}
	default:
		return nil
	}
	return s.newObserver(value, opts.Shallow, opts.Mock)
}

func (s *System) newObserver(value any, shallow, mock bool) *Observer {
	ob := &Observer{
		sys:     s,
		value:   value,
		shallow: shallow,
		mock:    mock,
	}
	if mock {
		ob.dep = s.mockDep()
	} else {
		ob.dep = s.NewDep()
	}

	switch v := value.(type) {
	case *Array:
		v.ob = ob
		if !mock {
			v.methods = interceptedArray{native: nativeArray{v}, ob: ob}
		}
		if !shallow {
			ob.observeArray(v.items)
		}
	case *Object:
		v.ob = ob
		for _, key := range v.Keys() {
			cfg := propertyConfig{shallow: shallow, mock: mock}
			s.defineReactive(v, key, cfg)
		}
	}
	return ob
}

// ObserverOf returns the observer already attached to value, or nil.
func ObserverOf(value any) *Observer {
	switch v := value.(type) {
	case *Object:
		if v != nil {
			return v.ob
		}
	case *Array:
		if v != nil {
			return v.ob
		}
	}
	return nil
}

func (ob *Observer) observeArray(items []any) {
	for _, item := range items {
		ob.sys.ObserveWith(item, ObserveOptions{Mock: ob.mock})
	}
}

func (ob *Observer) Value() any    { return ob.value }
func (ob *Observer) Dep() *Dep     { return ob.dep }
func (ob *Observer) Shallow() bool { return ob.shallow }
func (ob *Observer) Mock() bool    { return ob.mock }

// AddRoot records that a component uses the value as its root data.
func (ob *Observer) AddRoot() {
	ob.rootCount++
}

func (ob *Observer) RemoveRoot() {
	if ob.rootCount > 0 {
		ob.rootCount--
	}
}

// RootCount is the number of components using the value as root data.
func (ob *Observer) RootCount() int {
	return ob.rootCount
}

type propertyConfig struct {
	value        any
	hasValue     bool
	customSetter func()
	shallow      bool
	mock         bool
}

type PropertyOption func(*propertyConfig)

// InitialValue sets the property's value instead of reading the current
// one from the object.
func InitialValue(v any) PropertyOption {
	return func(c *propertyConfig) {
		c.value = v
		c.hasValue = true
	}
}

// CustomSetter is called before every write that changes the value.
func CustomSetter(fn func()) PropertyOption {
	return func(c *propertyConfig) {
		c.customSetter = fn
	}
}

// ShallowProperty leaves the value itself unobserved and disables Ref
// unwrapping.
func ShallowProperty() PropertyOption {
	return func(c *propertyConfig) {
		c.shallow = true
	}
}

func MockProperty() PropertyOption {
	return func(c *propertyConfig) {
		c.mock = true
	}
}

// DefineReactive turns key on obj into a reactive property and returns its
// dep. Non-configurable properties are left alone and nil is returned.
func (s *System) DefineReactive(obj *Object, key string, opts ...PropertyOption) *Dep {
	var cfg propertyConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return s.defineReactive(obj, key, cfg)
}

func (s *System) defineReactive(obj *Object, key string, cfg propertyConfig) *Dep {
	prop, exists := obj.OwnPropertyDescriptor(key)
	if exists && !prop.Configurable {
		return nil
	}

	// keep pre-defined accessors
	getter, setter := prop.Get, prop.Set
	val := cfg.value
	if (getter == nil || setter != nil) && !cfg.hasValue {
		val = obj.Get(key)
	}
	shallow, mock := cfg.shallow, cfg.mock

	dep := s.NewDep()
	var childOb *Observer
	if shallow {
		childOb = ObserverOf(val)
	} else {
		childOb = s.ObserveWith(val, ObserveOptions{Mock: mock})
	}

	get := func() any {
		value := val
		if getter != nil {
			value = getter()
		}
		if s.target != nil {
			if s.cfg.Dev {
				dep.DependInfo(DebugEvent{Target: obj, Type: OpGet, Key: key})
			} else {
				dep.Depend()
			}
			if childOb != nil {
				childOb.dep.Depend()
				if arr, ok := value.(*Array); ok {
					dependArray(arr)
				}
			}
		}
		if r, ok := value.(*Ref); ok && !shallow {
			return r.Value()
		}
		return value
	}

	set := func(newVal any) {
		value := val
		if getter != nil {
			value = getter()
		}
		if !hasChanged(value, newVal) {
			return
		}
		if cfg.customSetter != nil {
			cfg.customSetter()
		}
		switch r, isRef := value.(*Ref); {
		case setter != nil:
			setter(newVal)
		case getter != nil:
			// accessor without setter
			return
		case !shallow && isRef && !IsRef(newVal):
			r.SetValue(newVal)
			return
		default:
			val = newVal
		}
		if shallow {
			childOb = ObserverOf(newVal)
		} else {
			childOb = s.ObserveWith(newVal, ObserveOptions{Mock: mock})
		}
		if s.cfg.Dev {
			dep.NotifyInfo(DebugEvent{Target: obj, Type: OpSet, Key: key, NewValue: newVal, OldValue: value})
		} else {
			dep.Notify()
		}
	}

	obj.DefineProperty(key, Descriptor{
		Get:          get,
		Set:          set,
		Enumerable:   true,
		Configurable: true,
	})
	return dep
}

// dependArray collects the element observers of arr, since element access
// is not intercepted the way property access is.
func dependArray(arr *Array) {
	for _, e := range arr.items {
		if ob := ObserverOf(e); ob != nil {
			ob.dep.Depend()
		}
		if inner, ok := e.(*Array); ok {
			dependArray(inner)
		}
	}
}
