// Package component ties reactive data, computed properties, watchers and a
// rendered view together into one instance.
package component

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"

	"github.com/delaneyj/observa/compiler"
	"github.com/delaneyj/observa/observer"
	"github.com/delaneyj/observa/view"
)

// Computed defines a derived property. With caching (the default) Get runs
// only when a dependency changed since the last read.
type Computed struct {
	Get   func(c *Component) (any, error)
	Set   func(c *Component, v any) error
	Cache *bool
}

// Handler receives watch notifications.
type Handler func(c *Component, newValue, oldValue any) error

type Watch struct {
	Handler   Handler
	Deep      bool
	Sync      bool
	Immediate bool
}

type Hook func(c *Component)

type Options struct {
	Name string
	// Data is a map[string]any or an *observer.Object. It becomes the
	// component's root data object.
	Data     any
	Computed map[string]Computed
	// Watch maps dot-delimited paths to their handlers.
	Watch           map[string][]Watch
	Template        string
	CompilerOptions compiler.Options
	// Sink receives every render of the template.
	Sink io.Writer

	BeforeMount   Hook
	Mounted       Hook
	BeforeUpdate  Hook
	Updated       Hook
	BeforeDestroy Hook
	Destroyed     Hook
}

type Component struct {
	sys    *observer.System
	opts   Options
	logger *slog.Logger

	data     *observer.Object
	computed map[string]*computedProp
	watchers []*observer.Watcher
	view     *view.View

	mounted   bool
	destroyed bool
}

type computedProp struct {
	def     Computed
	watcher *observer.Watcher
}

// ViewNode keeps components out of reactive data.
func (c *Component) ViewNode() {}

// New creates a component: data is observed, then computed properties and
// watches are set up in that order, then the template is mounted.
func New(sys *observer.System, opts Options) (*Component, error) {
	name := opts.Name
	if name == "" {
		name = "anonymous"
	}
	c := &Component{
		sys:      sys,
		opts:     opts,
		logger:   sys.Logger().With("component", name),
		computed: map[string]*computedProp{},
	}

	c.initData()
	c.initComputed()
	if err := c.initWatch(); err != nil {
		return nil, err
	}
	if opts.Template != "" {
		if err := c.Mount(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Component) initData() {
	switch d := c.opts.Data.(type) {
	case nil:
		c.data = observer.NewObject()
	case *observer.Object:
		c.data = d
	default:
		obj, ok := observer.FromValue(d).(*observer.Object)
		if !ok {
			c.sys.Warn("data should be an object", "component", c.opts.Name, "type", fmt.Sprintf("%T", d))
			obj = observer.NewObject()
		}
		c.data = obj
	}
	if ob := c.sys.Observe(c.data); ob != nil {
		ob.AddRoot()
	}
}

func (c *Component) initComputed() {
	keys := make([]string, 0, len(c.opts.Computed))
	for k := range c.opts.Computed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		def := c.opts.Computed[key]
		if def.Get == nil {
			c.sys.Warn(fmt.Sprintf("Getter is missing for computed property %q.", key), "component", c.opts.Name)
			continue
		}
		if c.data.Has(key) {
			c.sys.Warn(fmt.Sprintf("The computed property %q is already defined in data.", key), "component", c.opts.Name)
			continue
		}

		p := &computedProp{def: def}
		if def.Cache == nil || *def.Cache {
			// lazy, so nothing is evaluated and no error can come back yet
			p.watcher, _ = observer.NewWatcher(c.sys, func() (any, error) {
				return def.Get(c)
			}, nil, &observer.WatcherOptions{Lazy: true})
		}
		c.computed[key] = p
	}
}

func (c *Component) initWatch() error {
	keys := make([]string, 0, len(c.opts.Watch))
	for k := range c.opts.Watch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, w := range c.opts.Watch[key] {
			if _, err := c.Watch(key, w); err != nil {
				return err
			}
		}
	}
	return nil
}

// Watch watches a dot-delimited path resolved against the component and
// returns a function that stops it.
func (c *Component) Watch(path string, w Watch) (func(), error) {
	return c.watch(path, func(cb observer.Callback, opts *observer.WatcherOptions) (*observer.Watcher, error) {
		return observer.NewPathWatcher(c.sys, c, path, cb, opts)
	}, w)
}

// WatchFunc is Watch over an arbitrary getter.
func (c *Component) WatchFunc(getter func(c *Component) (any, error), w Watch) (func(), error) {
	return c.watch("", func(cb observer.Callback, opts *observer.WatcherOptions) (*observer.Watcher, error) {
		return observer.NewWatcher(c.sys, func() (any, error) { return getter(c) }, cb, opts)
	}, w)
}

func (c *Component) watch(path string, create func(observer.Callback, *observer.WatcherOptions) (*observer.Watcher, error), w Watch) (func(), error) {
	if w.Handler == nil {
		c.sys.Warn("watch handler is missing", "component", c.opts.Name, "path", path)
		return func() {}, nil
	}
	watcher, err := create(func(newValue, oldValue any) error {
		return w.Handler(c, newValue, oldValue)
	}, &observer.WatcherOptions{User: true, Deep: w.Deep, Sync: w.Sync})
	if err != nil {
		return nil, err
	}
	c.watchers = append(c.watchers, watcher)

	if w.Immediate {
		info := fmt.Sprintf("callback for immediate watcher %q", watcher.Expression())
		c.sys.Untracked(func() {
			c.sys.InvokeWithErrorHandling(func() error {
				return w.Handler(c, watcher.Value(), nil)
			}, c, info)
		})
	}

	return func() {
		watcher.Teardown()
		c.watchers = slices.DeleteFunc(c.watchers, func(x *observer.Watcher) bool { return x == watcher })
	}, nil
}

// Lookup resolves name as a computed property, then as data. "$data"
// returns the root data object.
func (c *Component) Lookup(name string) (any, bool) {
	if name == "$data" {
		return c.data, true
	}
	if p, ok := c.computed[name]; ok {
		return c.computedValue(name, p), true
	}
	return c.data.Lookup(name)
}

// Get is Lookup without the found flag.
func (c *Component) Get(name string) any {
	v, _ := c.Lookup(name)
	return v
}

func (c *Component) computedValue(name string, p *computedProp) any {
	if p.watcher == nil {
		v, err := p.def.Get(c)
		if err != nil {
			c.sys.HandleError(err, c, fmt.Sprintf("computed getter %q", name))
		}
		return v
	}
	w := p.watcher
	if w.Dirty() {
		if err := w.Evaluate(); err != nil {
			c.sys.HandleError(err, c, fmt.Sprintf("computed getter %q", name))
		}
	}
	if c.sys.Target() != nil {
		w.Depend()
	}
	return w.Value()
}

// Set assigns a data or computed property. Keys that are neither are
// refused, since root data must be declared upfront.
func (c *Component) Set(name string, v any) {
	if p, ok := c.computed[name]; ok {
		if p.def.Set == nil {
			c.sys.Warn(fmt.Sprintf("Computed property %q was assigned to but it has no setter.", name), "component", c.opts.Name)
			return
		}
		c.sys.InvokeWithErrorHandling(func() error {
			return p.def.Set(c, v)
		}, c, fmt.Sprintf("computed setter %q", name))
		return
	}
	if c.data.Has(name) {
		c.data.Set(name, v)
		return
	}
	c.sys.Set(c.data, name, v)
}

// SetReactive adds or updates key on target so that the change is seen.
func (c *Component) SetReactive(target any, key any, v any) any {
	return c.sys.Set(target, key, v)
}

func (c *Component) DeleteReactive(target any, key any) {
	c.sys.Delete(target, key)
}

// NextTick defers fn until after the pending re-renders.
func (c *Component) NextTick(fn func() error) {
	c.sys.NextTick(fn)
}

// Mount compiles the template and renders it behind a render watcher. The
// render watcher is created after every watch, so watches run first in a
// flush.
func (c *Component) Mount() error {
	if c.mounted {
		return nil
	}
	result, err := compiler.Compile(c.opts.Template, c.opts.CompilerOptions)
	if err != nil {
		return fmt.Errorf("compile template for %s: %w", c.opts.Name, err)
	}

	c.callHook("beforeMount", c.opts.BeforeMount)
	v, err := view.Mount(c.sys, result, c, view.Options{
		Sink:         c.opts.Sink,
		BeforeUpdate: func() { c.callHook("beforeUpdate", c.opts.BeforeUpdate) },
		Updated:      func() { c.callHook("updated", c.opts.Updated) },
	})
	if err != nil {
		return err
	}
	c.view = v
	c.mounted = true
	c.callHook("mounted", c.opts.Mounted)
	return nil
}

func (c *Component) callHook(name string, h Hook) {
	if h == nil {
		return
	}
	c.sys.Untracked(func() {
		c.sys.InvokeWithErrorHandling(func() error {
			h(c)
			return nil
		}, c, name+" hook")
	})
}

// Destroy tears down every watcher the component owns.
func (c *Component) Destroy() {
	if c.destroyed {
		return
	}
	c.callHook("beforeDestroy", c.opts.BeforeDestroy)
	c.destroyed = true

	if c.view != nil {
		c.view.Destroy()
	}
	for _, w := range c.watchers {
		w.Teardown()
	}
	c.watchers = nil
	for _, p := range c.computed {
		if p.watcher != nil {
			p.watcher.Teardown()
		}
	}
	if ob := c.data.Observer(); ob != nil {
		ob.RemoveRoot()
	}
	c.callHook("destroyed", c.opts.Destroyed)
	c.logger.Debug("destroyed")
}

func (c *Component) Name() string { return c.opts.Name }
func (c *Component) System() *observer.System { return c.sys }
func (c *Component) Data() *observer.Object { return c.data }
func (c *Component) View() *view.View { return c.view }
func (c *Component) Destroyed() bool { return c.destroyed }
func (c *Component) Watchers() []*observer.Watcher { return slices.Clone(c.watchers) }

// HTML returns the last rendered output, or "" when there is no template.
func (c *Component) HTML() string {
	if c.view == nil {
		return ""
	}
	return c.view.HTML()
}

// ComputedKeys lists the computed property names in sorted order.
func (c *Component) ComputedKeys() []string {
	keys := make([]string, 0, len(c.computed))
	for k := range c.computed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ComputedWatcher returns the cached watcher behind a computed property, or
// nil for uncached ones.
func (c *Component) ComputedWatcher(name string) *observer.Watcher {
	if p, ok := c.computed[name]; ok {
		return p.watcher
	}
	return nil
}
