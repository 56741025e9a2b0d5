package appfile

import (
	"context"
	"fmt"
	"sort"

	"github.com/delaneyj/observa/compiler"
	"github.com/delaneyj/observa/component"
	"github.com/delaneyj/observa/internal/ctxlog"
	"github.com/delaneyj/observa/observer"
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// DefaultMaxTicks bounds how many ticks one step may take to settle.
const DefaultMaxTicks = 100

const (
	EventRender = "render"
	EventWatch  = "watch"
)

// Event is reported for every render and every watch notification while an
// app runs.
type Event struct {
	// Step is the name of the step being applied, or "mount".
	Step     string
	Kind     string
	Path     string
	Message  string
	NewValue any
	OldValue any
	HTML     string
}

type runner struct {
	app      *App
	sys      *observer.System
	onEvent  func(Event)
	step     string
	maxTicks int
}

// Run mounts the app's component on sys and applies its steps one by one,
// draining the tick queue after each. The component is returned even when
// a step fails so the caller can inspect its state.
func (a *App) Run(ctx context.Context, sys *observer.System, onEvent func(Event)) (*component.Component, error) {
	ctx, logger := ctxlog.With(ctx, "app", a.Name)
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	r := &runner{app: a, sys: sys, onEvent: onEvent, step: "mount", maxTicks: a.MaxTicks}
	if r.maxTicks <= 0 {
		r.maxTicks = DefaultMaxTicks
	}

	opts, err := r.options()
	if err != nil {
		return nil, err
	}
	c, err := component.New(sys, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create component %s: %w", a.Name, err)
	}
	if err := sys.Drain(r.maxTicks); err != nil {
		return c, fmt.Errorf("mount: %w", err)
	}

	for _, st := range a.Steps {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		r.step = st.Name
		_, stepLogger := ctxlog.With(ctx, "step", st.Name)
		stepLogger.Debug("Applying step.")
		if err := r.apply(c, st); err != nil {
			return c, fmt.Errorf("step %q: %w", st.Name, err)
		}
		if err := sys.Drain(r.maxTicks); err != nil {
			return c, fmt.Errorf("step %q: %w", st.Name, err)
		}
	}
	logger.Debug("App finished.", "steps", len(a.Steps), "html_bytes", len(c.HTML()))
	return c, nil
}

func (r *runner) options() (component.Options, error) {
	a := r.app
	data := observer.NewObject()
	for _, f := range a.Data {
		data.Set(f.Name, observer.FromValue(f.Value))
	}

	opts := component.Options{
		Name:            a.Name,
		Data:            data,
		Template:        a.Template,
		CompilerOptions: a.CompilerOptions,
		Computed:        make(map[string]component.Computed, len(a.Computed)),
		Watch:           make(map[string][]component.Watch, len(a.Watches)),
	}
	if a.Template != "" {
		render := func(c *component.Component) {
			r.onEvent(Event{Step: r.step, Kind: EventRender, HTML: c.HTML()})
		}
		opts.Mounted = render
		opts.Updated = render
	}

	for _, cd := range a.Computed {
		expr := cd.Expr
		opts.Computed[cd.Name] = component.Computed{
			Get: func(c *component.Component) (any, error) {
				return evalExpr(c, expr)
			},
			Cache: cd.Cache,
		}
	}

	for _, w := range a.Watches {
		var msg *compiler.Result
		if w.Message != "" {
			res, err := compiler.Compile(w.Message, a.CompilerOptions)
			if err != nil {
				return opts, fmt.Errorf("message for watch %q: %w", w.Path, err)
			}
			msg = res
		}
		path := w.Path
		opts.Watch[path] = append(opts.Watch[path], component.Watch{
			Deep:      w.Deep,
			Sync:      w.Sync,
			Immediate: w.Immediate,
			Handler: func(c *component.Component, newValue, oldValue any) error {
				ev := Event{
					Step:     r.step,
					Kind:     EventWatch,
					Path:     path,
					NewValue: observer.ToValue(newValue),
					OldValue: observer.ToValue(oldValue),
				}
				if msg != nil {
					text, err := msg.RenderString(messageScope{c: c, newValue: newValue, oldValue: oldValue})
					if err != nil {
						return err
					}
					ev.Message = text
				}
				r.onEvent(ev)
				return nil
			},
		})
	}
	return opts, nil
}

// messageScope exposes "new" and "old" to watch messages on top of the
// component's own properties.
type messageScope struct {
	c                  *component.Component
	newValue, oldValue any
}

func (s messageScope) Lookup(name string) (any, bool) {
	switch name {
	case "new":
		return s.newValue, true
	case "old":
		return s.oldValue, true
	}
	return s.c.Lookup(name)
}

func (r *runner) apply(c *component.Component, st Step) error {
	if !isNullExpr(st.Set) {
		v, err := evalExpr(c, st.Set)
		if err != nil {
			return fmt.Errorf("set: %w", err)
		}
		assignments, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("set: expected an object of path = value, got %T", v)
		}
		for _, path := range sortedKeys(assignments) {
			if err := setPath(c, path, assignments[path]); err != nil {
				return err
			}
		}
	}

	if !isNullExpr(st.Push) {
		v, err := evalExpr(c, st.Push)
		if err != nil {
			return fmt.Errorf("push: %w", err)
		}
		pushes, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("push: expected an object of path = list, got %T", v)
		}
		for _, path := range sortedKeys(pushes) {
			items, ok := pushes[path].([]any)
			if !ok {
				return fmt.Errorf("push %q: expected a list, got %T", path, pushes[path])
			}
			if err := pushPath(c, path, items); err != nil {
				return err
			}
		}
	}

	for _, path := range st.Delete {
		if err := deletePath(c, path); err != nil {
			return err
		}
	}
	return nil
}

func setPath(c *component.Component, path string, v any) error {
	segments, ok := observer.ParsePath(path)
	if !ok {
		return fmt.Errorf("set: invalid path %q", path)
	}
	v = observer.FromValue(v)
	if len(segments) == 1 {
		c.Set(segments[0], v)
		return nil
	}
	parent := observer.GetPath(c, segments[:len(segments)-1])
	if parent == nil {
		return fmt.Errorf("set %q: parent is not set", path)
	}
	c.SetReactive(parent, segments[len(segments)-1], v)
	return nil
}

func pushPath(c *component.Component, path string, items []any) error {
	segments, ok := observer.ParsePath(path)
	if !ok {
		return fmt.Errorf("push: invalid path %q", path)
	}
	arr, ok := observer.GetPath(c, segments).(*observer.Array)
	if !ok {
		return fmt.Errorf("push %q: target is not a list", path)
	}
	for i, item := range items {
		items[i] = observer.FromValue(item)
	}
	arr.Push(items...)
	return nil
}

func deletePath(c *component.Component, path string) error {
	segments, ok := observer.ParsePath(path)
	if !ok {
		return fmt.Errorf("delete: invalid path %q", path)
	}
	last := segments[len(segments)-1]
	if len(segments) == 1 {
		c.DeleteReactive(c.Data(), last)
		return nil
	}
	parent := observer.GetPath(c, segments[:len(segments)-1])
	if parent == nil {
		return fmt.Errorf("delete %q: parent is not set", path)
	}
	c.DeleteReactive(parent, last)
	return nil
}

// evalExpr evaluates expr with the component's properties as variables.
// Only the names the expression references are read, so evaluating it
// inside a watcher depends on exactly those.
func evalExpr(c *component.Component, expr hcl.Expression) (any, error) {
	vars := map[string]cty.Value{}
	for _, traversal := range expr.Variables() {
		name := traversal.RootName()
		if _, ok := vars[name]; ok {
			continue
		}
		v, ok := c.Lookup(name)
		if !ok {
			// unknown names are reported by hcl
			continue
		}
		cv, err := nativeToCty(v)
		if err != nil {
			return nil, fmt.Errorf("variable '%s': %w", name, err)
		}
		vars[name] = cv
	}

	val, diags := expr.Value(&hcl.EvalContext{Variables: vars, Functions: functions()})
	if diags.HasErrors() {
		return nil, diags
	}
	return ctyToNative(val)
}

// isNullExpr reports whether an optional attribute was left out.
func isNullExpr(expr hcl.Expression) bool {
	if expr == nil {
		return true
	}
	if len(expr.Variables()) > 0 {
		return false
	}
	v, diags := expr.Value(nil)
	return !diags.HasErrors() && v.IsNull()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
