package compiler

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/delaneyj/observa/observer"
	"github.com/valyala/quicktemplate"
)

func (r *Result) renderNodes(qw *quicktemplate.Writer, scope observer.Scope, nodes []node) error {
	for _, n := range nodes {
		switch t := n.(type) {
		case staticNode:
			r.StaticRenderFns[t.index](qw)

		case textNode:
			qw.N().S(t.text)

		case commentNode:
			qw.N().S("<!--" + t.text + "-->")

		case interpNode:
			if err := writeValue(qw, t.expr.eval(scope), t.raw); err != nil {
				return fmt.Errorf("render %q: %w", t.expr.src, err)
			}

		case *ifNode:
			branch := t.els
			if Truthy(t.cond.eval(scope)) {
				branch = t.then
			}
			if err := r.renderNodes(qw, scope, branch); err != nil {
				return err
			}

		case *eachNode:
			var err error
			each(t.list.eval(scope), func(key, item any) bool {
				vars := map[string]any{t.item: item}
				if t.key != "" {
					vars[t.key] = key
				}
				err = r.renderNodes(qw, childScope{parent: scope, vars: vars}, t.body)
				return err == nil
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (e expr) eval(scope observer.Scope) any {
	v := observer.GetPath(scope, e.segments)
	for i := 0; i < e.negate; i++ {
		v = !Truthy(v)
	}
	return v
}

// childScope layers loop variables over a parent scope.
type childScope struct {
	parent observer.Scope
	vars   map[string]any
}

func (s childScope) Lookup(name string) (any, bool) {
	if v, ok := s.vars[name]; ok {
		return v, true
	}
	if s.parent == nil {
		return nil, false
	}
	return s.parent.Lookup(name)
}

// each iterates arrays, objects, maps, strings and counts.
func each(v any, fn func(key, item any) bool) {
	switch t := observer.Unref(v).(type) {
	case *observer.Array:
		for i := 0; i < t.Len(); i++ {
			if !fn(i, t.At(i)) {
				return
			}
		}
	case *observer.Object:
		for _, k := range t.Keys() {
			if !fn(k, t.Get(k)) {
				return
			}
		}
	case []any:
		for i, item := range t {
			if !fn(i, item) {
				return
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if !fn(k, t[k]) {
				return
			}
		}
	case string:
		i := 0
		for _, r := range t {
			if !fn(i, string(r)) {
				return
			}
			i++
		}
	case int:
		for i := 0; i < t; i++ {
			if !fn(i, i+1) {
				return
			}
		}
	}
}

// Truthy reports whether v counts as true in a condition: nil, false,
// zero, NaN and "" are false; everything else is true.
func Truthy(v any) bool {
	switch t := observer.Unref(v).(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case uint64:
		return t != 0
	case float64:
		return t != 0 && !math.IsNaN(t)
	case *observer.Object:
		return t != nil
	case *observer.Array:
		return t != nil
	}
	return true
}

func writeValue(qw *quicktemplate.Writer, v any, raw bool) error {
	w := qw.E()
	if raw {
		w = qw.N()
	}
	switch t := observer.Unref(v).(type) {
	case nil:
	case string:
		w.S(t)
	case bool:
		w.S(strconv.FormatBool(t))
	case int:
		w.D(t)
	case int64:
		w.DL(t)
	case uint64:
		w.DUL(t)
	case float64:
		w.S(formatFloat(t))
	case fmt.Stringer:
		w.S(t.String())
	case *observer.Object, *observer.Array, []any, map[string]any:
		b, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return err
		}
		w.SZ(b)
	default:
		w.V(t)
	}
	return nil
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
