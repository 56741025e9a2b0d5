// Package view mounts a compiled template behind a render watcher. The
// template's reactive reads become the watcher's deps, so any change to
// them re-renders the view on the next tick.
package view

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/delaneyj/observa/compiler"
	"github.com/delaneyj/observa/observer"
	"github.com/valyala/bytebufferpool"
)

type Options struct {
	// BeforeUpdate runs before a queued re-render, never before the first
	// render.
	BeforeUpdate func()
	// Updated runs after the flush that re-rendered the view.
	Updated func()
	// Sink receives the output of every render.
	Sink io.Writer
}

type View struct {
	sys     *observer.System
	result  *compiler.Result
	scope   observer.Scope
	opts    Options
	logger  *slog.Logger
	watcher *observer.Watcher

	html      string
	renders   int
	mounted   bool
	destroyed bool
}

// ViewNode keeps views out of reactive data.
func (v *View) ViewNode() {}

// Mount renders result against scope and keeps it rendered until Destroy.
func Mount(sys *observer.System, result *compiler.Result, scope observer.Scope, opts Options) (*View, error) {
	v := &View{
		sys:    sys,
		result: result,
		scope:  scope,
		opts:   opts,
		logger: sys.Logger().With("component", "view"),
	}

	w, err := observer.NewWatcher(sys, func() (any, error) {
		return nil, v.UpdateView()
	}, nil, &observer.WatcherOptions{
		Before:  v.beforeUpdate,
		Updated: v.updated,
	})
	v.watcher = w
	if err != nil {
		w.Teardown()
		return nil, fmt.Errorf("mount view: %w", err)
	}
	v.mounted = true
	return v, nil
}

// UpdateView renders the template and stores the output. Called from the
// render watcher it subscribes the watcher to every value the template
// reads.
func (v *View) UpdateView() error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := v.result.Render(buf, v.scope); err != nil {
		return err
	}
	v.html = buf.String()
	v.renders++
	v.logger.Debug("rendered", "renders", v.renders, "bytes", buf.Len())

	if v.opts.Sink != nil {
		if _, err := io.WriteString(v.opts.Sink, v.html); err != nil {
			return fmt.Errorf("write view: %w", err)
		}
	}
	return nil
}

func (v *View) beforeUpdate() {
	if v.mounted && !v.destroyed && v.opts.BeforeUpdate != nil {
		v.opts.BeforeUpdate()
	}
}

func (v *View) updated() {
	if v.mounted && !v.destroyed && v.opts.Updated != nil {
		v.opts.Updated()
	}
}

// HTML returns the output of the last render.
func (v *View) HTML() string {
	return v.html
}

func (v *View) Renders() int {
	return v.renders
}

func (v *View) Watcher() *observer.Watcher {
	return v.watcher
}

func (v *View) Destroyed() bool {
	return v.destroyed
}

// Destroy stops re-rendering. The last output stays available.
func (v *View) Destroy() {
	if v.destroyed {
		return
	}
	v.destroyed = true
	v.watcher.Teardown()
}
