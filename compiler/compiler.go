// Package compiler turns a mustache-style template into a render function
// that reads its data through reactive getters, so running it inside a
// watcher subscribes the watcher to everything the output depends on.
//
//	{{ path }}                 escaped interpolation
//	{{{ path }}}               raw interpolation
//	{{#if path}}..{{else}}..{{/if}}
//	{{#each path as item, key}}..{{/each}}
//	{{! comment }}             dropped unless Options.Comments is set
package compiler

import (
	"io"
	"slices"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/delaneyj/observa/observer"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/quicktemplate"
)

var DefaultDelimiters = [2]string{"{{", "}}"}

type Options struct {
	// Delimiters replaces {{ and }}. Raw interpolation adds one brace
	// inside each delimiter.
	Delimiters [2]string
	// Comments keeps {{! }} comments as HTML comments in the output.
	Comments bool
}

func (o Options) delimiters() (string, string) {
	left, right := o.Delimiters[0], o.Delimiters[1]
	if left == "" || right == "" {
		return DefaultDelimiters[0], DefaultDelimiters[1]
	}
	return left, right
}

// StaticRenderFn writes a run of template output that has no bindings.
type StaticRenderFn func(qw *quicktemplate.Writer)

type Result struct {
	Template string
	// StaticRenderFns hold the hoisted static parts, in document order.
	StaticRenderFns []StaticRenderFn

	nodes    []node
	bindings []string
}

// Bindings returns the distinct paths the template reads, in first-use
// order.
func (r *Result) Bindings() []string {
	return slices.Clone(r.bindings)
}

// Render writes the template evaluated against scope to w.
func (r *Result) Render(w io.Writer, scope observer.Scope) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	qw := quicktemplate.AcquireWriter(buf)
	err := r.renderNodes(qw, scope, r.nodes)
	quicktemplate.ReleaseWriter(qw)
	if err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

// RenderString is Render into a string.
func (r *Result) RenderString(scope observer.Scope) (string, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := r.Render(buf, scope); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type cacheEntry struct {
	key    string
	result *Result
}

var cache sync.Map

// Compile parses template. Results are cached per template and options, so
// compiling the same template again returns the same *Result.
func Compile(template string, opts Options) (*Result, error) {
	left, right := opts.delimiters()
	key := left + "\x00" + right + "\x00" + strconv.FormatBool(opts.Comments) + "\x00" + template
	h := xxhash.Sum64String(key)
	if v, ok := cache.Load(h); ok {
		if e := v.(*cacheEntry); e.key == key {
			return e.result, nil
		}
	}

	p := &parser{src: template, open: left, close: right, comments: opts.Comments}
	nodes, err := p.parse()
	if err != nil {
		return nil, err
	}

	r := &Result{Template: template}
	var statics []string
	r.nodes = optimize(nodes, &statics, renderStatic)
	for _, s := range statics {
		s := s
		r.StaticRenderFns = append(r.StaticRenderFns, func(qw *quicktemplate.Writer) {
			qw.N().S(s)
		})
	}
	for _, b := range p.bindings {
		if !slices.Contains(r.bindings, b) {
			r.bindings = append(r.bindings, b)
		}
	}

	cache.Store(h, &cacheEntry{key: key, result: r})
	return r, nil
}

// MustCompile is Compile that panics on error, for templates known at
// build time.
func MustCompile(template string, opts Options) *Result {
	r, err := Compile(template, opts)
	if err != nil {
		panic(err)
	}
	return r
}

func renderStatic(nodes []node) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	for _, n := range nodes {
		switch t := n.(type) {
		case textNode:
			buf.WriteString(t.text)
		case commentNode:
			buf.WriteString("<!--")
			buf.WriteString(t.text)
			buf.WriteString("-->")
		}
	}
	return buf.String()
}
