package compiler_test

import (
	"bytes"
	"testing"

	"github.com/delaneyj/observa/compiler"
	"github.com/delaneyj/observa/observer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scope map[string]any

func (s scope) Lookup(name string) (any, bool) {
	v, ok := s[name]
	return v, ok
}

func render(t *testing.T, tmpl string, opts compiler.Options, s scope) string {
	t.Helper()
	r, err := compiler.Compile(tmpl, opts)
	require.NoError(t, err)
	out, err := r.RenderString(s)
	require.NoError(t, err)
	return out
}

func TestInterpolation(t *testing.T) {
	s := scope{
		"name":  "<x & 'y'>",
		"n":     42,
		"f":     1.5,
		"ok":    true,
		"none":  nil,
		"user":  observer.NewObject().With("first", "Ann"),
		"items": observer.NewArray(1, 2),
	}
	cases := map[string]string{
		`<b>{{ name }}</b>`:       `<b>&lt;x &amp; &#39;y&#39;&gt;</b>`,
		`{{{ name }}}`:            `<x & 'y'>`,
		`{{n}}/{{f}}/{{ok}}`:      `42/1.5/true`,
		`[{{ none }}]`:            `[]`,
		`{{ user.first }}`:        `Ann`,
		`{{ items.length }}`:      `2`,
		`{{ missing.deep.path }}`: ``,
	}
	for tmpl, want := range cases {
		t.Run(tmpl, func(t *testing.T) {
			assert.Equal(t, want, render(t, tmpl, compiler.Options{}, s))
		})
	}

	t.Run("containers render as json", func(t *testing.T) {
		out := render(t, `{{{ user }}}`, compiler.Options{}, s)
		assert.JSONEq(t, `{"first":"Ann"}`, out)
	})
}

func TestConditionals(t *testing.T) {
	tmpl := `{{#if ok}}yes{{else}}no{{/if}}|{{#if !ok}}neg{{/if}}`
	assert.Equal(t, "yes|", render(t, tmpl, compiler.Options{}, scope{"ok": 1}))
	assert.Equal(t, "no|neg", render(t, tmpl, compiler.Options{}, scope{"ok": ""}))
	assert.Equal(t, "no|neg", render(t, tmpl, compiler.Options{}, scope{}))
}

func TestEach(t *testing.T) {
	s := scope{
		"list": observer.NewArray("a", "b"),
		"obj":  observer.NewObject().With("x", 1).With("y", 2),
		"m":    map[string]any{"b": 2, "a": 1},
		"n":    3,
		"name": "outer",
	}
	assert.Equal(t, "0:a 1:b ", render(t, `{{#each list as item, i}}{{i}}:{{item}} {{/each}}`, compiler.Options{}, s))
	assert.Equal(t, "x=1;y=2;", render(t, `{{#each obj as v, k}}{{k}}={{v}};{{/each}}`, compiler.Options{}, s))
	assert.Equal(t, "a1b2", render(t, `{{#each m as v, k}}{{k}}{{v}}{{/each}}`, compiler.Options{}, s))
	assert.Equal(t, "123", render(t, `{{#each n as v}}{{v}}{{/each}}`, compiler.Options{}, s))
	assert.Equal(t, "outer-a outer-b ", render(t, `{{#each list as item}}{{name}}-{{item}} {{/each}}`, compiler.Options{}, s))
	assert.Equal(t, "", render(t, `{{#each nothing as v}}{{v}}{{/each}}`, compiler.Options{}, s))

	nested := scope{"rows": observer.NewArray(observer.NewArray(1, 2), observer.NewArray(3))}
	assert.Equal(t, "[12][3]", render(t, `{{#each rows as row}}[{{#each row as c}}{{c}}{{/each}}]{{/each}}`, compiler.Options{}, nested))
}

func TestComments(t *testing.T) {
	tmpl := `a{{! note }}b{{!-- long note --}}c`
	assert.Equal(t, "abc", render(t, tmpl, compiler.Options{}, nil))
	assert.Equal(t, "a<!--note-->b<!--long note-->c", render(t, tmpl, compiler.Options{Comments: true}, nil))
}

func TestCustomDelimiters(t *testing.T) {
	opts := compiler.Options{Delimiters: [2]string{"${", "}"}}
	s := scope{"a": "<1>", "b": "<2>"}
	assert.Equal(t, "&lt;1&gt; {{a}} <2>", render(t, `${ a } {{a}} ${{ b }}`, opts, s))
}

func TestStaticHoisting(t *testing.T) {
	r, err := compiler.Compile(`<p>hi</p>{{#if a}}<i>x</i>{{a}}{{/if}}<p>bye</p>`, compiler.Options{})
	require.NoError(t, err)
	require.Len(t, r.StaticRenderFns, 3)
	assert.Equal(t, []string{"a"}, r.Bindings())

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, scope{"a": "!"}))
	assert.Equal(t, "<p>hi</p><i>x</i>!<p>bye</p>", buf.String())
}

func TestCompileIsCached(t *testing.T) {
	a := compiler.MustCompile(`{{ x }}`, compiler.Options{})
	b := compiler.MustCompile(`{{ x }}`, compiler.Options{})
	c := compiler.MustCompile(`{{ x }}`, compiler.Options{Comments: true})
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]int{
		"{{ a":                          1,
		"line\n{{#if a}}open":           2,
		"{{else}}":                      1,
		"{{/if}}":                       1,
		"{{#each a as x}}{{/if}}":       1,
		"{{ a[0] }}":                    1,
		"{{#each list}}{{/each}}":       1,
		"{{#unknown a}}":                1,
		"\n\n{{#if a}}{{else}}{{else}}": 3,
	}
	for tmpl, line := range cases {
		t.Run(tmpl, func(t *testing.T) {
			_, err := compiler.Compile(tmpl, compiler.Options{})
			var perr *compiler.ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, line, perr.Line)
		})
	}
	assert.Panics(t, func() { compiler.MustCompile("{{", compiler.Options{}) })
}

func TestRenderTracksReactiveReads(t *testing.T) {
	sys := observer.NewSystem()
	data := observer.NewObject().With("name", "ann").With("show", true)
	sys.Observe(data)
	r := compiler.MustCompile(`{{#if data.show}}{{ data.name }}{{/if}}`, compiler.Options{})

	w, err := observer.NewWatcher(sys, func() (any, error) {
		out, err := r.RenderString(scope{"data": data})
		return out, err
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ann", w.Value())
	assert.Len(t, w.Deps(), 2)

	data.Set("show", false)
	require.NoError(t, sys.Tick())
	assert.Equal(t, "", w.Value())
	assert.Len(t, w.Deps(), 1)
}

func TestTruthy(t *testing.T) {
	for _, v := range []any{true, 1, "x", 0.5, observer.NewObject(), observer.NewArray(), struct{}{}} {
		assert.True(t, compiler.Truthy(v), "%v", v)
	}
	for _, v := range []any{nil, false, 0, "", 0.0, int64(0)} {
		assert.False(t, compiler.Truthy(v), "%v", v)
	}
}
