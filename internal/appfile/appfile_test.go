package appfile_test

import (
	"context"
	"testing"

	"github.com/delaneyj/observa/internal/appfile"
	"github.com/delaneyj/observa/observer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSystem(t *testing.T) (*observer.System, *[]observer.Diagnostic, *[]error) {
	t.Helper()
	var warnings []observer.Diagnostic
	var errs []error
	sys := observer.NewSystem(
		observer.WithWarnHandler(func(d observer.Diagnostic) {
			warnings = append(warnings, d)
		}),
		observer.WithErrorHandler(func(err error, ctx any, info string) {
			errs = append(errs, err)
		}),
	)
	return sys, &warnings, &errs
}

func TestLoad(t *testing.T) {
	app, err := appfile.Load(context.Background(), "testdata/wardrobe.hcl")
	require.NoError(t, err)

	assert.Equal(t, "wardrobe", app.Name)
	require.Len(t, app.Data, 3)
	assert.Equal(t, "title", app.Data[0].Name)
	assert.Equal(t, "owner", app.Data[1].Name)
	assert.Equal(t, "items", app.Data[2].Name)
	assert.Equal(t, map[string]any{"name": "ada", "city": "Paris", "nickname": "ad"}, app.Data[1].Value)
	assert.Equal(t, []any{map[string]any{"name": "hat"}, map[string]any{"name": "scarf"}}, app.Data[2].Value)

	require.Len(t, app.Computed, 2)
	assert.Equal(t, "count", app.Computed[0].Name)
	require.Len(t, app.Watches, 2)
	assert.True(t, app.Watches[1].Deep)
	require.Len(t, app.Steps, 3)
	assert.Equal(t, []string{"owner.nickname"}, app.Steps[2].Delete)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := appfile.Load(context.Background(), "testdata/nope.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read app file")
}

func TestParseErrors(t *testing.T) {
	cases := map[string]struct {
		src  string
		want string
	}{
		"syntax":      {src: `name = `, want: "failed to parse app file"},
		"unknown":     {src: `colour = "red"`, want: "failed to decode app file"},
		"delimiters":  {src: `delimiters = ["<%"]`, want: "delimiters needs exactly two entries"},
		"dup":         {src: "computed \"a\" {\n value = 1\n}\ncomputed \"a\" {\n value = 2\n}\n", want: `duplicate computed "a"`},
		"dynamicData": {src: "data {\n a = b\n}\n", want: "in data attribute 'a'"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := appfile.Parse([]byte(tc.src), "test.hcl")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseDelimitersAndNumbers(t *testing.T) {
	app, err := appfile.Parse([]byte(`
delimiters = ["[[", "]]"]
comments   = true
data {
  whole = 3
  half  = 1.5
  on    = true
}
`), "test.hcl")
	require.NoError(t, err)
	assert.Equal(t, [2]string{"[[", "]]"}, app.CompilerOptions.Delimiters)
	assert.True(t, app.CompilerOptions.Comments)
	assert.Equal(t, "test.hcl", app.Name)
	assert.Equal(t, 3, app.Data[0].Value)
	assert.Equal(t, 1.5, app.Data[1].Value)
	assert.Equal(t, true, app.Data[2].Value)
}

func TestRun(t *testing.T) {
	app, err := appfile.Load(context.Background(), "testdata/wardrobe.hcl")
	require.NoError(t, err)
	sys, warnings, errs := newSystem(t)

	var events []appfile.Event
	c, err := app.Run(context.Background(), sys, func(e appfile.Event) {
		events = append(events, e)
	})
	require.NoError(t, err)
	assert.Empty(t, *warnings)
	assert.Empty(t, *errs)

	type step struct{ step, kind, path string }
	var got []step
	for _, e := range events {
		got = append(got, step{e.Step, e.Kind, e.Path})
	}
	assert.Equal(t, []step{
		{"mount", appfile.EventRender, ""},
		{"add-coat", appfile.EventWatch, "count"},
		{"add-coat", appfile.EventRender, ""},
		{"move", appfile.EventWatch, "owner"},
		{"move", appfile.EventRender, ""},
		{"drop-nickname", appfile.EventWatch, "owner"},
		{"drop-nickname", appfile.EventRender, ""},
	}, got)

	assert.Contains(t, events[0].HTML, "<p>2 items, ADA in Paris</p>")
	assert.Equal(t, "count 2 -> 3", events[1].Message)
	assert.Equal(t, 3, events[1].NewValue)
	assert.Equal(t, 2, events[1].OldValue)
	assert.Equal(t, map[string]any{"name": "ada", "city": "Oslo", "nickname": "ad"}, events[3].NewValue)
	assert.Equal(t, map[string]any{"name": "ada", "city": "Oslo"}, events[5].NewValue)

	want := "<h1>Winter Wardrobe</h1>\n<p>3 items, ADA in Oslo</p>\n<ul><li>hat</li><li>scarf</li><li>coat</li></ul>\n"
	assert.Equal(t, want, c.HTML())
	assert.Equal(t, want, events[len(events)-1].HTML)
}

func TestRunStepErrors(t *testing.T) {
	cases := map[string]struct {
		step string
		want string
	}{
		"pushNotList":  {step: `push = { title = ["x"] }`, want: "target is not a list"},
		"pushScalar":   {step: `push = { items = "x" }`, want: "expected a list"},
		"setBadPath":   {step: `set = { "a..b" = 1 }`, want: "invalid path"},
		"setNoParent":  {step: `set = { "nope.x" = 1 }`, want: "parent is not set"},
		"unknownVar":   {step: `set = { title = missing }`, want: "set:"},
		"deleteNoPath": {step: `delete = ["nope.x"]`, want: "parent is not set"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			src := "data {\n  title = \"t\"\n  items = []\n}\nstep \"s\" {\n  " + tc.step + "\n}\n"
			app, err := appfile.Parse([]byte(src), "test.hcl")
			require.NoError(t, err)
			sys, _, _ := newSystem(t)
			c, err := app.Run(context.Background(), sys, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), `step "s"`)
			assert.Contains(t, err.Error(), tc.want)
			assert.NotNil(t, c)
		})
	}
}

func TestRunCanceled(t *testing.T) {
	app, err := appfile.Load(context.Background(), "testdata/wardrobe.hcl")
	require.NoError(t, err)
	sys, _, _ := newSystem(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, err := app.Run(ctx, sys, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, c.HTML(), "<p>2 items, ADA in Paris</p>")
}

func TestRunSyncMode(t *testing.T) {
	app, err := appfile.Parse([]byte(`
data {
  n = 1
}
computed "double" {
  value = n * 2
}
watch "double" {
  sync    = true
  message = "{{ old }}/{{ new }}"
}
step "bump" {
  set = { n = n + 1 }
}
`), "test.hcl")
	require.NoError(t, err)
	cfg := observer.DefaultConfig()
	cfg.Async = false
	sys := observer.NewSystem(observer.WithConfig(cfg))

	var messages []string
	c, err := app.Run(context.Background(), sys, func(e appfile.Event) {
		messages = append(messages, e.Message)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2/4"}, messages)
	assert.Equal(t, 4, c.Get("double"))
}
