// Package appfile loads application definitions written in HCL: root data,
// computed properties written as HCL expressions, watches, a template and a
// list of mutation steps to replay against the running component.
package appfile

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/delaneyj/observa/compiler"
	"github.com/delaneyj/observa/internal/ctxlog"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

type hclFile struct {
	Name       string         `hcl:"name,optional"`
	Template   string         `hcl:"template,optional"`
	Comments   bool           `hcl:"comments,optional"`
	Delimiters []string       `hcl:"delimiters,optional"`
	Data       *hclData       `hcl:"data,block"`
	Computed   []*hclComputed `hcl:"computed,block"`
	Watches    []*hclWatch    `hcl:"watch,block"`
	Steps      []*hclStep     `hcl:"step,block"`
}

type hclData struct {
	Body hcl.Body `hcl:",remain"`
}

type hclComputed struct {
	Name  string         `hcl:"name,label"`
	Value hcl.Expression `hcl:"value"`
	Cache *bool          `hcl:"cache,optional"`
}

type hclWatch struct {
	Path      string `hcl:"path,label"`
	Deep      bool   `hcl:"deep,optional"`
	Sync      bool   `hcl:"sync,optional"`
	Immediate bool   `hcl:"immediate,optional"`
	Message   string `hcl:"message,optional"`
}

type hclStep struct {
	Name   string         `hcl:"name,label"`
	Set    hcl.Expression `hcl:"set,optional"`
	Push   hcl.Expression `hcl:"push,optional"`
	Delete []string       `hcl:"delete,optional"`
}

// App is a decoded application definition.
type App struct {
	Name            string
	Template        string
	CompilerOptions compiler.Options
	// Data holds the root data in declaration order.
	Data     []Field
	Computed []Computed
	Watches  []Watch
	Steps    []Step
	// MaxTicks bounds how many ticks one step may take to settle. Zero
	// means DefaultMaxTicks.
	MaxTicks int
}

type Field struct {
	Name  string
	Value any
}

type Computed struct {
	Name  string
	Expr  hcl.Expression
	Cache *bool
}

type Watch struct {
	Path      string
	Deep      bool
	Sync      bool
	Immediate bool
	Message   string
}

// Step is one batch of mutations, applied before the next tick.
type Step struct {
	Name   string
	Set    hcl.Expression
	Push   hcl.Expression
	Delete []string
}

// Load parses and decodes the app file at path.
func Load(ctx context.Context, path string) (*App, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading app file.", "path", path)

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read app file %s: %w", path, err)
	}
	app, err := Parse(src, path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded app file.", "path", path, "data", len(app.Data), "computed", len(app.Computed), "watches", len(app.Watches), "steps", len(app.Steps))
	return app, nil
}

// Parse decodes an app definition from src. filename is used in
// diagnostics only.
func Parse(src []byte, filename string) (*App, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse app file %s: %w", filename, diags)
	}

	var root hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode app file %s: %w", filename, diags)
	}

	app := &App{
		Name:     root.Name,
		Template: root.Template,
		CompilerOptions: compiler.Options{
			Comments: root.Comments,
		},
	}
	if app.Name == "" {
		app.Name = filename
	}
	switch len(root.Delimiters) {
	case 0:
	case 2:
		app.CompilerOptions.Delimiters = [2]string{root.Delimiters[0], root.Delimiters[1]}
	default:
		return nil, fmt.Errorf("app file %s: delimiters needs exactly two entries, got %d", filename, len(root.Delimiters))
	}

	if root.Data != nil {
		fields, err := decodeData(root.Data.Body)
		if err != nil {
			return nil, fmt.Errorf("app file %s: %w", filename, err)
		}
		app.Data = fields
	}

	seen := map[string]bool{}
	for _, c := range root.Computed {
		if seen[c.Name] {
			return nil, fmt.Errorf("app file %s: duplicate computed %q", filename, c.Name)
		}
		seen[c.Name] = true
		app.Computed = append(app.Computed, Computed{Name: c.Name, Expr: c.Value, Cache: c.Cache})
	}
	for _, w := range root.Watches {
		app.Watches = append(app.Watches, Watch{
			Path:      w.Path,
			Deep:      w.Deep,
			Sync:      w.Sync,
			Immediate: w.Immediate,
			Message:   w.Message,
		})
	}
	for _, s := range root.Steps {
		app.Steps = append(app.Steps, Step{Name: s.Name, Set: s.Set, Push: s.Push, Delete: s.Delete})
	}
	return app, nil
}

// decodeData evaluates the data block's attributes, which must be
// constant, in source order.
func decodeData(body hcl.Body) ([]Field, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode data block: %w", diags)
	}
	sorted := make([]*hcl.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		sorted = append(sorted, attr)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Range.Start.Byte < sorted[j].Range.Start.Byte
	})

	fields := make([]Field, 0, len(sorted))
	for _, attr := range sorted {
		val, diags := attr.Expr.Value(&hcl.EvalContext{Functions: functions()})
		if diags.HasErrors() {
			return nil, fmt.Errorf("in data attribute '%s': %w", attr.Name, diags)
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nil, fmt.Errorf("in data attribute '%s': %w", attr.Name, err)
		}
		fields = append(fields, Field{Name: attr.Name, Value: native})
	}
	return fields, nil
}
