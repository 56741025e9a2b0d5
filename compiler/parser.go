package compiler

import (
	"fmt"
	"strings"

	"github.com/delaneyj/observa/observer"
)

// ParseError reports where a template could not be compiled.
type ParseError struct {
	Line, Col int
	Msg       string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("template:%d:%d: %s", e.Line, e.Col, e.Msg)
}

type node interface {
	static() bool
}

type textNode struct {
	text string
}

type commentNode struct {
	text string
}

type interpNode struct {
	expr expr
	raw  bool
}

type ifNode struct {
	cond expr
	then []node
	els  []node
}

type eachNode struct {
	list      expr
	item, key string
	body      []node
}

// staticNode renders StaticRenderFns[index].
type staticNode struct {
	index int
}

func (textNode) static() bool    { return true }
func (commentNode) static() bool { return true }
func (interpNode) static() bool  { return false }
func (ifNode) static() bool      { return false }
func (eachNode) static() bool    { return false }
func (staticNode) static() bool  { return true }

// expr is a dotted path with optional leading negations.
type expr struct {
	src      string
	negate   int
	segments []string
}

type parser struct {
	src         string
	open, close string
	comments    bool
	pos         int
	bindings    []string
}

// frame is a block being parsed, closed by {{/kind}}.
type frame struct {
	kind  string
	nodes *[]node
	block node
	line  int
	col   int
}

func (p *parser) parse() ([]node, error) {
	var root []node
	stack := []*frame{{nodes: &root}}

	for p.pos < len(p.src) {
		top := stack[len(stack)-1]
		i := strings.Index(p.src[p.pos:], p.open)
		if i < 0 {
			*top.nodes = append(*top.nodes, textNode{text: p.src[p.pos:]})
			break
		}
		if i > 0 {
			*top.nodes = append(*top.nodes, textNode{text: p.src[p.pos : p.pos+i]})
		}
		tagStart := p.pos + i
		p.pos = tagStart + len(p.open)

		raw := strings.HasPrefix(p.src[p.pos:], "{")
		end := p.close
		if raw {
			p.pos++
			end = "}" + p.close
		}
		j := strings.Index(p.src[p.pos:], end)
		if j < 0 {
			return nil, p.errorf(tagStart, "unclosed tag, expected %q", end)
		}
		body := strings.TrimSpace(p.src[p.pos : p.pos+j])
		p.pos += j + len(end)

		if raw {
			e, err := p.parseExpr(body, tagStart)
			if err != nil {
				return nil, err
			}
			*top.nodes = append(*top.nodes, interpNode{expr: e, raw: true})
			continue
		}

		if strings.HasPrefix(body, "!") {
			if p.comments {
				text := strings.TrimPrefix(body, "!")
				text = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(text, "--"), "--"))
				*top.nodes = append(*top.nodes, commentNode{text: text})
			}
			continue
		}

		keyword, rest := splitTag(body)
		switch keyword {
		case "#if":
			e, err := p.parseExpr(rest, tagStart)
			if err != nil {
				return nil, err
			}
			n := &ifNode{cond: e}
			line, col := p.lineCol(tagStart)
			stack = append(stack, &frame{kind: "if", nodes: &n.then, block: n, line: line, col: col})
			*top.nodes = append(*top.nodes, n)

		case "#each":
			n, err := p.parseEach(rest, tagStart)
			if err != nil {
				return nil, err
			}
			line, col := p.lineCol(tagStart)
			stack = append(stack, &frame{kind: "each", nodes: &n.body, block: n, line: line, col: col})
			*top.nodes = append(*top.nodes, n)

		case "else":
			n, ok := top.block.(*ifNode)
			if !ok || rest != "" || top.nodes == &n.els {
				return nil, p.errorf(tagStart, "unexpected else")
			}
			top.nodes = &n.els

		case "/if", "/each":
			if rest != "" || top.kind != keyword[1:] {
				return nil, p.errorf(tagStart, "unexpected {{%s}}", body)
			}
			stack = stack[:len(stack)-1]

		default:
			if strings.HasPrefix(keyword, "#") || strings.HasPrefix(keyword, "/") {
				return nil, p.errorf(tagStart, "unknown block %q", keyword)
			}
			e, err := p.parseExpr(body, tagStart)
			if err != nil {
				return nil, err
			}
			*top.nodes = append(*top.nodes, interpNode{expr: e})
		}
	}

	if len(stack) > 1 {
		top := stack[len(stack)-1]
		return nil, &ParseError{Line: top.line, Col: top.col, Msg: fmt.Sprintf("unclosed {{#%s}}", top.kind)}
	}
	return root, nil
}

// splitTag splits a tag body at the first whitespace.
func splitTag(body string) (keyword, rest string) {
	i := strings.IndexAny(body, " \t\r\n")
	if i < 0 {
		return body, ""
	}
	return body[:i], strings.TrimSpace(body[i:])
}

func (p *parser) parseEach(body string, at int) (*eachNode, error) {
	list, alias, ok := strings.Cut(body, " as ")
	if !ok {
		return nil, p.errorf(at, "each expects %q", "list as item[, key]")
	}
	e, err := p.parseExpr(strings.TrimSpace(list), at)
	if err != nil {
		return nil, err
	}
	n := &eachNode{list: e}
	item, key, _ := strings.Cut(alias, ",")
	n.item, n.key = strings.TrimSpace(item), strings.TrimSpace(key)
	for _, name := range []string{n.item, n.key} {
		if name == "" {
			continue
		}
		if segs, ok := observer.ParsePath(name); !ok || len(segs) != 1 {
			return nil, p.errorf(at, "invalid alias %q", name)
		}
	}
	if n.item == "" {
		return nil, p.errorf(at, "each needs an item alias")
	}
	return n, nil
}

func (p *parser) parseExpr(src string, at int) (expr, error) {
	e := expr{src: src}
	path := src
	for strings.HasPrefix(path, "!") {
		e.negate++
		path = strings.TrimSpace(path[1:])
	}
	segments, ok := observer.ParsePath(path)
	if !ok {
		return e, p.errorf(at, "invalid expression %q", src)
	}
	e.segments = segments
	p.bindings = append(p.bindings, path)
	return e, nil
}

func (p *parser) lineCol(offset int) (int, int) {
	before := p.src[:offset]
	line := strings.Count(before, "\n") + 1
	col := offset - strings.LastIndex(before, "\n")
	return line, col
}

func (p *parser) errorf(offset int, format string, args ...any) error {
	line, col := p.lineCol(offset)
	return &ParseError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

// optimize replaces every run of static nodes with a reference into
// statics, rendering each run once at compile time.
func optimize(nodes []node, statics *[]string, render func([]node) string) []node {
	var out []node
	var run []node
	flush := func() {
		if len(run) == 0 {
			return
		}
		*statics = append(*statics, render(run))
		out = append(out, staticNode{index: len(*statics) - 1})
		run = nil
	}
	for _, n := range nodes {
		if n.static() {
			run = append(run, n)
			continue
		}
		flush()
		switch b := n.(type) {
		case *ifNode:
			b.then = optimize(b.then, statics, render)
			b.els = optimize(b.els, statics, render)
		case *eachNode:
			b.body = optimize(b.body, statics, render)
		}
		out = append(out, n)
	}
	flush()
	return out
}
