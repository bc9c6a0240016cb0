// Package template implements a restricted Jinja-compatible renderer: the
// subset needed for prompt templates is {{var}}, {% if %}/{% else %}/
// {% endif %}, {% for x in xs %}, {%- -%} whitespace trim markers, and the
// default/trim filters. Unresolved variables are a hard error unless a
// default filter is present to catch them.
package template

import (
	"fmt"
	"strings"
)

// TemplateError reports a syntax error or unresolved variable with the
// source position it occurred at.
type TemplateError struct {
	Line, Col int
	Msg       string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// Template is a parsed, ready-to-render document.
type Template struct {
	nodes []node
}

// Parse lexes and parses src into a Template.
func Parse(src string) (*Template, error) {
	items, err := lex(src)
	if err != nil {
		return nil, err
	}
	nodes, rest, err := parseNodes(items)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		it := rest[0]
		return nil, &TemplateError{Line: it.line, Col: it.col, Msg: fmt.Sprintf("unexpected %q without matching opening tag", it.content)}
	}
	return &Template{nodes: nodes}, nil
}

// Render evaluates the template against vars. Any identifier referenced by
// the template that isn't present in vars (and isn't caught by a default
// filter) fails the whole render with a TemplateError.
func (t *Template) Render(vars map[string]any) (string, error) {
	scope := newScope(vars)
	var sb strings.Builder
	for _, n := range t.nodes {
		s, err := n.render(scope)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

// Render is a convenience one-shot: parse then render.
func Render(src string, vars map[string]any) (string, error) {
	tmpl, err := Parse(src)
	if err != nil {
		return "", err
	}
	return tmpl.Render(vars)
}
