package template

import "fmt"

// scope is a chain of variable frames; for-loop bodies push a child frame
// so loop variables and the implicit loop.* object shadow the parent
// without mutating it, the way Jinja's loop scoping works.
type scope struct {
	vars   map[string]any
	parent *scope
}

func newScope(vars map[string]any) *scope {
	if vars == nil {
		vars = map[string]any{}
	}
	return &scope{vars: vars}
}

func (s *scope) child() *scope {
	return &scope{vars: make(map[string]any), parent: s}
}

func (s *scope) set(name string, v any) { s.vars[name] = v }

// lookup resolves a dotted path (e.g. ["message", "role"]) against the
// nearest frame that defines its head, then indexes into nested maps for
// the remaining segments.
func (s *scope) lookup(path []string) (any, bool) {
	head := path[0]
	var v any
	var ok bool
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok = cur.vars[head]; ok {
			break
		}
	}
	if !ok {
		return nil, false
	}
	for _, key := range path[1:] {
		v, ok = indexValue(v, key)
		if !ok {
			return nil, false
		}
	}
	return v, true
}

func indexValue(v any, key string) (any, bool) {
	switch m := v.(type) {
	case map[string]any:
		r, ok := m[key]
		return r, ok
	default:
		return nil, false
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case float64:
		return x != 0
	case []any:
		return len(x) != 0
	default:
		return true
	}
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

func toSlice(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case []map[string]any:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = m
		}
		return out, nil
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot iterate over %T", v)
	}
}
