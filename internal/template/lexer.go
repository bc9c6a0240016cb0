package template

import "strings"

type itemKind int

const (
	itemText itemKind = iota
	itemVar
	itemStmt
)

type item struct {
	kind      itemKind
	content   string // raw text, or the trimmed inner expression/statement
	trimLeft  bool   // statement/var opened with "{%-" / "{{-"
	trimRight bool   // statement/var closed with "-%}" / "-}}"
	line, col int
}

// lex splits src into a flat stream of text/var/stmt items. Trim markers on
// {% %} / {{ }} tags are applied by stripping adjacent whitespace from
// neighboring text items after the full stream is built.
func lex(src string) ([]item, error) {
	var items []item
	pos := 0
	for pos < len(src) {
		varIdx := strings.Index(src[pos:], "{{")
		stmtIdx := strings.Index(src[pos:], "{%")
		switch {
		case varIdx < 0 && stmtIdx < 0:
			items = append(items, item{kind: itemText, content: src[pos:]})
			pos = len(src)
		case stmtIdx < 0 || (varIdx >= 0 && varIdx < stmtIdx):
			idx := pos + varIdx
			if idx > pos {
				items = append(items, item{kind: itemText, content: src[pos:idx]})
			}
			it, next, err := lexTag(src, idx, "{{", "}}", itemVar)
			if err != nil {
				return nil, err
			}
			items = append(items, it)
			pos = next
		default:
			idx := pos + stmtIdx
			if idx > pos {
				items = append(items, item{kind: itemText, content: src[pos:idx]})
			}
			it, next, err := lexTag(src, idx, "{%", "%}", itemStmt)
			if err != nil {
				return nil, err
			}
			items = append(items, it)
			pos = next
		}
	}
	applyTrimMarkers(items)
	return items, nil
}

func lexTag(src string, idx int, open, close string, kind itemKind) (item, int, error) {
	line, col := lineCol(src, idx)
	start := idx + len(open)
	trimLeft := false
	if start < len(src) && src[start] == '-' {
		trimLeft = true
		start++
	}
	end := strings.Index(src[start:], close)
	if end < 0 {
		return item{}, 0, &TemplateError{Line: line, Col: col, Msg: "unterminated tag, expected " + close}
	}
	end += start
	content := src[start:end]
	trimRight := false
	if len(content) > 0 && content[len(content)-1] == '-' {
		trimRight = true
		content = content[:len(content)-1]
	}
	content = strings.TrimSpace(content)
	return item{kind: kind, content: content, trimLeft: trimLeft, trimRight: trimRight, line: line, col: col}, end + len(close), nil
}

func applyTrimMarkers(items []item) {
	for i, it := range items {
		if it.kind == itemText {
			continue
		}
		if it.trimLeft && i > 0 && items[i-1].kind == itemText {
			items[i-1].content = strings.TrimRightFunc(items[i-1].content, isSpace)
		}
		if it.trimRight && i+1 < len(items) && items[i+1].kind == itemText {
			items[i+1].content = strings.TrimLeftFunc(items[i+1].content, isSpace)
		}
	}
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }

func lineCol(src string, pos int) (int, int) {
	line := 1
	col := 1
	for i := 0; i < pos && i < len(src); i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
