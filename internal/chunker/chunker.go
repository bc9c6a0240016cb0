// Package chunker implements tree-sitter-based semantic chunking of closed
// documents (§1's "future retrieval" collaborator, given a minimal real
// implementation since internal/memory.FileStore needs something concrete
// to call). Grounded on the teacher's internal/parser/treesitter.go (the
// embedded-grammar Manager) and internal/analyzer/analyzer.go's
// function/class node-type maps, generalized from "context around one
// cursor" to "index every top-level function/class body for later search".
package chunker

import (
	"context"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/yaml"
)

// functionNodeTypes and classNodeTypes mirror internal/analyzer's per-
// language node-type tables: the set of grammar node kinds that delimit a
// chunk worth indexing.
var functionNodeTypes = map[string][]string{
	"go":         {"function_declaration", "method_declaration"},
	"python":     {"function_definition"},
	"javascript": {"function_declaration", "function_expression", "arrow_function", "method_definition"},
	"typescript": {"function_declaration", "function_expression", "arrow_function", "method_definition"},
	"rust":       {"function_item", "function_signature_item", "impl_item"},
}

var classNodeTypes = map[string][]string{
	"go":         {"type_spec"},
	"python":     {"class_definition"},
	"javascript": {"class_declaration", "class_expression"},
	"typescript": {"class_declaration", "class_expression", "interface_declaration"},
	"rust":       {"struct_item", "enum_item", "trait_item"},
}

// Kind names whether a Chunk came from a function-like or class-like node.
type Kind string

const (
	KindFunction Kind = "function"
	KindClass    Kind = "class"
)

// Chunk is one indexed unit of previously closed-document text.
type Chunk struct {
	URI      string
	Name     string
	Kind     Kind
	Text     string
	language string
	seq      int // insertion order, used as the recency tiebreak
}

// Chunker parses closed documents with the teacher's embedded grammars and
// indexes their top-level function/class bodies for later substring/
// token-overlap search. One Chunker is shared by a session's FileStore.
type Chunker struct {
	mu      sync.RWMutex
	langMap map[string]*sitter.Language
	chunks  []Chunk
	nextSeq int
}

func New() *Chunker {
	c := &Chunker{langMap: make(map[string]*sitter.Language)}
	c.langMap["go"] = golang.GetLanguage()
	c.langMap["python"] = python.GetLanguage()
	c.langMap["javascript"] = javascript.GetLanguage()
	c.langMap["rust"] = rust.GetLanguage()
	c.langMap["bash"] = bash.GetLanguage()
	c.langMap["yaml"] = yaml.GetLanguage()
	c.langMap["html"] = html.GetLanguage()
	return c
}

// Index parses text as languageID and stores one Chunk per function/class
// node found at any depth of the syntax tree, replacing any chunks previously indexed under
// uri. Unsupported languages are a silent no-op, matching the teacher
// Manager's "language not supported" non-error return.
func (c *Chunker) Index(ctx context.Context, uri, languageID string, text []byte) []Chunk {
	c.mu.Lock()
	lang, ok := c.langMap[languageID]
	c.mu.Unlock()
	if !ok || lang == nil {
		return nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, text)
	if err != nil || tree == nil {
		return nil
	}
	defer tree.Close()

	var found []Chunk
	walk(tree.RootNode(), func(n *sitter.Node) {
		if kind, ok := matchKind(languageID, n.Type()); ok {
			found = append(found, Chunk{
				URI: uri, Name: chunkName(n, text), Kind: kind,
				Text: string(text[n.StartByte():n.EndByte()]), language: languageID,
			})
		}
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeURI(uri)
	for i := range found {
		found[i].seq = c.nextSeq
		c.nextSeq++
		c.chunks = append(c.chunks, found[i])
	}
	return found
}

func (c *Chunker) removeURI(uri string) {
	kept := c.chunks[:0]
	for _, ch := range c.chunks {
		if ch.URI != uri {
			kept = append(kept, ch)
		}
	}
	c.chunks = kept
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}

func matchKind(languageID, nodeType string) (Kind, bool) {
	for _, t := range functionNodeTypes[languageID] {
		if t == nodeType {
			return KindFunction, true
		}
	}
	for _, t := range classNodeTypes[languageID] {
		if t == nodeType {
			return KindClass, true
		}
	}
	return "", false
}

// chunkName walks the node's immediate children for an identifier-shaped
// token to use as a label; falls back to the node's grammar type.
func chunkName(n *sitter.Node, content []byte) string {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if strings.Contains(child.Type(), "identifier") {
			return string(content[child.StartByte():child.EndByte()])
		}
	}
	return n.Type()
}

// scored pairs a Chunk with its ranking score for one Search call.
type scored struct {
	chunk Chunk
	score int
}

// Search ranks indexed chunks against query by a trivial recency +
// substring/token-overlap score (§9: "no vector search, no embedding
// model") and returns the top k.
func (c *Chunker) Search(query string, k int) []Chunk {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if k <= 0 || len(c.chunks) == 0 {
		return nil
	}

	queryTokens := tokenize(query)
	results := make([]scored, 0, len(c.chunks))
	for _, ch := range c.chunks {
		s := overlapScore(queryTokens, tokenize(ch.Text))
		if strings.Contains(ch.Text, query) {
			s += 5
		}
		if s == 0 {
			continue
		}
		results = append(results, scored{chunk: ch, score: s})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].chunk.seq > results[j].chunk.seq
	})

	if len(results) > k {
		results = results[:k]
	}
	out := make([]Chunk, len(results))
	for i, r := range results {
		out[i] = r.chunk
	}
	return out
}

func tokenize(s string) map[string]struct{} {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !(r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9'))
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.ToLower(f)] = struct{}{}
	}
	return set
}

func overlapScore(a, b map[string]struct{}) int {
	score := 0
	for t := range a {
		if _, ok := b[t]; ok {
			score++
		}
	}
	return score
}

func (k Kind) String() string { return string(k) }
