// Package memory implements the Memory Backend named by §1/§6: a narrow
// Query(ctx, snippet) -> Result{Context, Code} contract with two concrete
// backends, both resolving §9's unpinned-retrieval Open Question
// conservatively per DESIGN.md rather than leaving it purely hypothetical.
package memory

import (
	"context"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
	"github.com/lsp-ai-go/lsp-ai-go/internal/chunker"
)

// Result is the tuple internal/prompt substitutes into {CONTEXT} and
// {CODE}, per §3's Prompt type.
type Result struct {
	Context string
	Code    string
}

// Backend is the uniform memory contract every implementation satisfies.
type Backend interface {
	Query(ctx context.Context, snippet string) (Result, error)
}

// FileStore is the `{file_store:{}}` backend: with chunking disabled it
// passes the snippet straight through with empty Context; with chunking
// enabled, Context is populated from the chunker's index of previously
// closed documents in the session, ranked by recency+overlap.
type FileStore struct {
	chunker     *chunker.Chunker
	chunkingOn  bool
	topK        int
}

// NewFileStore constructs a FileStore. A nil chunker disables retrieval
// entirely (Context always empty), matching "unless chunking is enabled".
func NewFileStore(c *chunker.Chunker, topK int) *FileStore {
	if topK <= 0 {
		topK = 3
	}
	return &FileStore{chunker: c, chunkingOn: c != nil, topK: topK}
}

func (f *FileStore) Query(ctx context.Context, snippet string) (Result, error) {
	if !f.chunkingOn {
		return Result{Context: "", Code: snippet}, nil
	}
	select {
	case <-ctx.Done():
		return Result{}, apperr.Cancelled
	default:
	}
	chunks := f.chunker.Search(snippet, f.topK)
	if len(chunks) == 0 {
		return Result{Context: "", Code: snippet}, nil
	}
	var ctxText string
	for i, c := range chunks {
		if i > 0 {
			ctxText += "\n\n"
		}
		ctxText += c.Text
	}
	return Result{Context: ctxText, Code: snippet}, nil
}

// PostgresML is the `{postgresml:{...}}` backend. §9's second Open Question
// states the retrieval-augmented variant's wire contract "should be pinned
// down before implementing" — no database driver is added to go.mod for a
// contract that isn't pinned; every Query fails with a ConfigError naming
// the gap instead.
type PostgresML struct {
	ConnString string
}

func NewPostgresML(connString string) *PostgresML {
	return &PostgresML{ConnString: connString}
}

func (p *PostgresML) Query(ctx context.Context, snippet string) (Result, error) {
	return Result{}, apperr.Config("postgresml memory backend: query contract is unpinned, cannot serve requests")
}
