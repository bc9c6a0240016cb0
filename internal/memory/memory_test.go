package memory

import (
	"context"
	"testing"

	"github.com/lsp-ai-go/lsp-ai-go/internal/chunker"
	"github.com/stretchr/testify/require"
)

func TestFileStoreWithoutChunkingPassesThroughSnippet(t *testing.T) {
	fs := NewFileStore(nil, 0)
	res, err := fs.Query(context.Background(), "func main() {}")
	require.NoError(t, err)
	require.Equal(t, "", res.Context)
	require.Equal(t, "func main() {}", res.Code)
}

func TestFileStoreWithChunkingSearchesIndexedChunks(t *testing.T) {
	c := chunker.New()
	c.Index(context.Background(), "file:///util.go", "go", []byte("package util\n\nfunc Helper() int {\n\treturn 42\n}\n"))

	fs := NewFileStore(c, 3)
	res, err := fs.Query(context.Background(), "Helper")
	require.NoError(t, err)
	require.Contains(t, res.Context, "Helper")
	require.Equal(t, "Helper", res.Code)
}

func TestFileStoreWithChunkingNoMatchYieldsEmptyContext(t *testing.T) {
	c := chunker.New()
	fs := NewFileStore(c, 3)
	res, err := fs.Query(context.Background(), "anything")
	require.NoError(t, err)
	require.Equal(t, "", res.Context)
}

func TestPostgresMLAlwaysConfigError(t *testing.T) {
	p := NewPostgresML("postgres://example")
	_, err := p.Query(context.Background(), "x")
	require.Error(t, err)
}
