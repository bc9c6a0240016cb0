package document

import (
	"testing"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
	"github.com/lsp-ai-go/lsp-ai-go/internal/lsp"
	"github.com/stretchr/testify/require"
)

func rng(l0, c0, l1, c1 int) *lsp.Range {
	return &lsp.Range{Start: lsp.Position{Line: l0, Character: c0}, End: lsp.Position{Line: l1, Character: c1}}
}

func TestOpenSnapshotClose(t *testing.T) {
	tbl := New()
	tbl.Open("file:///a.go", "package a\n", 1, "go")

	snap, err := tbl.Snapshot("file:///a.go")
	require.NoError(t, err)
	require.Equal(t, "package a\n", snap.Text())
	require.Equal(t, 1, snap.Version)

	final, err := tbl.Close("file:///a.go")
	require.NoError(t, err)
	require.Equal(t, "package a\n", final.Text())

	_, err = tbl.Snapshot("file:///a.go")
	require.Error(t, err)
}

func TestChangeIncrementalInsert(t *testing.T) {
	tbl := New()
	tbl.Open("file:///a.go", "ab", 1, "go")

	// insert "X" between a and b
	err := tbl.Change("file:///a.go", 2, []lsp.TextDocumentContentChangeEvent{
		{Range: rng(0, 1, 0, 1), Text: "X"},
	})
	require.NoError(t, err)

	snap, _ := tbl.Snapshot("file:///a.go")
	require.Equal(t, "aXb", snap.Text())
	require.Equal(t, 2, snap.Version)
}

func TestChangeFullSync(t *testing.T) {
	tbl := New()
	tbl.Open("file:///a.go", "old", 1, "go")

	err := tbl.Change("file:///a.go", 2, []lsp.TextDocumentContentChangeEvent{
		{Text: "new"},
	})
	require.NoError(t, err)

	snap, _ := tbl.Snapshot("file:///a.go")
	require.Equal(t, "new", snap.Text())
}

// Scenario S1: resending a change with a version the table already holds
// is a silent no-op, not an error.
func TestChangeStaleReplayDropped(t *testing.T) {
	tbl := New()
	tbl.Open("file:///a.go", "ab", 1, "go")

	err := tbl.Change("file:///a.go", 2, []lsp.TextDocumentContentChangeEvent{
		{Range: rng(0, 1, 0, 1), Text: "X"},
	})
	require.NoError(t, err)

	// Replay the same notification verbatim.
	err = tbl.Change("file:///a.go", 2, []lsp.TextDocumentContentChangeEvent{
		{Range: rng(0, 1, 0, 1), Text: "X"},
	})
	require.NoError(t, err)

	snap, _ := tbl.Snapshot("file:///a.go")
	require.Equal(t, "aXb", snap.Text())
	require.Equal(t, 2, snap.Version)
}

func TestChangeOverlappingEditsRejected(t *testing.T) {
	tbl := New()
	tbl.Open("file:///a.go", "abcdef", 1, "go")

	err := tbl.Change("file:///a.go", 2, []lsp.TextDocumentContentChangeEvent{
		{Range: rng(0, 0, 0, 3), Text: "XXX"},
		{Range: rng(0, 2, 0, 5), Text: "YYY"},
	})
	require.Error(t, err)

	var docErr *apperr.DocumentError
	require.ErrorAs(t, err, &docErr)
	require.False(t, docErr.Race)

	// The document is unchanged after a rejected batch.
	snap, _ := tbl.Snapshot("file:///a.go")
	require.Equal(t, "abcdef", snap.Text())
	require.Equal(t, 1, snap.Version)
}

func TestChangeMultipleNonOverlappingEditsAppliedTogether(t *testing.T) {
	tbl := New()
	tbl.Open("file:///a.go", "abcdef", 1, "go")

	err := tbl.Change("file:///a.go", 2, []lsp.TextDocumentContentChangeEvent{
		{Range: rng(0, 0, 0, 1), Text: "A"},
		{Range: rng(0, 5, 0, 6), Text: "F"},
	})
	require.NoError(t, err)

	snap, _ := tbl.Snapshot("file:///a.go")
	require.Equal(t, "AbcdeF", snap.Text())
}

func TestSnapshotIsolatedFromLaterEdits(t *testing.T) {
	tbl := New()
	tbl.Open("file:///a.go", "abc", 1, "go")

	snap, _ := tbl.Snapshot("file:///a.go")
	require.NoError(t, tbl.Change("file:///a.go", 2, []lsp.TextDocumentContentChangeEvent{
		{Range: rng(0, 0, 0, 3), Text: "xyz"},
	}))

	require.Equal(t, "abc", snap.Text(), "earlier snapshot must not observe later edits")

	newSnap, _ := tbl.Snapshot("file:///a.go")
	require.Equal(t, "xyz", newSnap.Text())
}

func TestChangeUnknownURI(t *testing.T) {
	tbl := New()
	err := tbl.Change("file:///missing.go", 1, []lsp.TextDocumentContentChangeEvent{{Text: "x"}})
	require.True(t, apperr.IsRace(err))
}
