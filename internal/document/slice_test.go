package document

import (
	"strings"
	"testing"

	"github.com/lsp-ai-go/lsp-ai-go/internal/lsp"
	"github.com/stretchr/testify/require"
)

func snapshotOf(text string) *Snapshot {
	tbl := New()
	tbl.Open("file:///a.go", text, 1, "go")
	snap, _ := tbl.Snapshot("file:///a.go")
	return snap
}

func TestCutPrefixOnlyNoTrimNeeded(t *testing.T) {
	snap := snapshotOf("hello world")
	s, err := Cut(snap, lsp.Position{Line: 0, Character: 5}, 100, PrefixOnly)
	require.NoError(t, err)
	require.Equal(t, "hello", s.Prefix)
	require.Empty(t, s.Suffix)
}

func TestCutPrefixOnlyTrimsFromStart(t *testing.T) {
	snap := snapshotOf("0123456789")
	s, err := Cut(snap, lsp.Position{Line: 0, Character: 10}, 4, PrefixOnly)
	require.NoError(t, err)
	require.Equal(t, "6789", s.Prefix, "prefix-only keeps the text nearest the cursor")
}

func TestCutFIMSplitsBudgetEvenly(t *testing.T) {
	snap := snapshotOf(strings.Repeat("a", 10) + strings.Repeat("b", 10))
	s, err := Cut(snap, lsp.Position{Line: 0, Character: 10}, 8, FIM)
	require.NoError(t, err)
	require.Equal(t, "aaaa", s.Prefix)
	require.Equal(t, "bbbb", s.Suffix)
	require.LessOrEqual(t, len(s.Prefix)+len(s.Suffix), 8)
}

func TestCutFIMOddBudgetFavorsPrefix(t *testing.T) {
	snap := snapshotOf(strings.Repeat("a", 10) + strings.Repeat("b", 10))
	s, err := Cut(snap, lsp.Position{Line: 0, Character: 10}, 7, FIM)
	require.NoError(t, err)
	require.Equal(t, 4, len([]rune(s.Prefix)))
	require.Equal(t, 3, len([]rune(s.Suffix)))
}

func TestCutFIMGivesUnusedShareToOtherSide(t *testing.T) {
	// prefix is short, well under its fair half; suffix should absorb
	// the leftover budget instead of being capped at half.
	snap := snapshotOf("ab" + strings.Repeat("c", 20))
	s, err := Cut(snap, lsp.Position{Line: 0, Character: 2}, 10, FIM)
	require.NoError(t, err)
	require.Equal(t, "ab", s.Prefix)
	require.Equal(t, strings.Repeat("c", 8), s.Suffix)
}

func TestCutChatJoinsWithCursorSentinel(t *testing.T) {
	snap := snapshotOf("x=1\ny=2")
	s, err := Cut(snap, lsp.Position{Line: 1, Character: 2}, 100, Chat)
	require.NoError(t, err)
	require.Equal(t, "x=1\ny=<CURSOR>2", s.Combined)
}

func TestCutNeverExceedsBudget(t *testing.T) {
	snap := snapshotOf(strings.Repeat("x", 500))
	for _, budget := range []int{0, 1, 2, 3, 50, 499, 500, 501} {
		s, err := Cut(snap, lsp.Position{Line: 0, Character: 250}, budget, FIM)
		require.NoError(t, err)
		require.LessOrEqual(t, len(s.Prefix)+len(s.Suffix), budget)
	}
}
