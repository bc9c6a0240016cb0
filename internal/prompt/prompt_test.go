package prompt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lsp-ai-go/lsp-ai-go/internal/document"
	"github.com/lsp-ai-go/lsp-ai-go/internal/lsp"
	"github.com/lsp-ai-go/lsp-ai-go/internal/memory"
	"github.com/lsp-ai-go/lsp-ai-go/internal/registry"
	"github.com/lsp-ai-go/lsp-ai-go/internal/transformer"
)

func snapshotFor(t *testing.T, text string) *document.Snapshot {
	t.Helper()
	table := document.New()
	table.Open("file:///fib.py", text, 1, "python")
	snap, err := table.Snapshot("file:///fib.py")
	require.NoError(t, err)
	return snap
}

// TestBuildFIMPromptAssembly covers spec.md §8 S2: a FIM-framed model's
// Prefix/Suffix wrapped in its configured sentinel tokens, in
// Start-Prefix-Middle-Suffix-End order.
func TestBuildFIMPromptAssembly(t *testing.T) {
	text := "def fib(n):\n    return \n"
	snap := snapshotFor(t, text)

	req := Request{
		Framing: registry.Framing{FIM: &registry.FIMTemplate{
			Start:  "<fim_prefix>",
			Middle: "<fim_suffix>",
			End:    "<fim_middle>",
		}},
		TokenBudgets: transformer.TokenBudgets{MaxContext: len(text)},
		Snapshot:     snap,
		Position:     lsp.Position{Line: 1, Character: 11},
	}

	out, err := New().Build(req)
	require.NoError(t, err)

	require.Equal(t, "def fib(n):\n    return ", out.Prefix)
	require.Equal(t, "\n", out.Suffix)
	require.Empty(t, out.Text)
	require.Empty(t, out.Messages)
	require.Equal(t, "<fim_prefix>def fib(n):\n    return <fim_suffix>\n<fim_middle>", out.FIM)
}

// TestBuildChatSubstitution covers spec.md §8 S3: a chat-framed model's
// templated messages with {CODE} replaced by the prefix+<CURSOR>+suffix
// slice and {CONTEXT} replaced by the memory backend's retrieved context.
func TestBuildChatSubstitution(t *testing.T) {
	text := "def fib(n):\n    return \n"
	snap := snapshotFor(t, text)

	req := Request{
		Framing: registry.Framing{Chat: &registry.ChatTemplate{
			Messages: []transformer.ChatMessage{
				{Role: "system", Content: "Use this context:\n{CONTEXT}"},
				{Role: "user", Content: "{CODE}"},
			},
		}},
		TokenBudgets: transformer.TokenBudgets{MaxContext: len(text)},
		Snapshot:     snap,
		Position:     lsp.Position{Line: 1, Character: 11},
		Memory:       memory.Result{Context: "related snippet"},
	}

	out, err := New().Build(req)
	require.NoError(t, err)

	require.Empty(t, out.FIM)
	require.Empty(t, out.Text)
	require.Len(t, out.Messages, 2)
	require.Equal(t, "system", out.Messages[0].Role)
	require.Equal(t, "Use this context:\nrelated snippet", out.Messages[0].Content)
	require.Equal(t, "user", out.Messages[1].Role)
	require.Equal(t, "def fib(n):\n    return <CURSOR>\n", out.Messages[1].Content)
}

// TestBuildChatTemplateSyntaxAfterPlainSubstitution covers §4.3's ordering:
// {CODE}/{CONTEXT} substitute first via a plain replacer, and only a
// message still containing {{ }} or {% %} syntax afterward goes through
// the template engine.
func TestBuildChatTemplateSyntaxAfterPlainSubstitution(t *testing.T) {
	text := "x = 1\n"
	snap := snapshotFor(t, text)

	req := Request{
		Framing: registry.Framing{Chat: &registry.ChatTemplate{
			Messages: []transformer.ChatMessage{
				{Role: "user", Content: "{CODE} for {{lang}}"},
			},
		}},
		TokenBudgets: transformer.TokenBudgets{MaxContext: len(text)},
		Snapshot:     snap,
		Position:     lsp.Position{Line: 0, Character: 5},
		Vars:         map[string]any{"lang": "python"},
	}

	out, err := New().Build(req)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	require.Equal(t, "x = 1<CURSOR>\n for python", out.Messages[0].Content)
}

func TestBuildRawPlainPrefixFraming(t *testing.T) {
	text := "a = 1\nb = 2\n"
	snap := snapshotFor(t, text)

	req := Request{
		Framing:      registry.Framing{},
		TokenBudgets: transformer.TokenBudgets{MaxContext: len(text)},
		Snapshot:     snap,
		Position:     lsp.Position{Line: 1, Character: 5},
	}

	out, err := New().Build(req)
	require.NoError(t, err)
	require.Equal(t, "a = 1\nb = 2", out.Text)
	require.Empty(t, out.FIM)
	require.Empty(t, out.Messages)
}
