// Package prompt implements the Prompt Builder (C2): combines a document
// slice with a model's configured framing (FIM tokens, chat message
// templates, or plain prefix) and the memory backend's Context/Code tuple
// into a transformer-ready Prompt. Owns every {CODE}/{CONTEXT}/<CURSOR>
// substitution itself and calls into internal/template for chat-message
// rendering — the transformer adapters never see template syntax, only
// already-framed text (§4.2, §4.3).
package prompt

import (
	"strings"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
	"github.com/lsp-ai-go/lsp-ai-go/internal/document"
	"github.com/lsp-ai-go/lsp-ai-go/internal/lsp"
	"github.com/lsp-ai-go/lsp-ai-go/internal/memory"
	"github.com/lsp-ai-go/lsp-ai-go/internal/registry"
	"github.com/lsp-ai-go/lsp-ai-go/internal/template"
	"github.com/lsp-ai-go/lsp-ai-go/internal/transformer"
)

// Request carries everything Build needs to frame one model's payload.
type Request struct {
	Framing      registry.Framing
	TokenBudgets transformer.TokenBudgets
	Snapshot     *document.Snapshot
	Position     lsp.Position
	Memory       memory.Result
	// Vars supplies additional template variables (e.g. an action's own
	// configured parameters) available to {{var}} inside a chat message's
	// template source, beyond {CODE}/{CONTEXT}.
	Vars map[string]any
}

// Builder assembles a transformer.Prompt from a Request, per §4.2.
type Builder struct{}

func New() *Builder { return &Builder{} }

// Build returns the payload the adapter needs: a FIM literal string for
// fim-framed models, a rendered chat message sequence for chat-framed
// models, or a plain prefix otherwise (§4.2).
func (b *Builder) Build(req Request) (transformer.Prompt, error) {
	budget := req.TokenBudgets.MaxContext
	if budget <= 0 {
		budget = req.TokenBudgets.Completion
	}

	switch {
	case req.Framing.FIM != nil:
		return b.buildFIM(req, budget)
	case req.Framing.Chat != nil:
		return b.buildChat(req, budget)
	default:
		return b.buildRaw(req, budget)
	}
}

func (b *Builder) buildFIM(req Request, budget int) (transformer.Prompt, error) {
	slice, err := document.Cut(req.Snapshot, req.Position, budget, document.FIM)
	if err != nil {
		return transformer.Prompt{}, err
	}
	fim := req.Framing.FIM
	// <CURSOR> never appears in FIM mode (§4.2); the fim sentinel tokens
	// themselves mark the hole, so no substitution of {CODE}/{CONTEXT}
	// applies here — the literal string IS the payload.
	whole := fim.Start + slice.Prefix + fim.Middle + slice.Suffix + fim.End
	return transformer.Prompt{Prefix: slice.Prefix, Suffix: slice.Suffix, FIM: whole}, nil
}

func (b *Builder) buildRaw(req Request, budget int) (transformer.Prompt, error) {
	slice, err := document.Cut(req.Snapshot, req.Position, budget, document.PrefixOnly)
	if err != nil {
		return transformer.Prompt{}, err
	}
	return transformer.Prompt{Text: slice.Prefix}, nil
}

func (b *Builder) buildChat(req Request, budget int) (transformer.Prompt, error) {
	slice, err := document.Cut(req.Snapshot, req.Position, budget, document.Chat)
	if err != nil {
		return transformer.Prompt{}, err
	}
	code := slice.Combined

	messages := make([]transformer.ChatMessage, 0, len(req.Framing.Chat.Messages))
	for _, tmpl := range req.Framing.Chat.Messages {
		rendered, err := renderMessage(tmpl.Content, code, req.Memory.Context, req.Vars)
		if err != nil {
			return transformer.Prompt{}, err
		}
		messages = append(messages, transformer.ChatMessage{Role: tmpl.Role, Content: rendered})
	}
	return transformer.Prompt{Messages: messages}, nil
}

// renderMessage applies C8's plain-string substitutions ({CODE}, {CONTEXT},
// <CURSOR> passed through unchanged) before handing the result to C3 for
// any remaining {{var}}/{% %} syntax, per §4.3's explicit ordering.
func renderMessage(src, code, context string, vars map[string]any) (string, error) {
	substituted := strings.NewReplacer("{CODE}", code, "{CONTEXT}", context).Replace(src)
	if !strings.Contains(substituted, "{{") && !strings.Contains(substituted, "{%") {
		return substituted, nil
	}
	out, err := template.Render(substituted, vars)
	if err != nil {
		return "", apperr.Backend(false, "rendering chat message template: %v", err)
	}
	return out, nil
}
