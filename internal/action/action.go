// Package action implements the Action Engine (C8): resolves the three RPC
// shapes (completion, vendor generation, code action) to a configured
// Action, drives it through the
// Queued->RateLimited->Prompting->Calling->PostProcessing->Replied state
// machine (with Cancelled reachable from any non-terminal state), and maps
// the result back to the wire. Grounded on the teacher's internal/server
// package for the overall request-handling shape, generalized from "one
// hardcoded AI client" to "N configured actions resolved against the model
// registry".
package action

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
	"github.com/lsp-ai-go/lsp-ai-go/internal/document"
	"github.com/lsp-ai-go/lsp-ai-go/internal/lsp"
	"github.com/lsp-ai-go/lsp-ai-go/internal/memory"
	"github.com/lsp-ai-go/lsp-ai-go/internal/postprocess"
	"github.com/lsp-ai-go/lsp-ai-go/internal/prompt"
	"github.com/lsp-ai-go/lsp-ai-go/internal/ratelimit"
	"github.com/lsp-ai-go/lsp-ai-go/internal/registry"
	"github.com/lsp-ai-go/lsp-ai-go/internal/transformer"
)

// Parameters carries per-action generation overrides, per §3's Action type
// and the vendor textDocument/generation request's "parameters" field.
type Parameters struct {
	MaxTokens        int
	Temperature      *float64
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
	Stop             []string
	// Messages overrides the model's configured chat template for this
	// action only, when the action wants its own framing (e.g. a
	// "explain this code" action with a different system prompt than the
	// default completion action).
	Messages []transformer.ChatMessage
	// Vars supplies extra {{var}} values to message template rendering.
	Vars map[string]any
}

// Action is one configured, named action from initializationOptions'
// "actions" array, per §3.
type Action struct {
	Name        string
	Trigger     string // empty marks the default completion action
	Model       string
	Parameters  Parameters
	PostProcess postprocess.Rule
}

// State names one point in §4.8's state machine, exposed for logging/
// metrics instrumentation; Engine does not persist it beyond one request.
type State string

const (
	StateQueued        State = "Queued"
	StateRateLimited    State = "RateLimited"
	StatePrompting      State = "Prompting"
	StateCalling        State = "Calling"
	StatePostProcessing State = "PostProcessing"
	StateReplied        State = "Replied"
	StateCancelled      State = "Cancelled"
)

// Engine owns every configured Action and the collaborators needed to run
// one to completion.
type Engine struct {
	registry  *registry.Registry
	documents *document.Table
	limiter   *ratelimit.Limiter
	builder   *prompt.Builder
	mem       memory.Backend
	pipelines map[string]*postprocess.Pipeline // action name -> compiled pipeline
	actions   []Action
	byName    map[string]Action

	mu      sync.Mutex
	pending map[uuid.UUID]pendingResolution
}

type pendingResolution struct {
	uri    lsp.DocumentURI
	pos    lsp.Position
	action Action
}

// Deps supplies Engine's collaborators (§5's shared-resource list).
type Deps struct {
	Registry  *registry.Registry
	Documents *document.Table
	Limiter   *ratelimit.Limiter
	Memory    memory.Backend
}

// New checks that every action's model resolves in the registry and
// compiles every action's post-process pipeline up front (an unknown model
// or a bad regex is a ConfigError at init, per §7, not a per-request
// surprise) and returns a ready Engine.
func New(actions []Action, deps Deps) (*Engine, error) {
	e := &Engine{
		registry: deps.Registry, documents: deps.Documents, limiter: deps.Limiter, mem: deps.Memory,
		builder:   prompt.New(),
		pipelines: make(map[string]*postprocess.Pipeline, len(actions)),
		byName:    make(map[string]Action, len(actions)),
		pending:   make(map[uuid.UUID]pendingResolution),
	}
	for _, a := range actions {
		if deps.Registry != nil && !deps.Registry.Resolvable(a.Model) {
			return nil, apperr.Config("action %q: unknown model %q", a.Name, a.Model)
		}
		p, err := postprocess.Compile(a.PostProcess)
		if err != nil {
			return nil, err
		}
		e.pipelines[a.Name] = p
		e.byName[a.Name] = a
		e.actions = append(e.actions, a)
	}
	return e, nil
}

// defaultAction resolves the first action whose trigger is empty, per
// §4.8's "implicit completion action".
func (e *Engine) defaultAction() (Action, error) {
	for _, a := range e.actions {
		if a.Trigger == "" {
			return a, nil
		}
	}
	return Action{}, apperr.Config("no default completion action configured")
}

// Complete executes textDocument/completion: resolve the default action,
// build the prompt in completion budget, call, post-process.
func (e *Engine) Complete(ctx context.Context, uri lsp.DocumentURI, pos lsp.Position, cancel <-chan struct{}) (string, error) {
	a, err := e.defaultAction()
	if err != nil {
		return "", err
	}
	return e.run(ctx, a, uri, pos, requestCompletion, cancel)
}

// Generate executes textDocument/generation: modelOverride/paramsOverride
// come from the vendor RPC's own fields and win over the resolved action's
// configuration, per §4.8 ("executes a named action or an ad-hoc one built
// from request parameters").
func (e *Engine) Generate(ctx context.Context, uri lsp.DocumentURI, pos lsp.Position, actionName, modelOverride string, paramsOverride Parameters, cancel <-chan struct{}) (string, error) {
	a := Action{Name: actionName, Model: modelOverride, Parameters: paramsOverride}
	if actionName != "" {
		existing, ok := e.byName[actionName]
		if !ok {
			return "", apperr.Config("unknown action %q", actionName)
		}
		a = existing
		if modelOverride != "" {
			a.Model = modelOverride
		}
		a.Parameters = mergeParameters(a.Parameters, paramsOverride)
	}
	return e.run(ctx, a, uri, pos, requestGeneration, cancel)
}

func mergeParameters(base, override Parameters) Parameters {
	out := base
	if override.MaxTokens > 0 {
		out.MaxTokens = override.MaxTokens
	}
	if override.Temperature != nil {
		out.Temperature = override.Temperature
	}
	if override.TopP != nil {
		out.TopP = override.TopP
	}
	if override.FrequencyPenalty != nil {
		out.FrequencyPenalty = override.FrequencyPenalty
	}
	if override.PresencePenalty != nil {
		out.PresencePenalty = override.PresencePenalty
	}
	if len(override.Stop) > 0 {
		out.Stop = override.Stop
	}
	if len(override.Messages) > 0 {
		out.Messages = override.Messages
	}
	if override.Vars != nil {
		out.Vars = override.Vars
	}
	return out
}

// CodeAction is one resolvable action surfaced to textDocument/codeAction,
// per §4.8: its resolution re-enters the generation path via Resolve.
type CodeAction struct {
	Title string
	Token uuid.UUID
}

// CodeActions enumerates configured actions whose trigger string appears
// immediately before pos, i.e. at the end of linePrefix, per §4.8.
func (e *Engine) CodeActions(uri lsp.DocumentURI, pos lsp.Position, linePrefix string) []CodeAction {
	var out []CodeAction
	for _, a := range e.actions {
		if a.Trigger == "" || !strings.HasSuffix(linePrefix, a.Trigger) {
			continue
		}
		token := uuid.New()
		e.mu.Lock()
		e.pending[token] = pendingResolution{uri: uri, pos: pos, action: a}
		e.mu.Unlock()
		out = append(out, CodeAction{Title: a.Name, Token: token})
	}
	return out
}

// Resolve re-enters the generation path for a code action previously
// enumerated by CodeActions, consuming its pending-resolution entry. It
// also returns the URI/position the action targeted, so the caller can
// build a workspace edit inserting the generated text there.
func (e *Engine) Resolve(ctx context.Context, token uuid.UUID, cancel <-chan struct{}) (string, lsp.DocumentURI, lsp.Position, error) {
	e.mu.Lock()
	p, ok := e.pending[token]
	if ok {
		delete(e.pending, token)
	}
	e.mu.Unlock()
	if !ok {
		return "", "", lsp.Position{}, apperr.Config("unknown or already-resolved code action token %q", token)
	}
	text, err := e.run(ctx, p.action, p.uri, p.pos, requestGeneration, cancel)
	return text, p.uri, p.pos, err
}

type requestKind int

const (
	requestCompletion requestKind = iota
	requestGeneration
)

// run drives one action through Queued->RateLimited->Prompting->Calling->
// PostProcessing->Replied, with Cancelled reachable at every suspension
// point (§4.8). DocumentMissing (a race-flagged DocumentError) resolves to
// empty text rather than an error, per §4.8/§7.
func (e *Engine) run(ctx context.Context, a Action, uri lsp.DocumentURI, pos lsp.Position, kind requestKind, cancel <-chan struct{}) (string, error) {
	if a.Model == "" {
		return "", apperr.Config("action %q has no model configured", a.Name)
	}
	adapter, err := e.registry.Get(a.Model)
	if err != nil {
		return "", err
	}
	entry, _ := e.registry.Entry(a.Model)

	if err := selectCancelled(cancel); err != nil {
		return emptyOnRace(err)
	}

	// RateLimited: suspend until the model's bucket yields a token.
	if err := e.limiter.Acquire(ctx, a.Model); err != nil {
		return emptyOnRace(apperr.Cancelled)
	}
	if err := selectCancelled(cancel); err != nil {
		return emptyOnRace(err)
	}

	// Prompting: acquire a snapshot (DocumentMissing resolves to empty
	// text, not an error) and build the framed payload.
	snap, err := e.documents.Snapshot(uri)
	if err != nil {
		return emptyOnRace(err)
	}

	budgets := transformer.TokenBudgets(entry.TokenBudgets)
	memResult, err := e.mem.Query(ctx, snap.Text())
	if err != nil {
		return emptyOnRace(err)
	}

	payload, err := e.builder.Build(prompt.Request{
		Framing: entry.Framing(), TokenBudgets: budgets,
		Snapshot: snap, Position: pos, Memory: memResult, Vars: a.Parameters.Vars,
	})
	if err != nil {
		return "", err
	}
	if len(a.Parameters.Messages) > 0 {
		payload.Messages = a.Parameters.Messages
	}
	if err := selectCancelled(cancel); err != nil {
		return emptyOnRace(err)
	}

	// Calling: invoke the adapter; it owns its own retry loop.
	params := transformer.Params{
		MaxTokens: a.Parameters.MaxTokens, Temperature: a.Parameters.Temperature, TopP: a.Parameters.TopP,
		FrequencyPenalty: a.Parameters.FrequencyPenalty, PresencePenalty: a.Parameters.PresencePenalty,
		Stop: a.Parameters.Stop,
	}
	var text string
	switch kind {
	case requestCompletion:
		out, err := adapter.Complete(ctx, payload, params, cancel)
		if err != nil {
			return emptyOnRace(err)
		}
		text = out.Text
	default:
		out, err := adapter.Generate(ctx, payload, params, cancel)
		if err != nil {
			return emptyOnRace(err)
		}
		text = out.Text
	}

	// PostProcessing: extractor then strip_prefix/strip_suffix.
	pipeline := e.pipelines[a.Name]
	if pipeline != nil {
		processed, err := pipeline.Apply(text)
		if err != nil {
			return "", err
		}
		text = processed
	}

	// Replied.
	return text, nil
}

func selectCancelled(cancel <-chan struct{}) error {
	select {
	case <-cancel:
		return apperr.Cancelled
	default:
		return nil
	}
}

// emptyOnRace implements §4.8's DocumentMissing rule and §9's Cancelled
// sink: both resolve to an empty string with no error, since the editor
// may have closed the buffer or cancelled mid-flight.
func emptyOnRace(err error) (string, error) {
	if err == apperr.Cancelled || apperr.IsRace(err) {
		return "", nil
	}
	return "", err
}
