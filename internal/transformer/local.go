package transformer

import (
	"context"
	"strings"
	"sync"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
)

// WeightFetcher resolves a named model repo to a local weights path,
// fetching and caching it on first use. §1 names GGUF/llama.cpp bindings an
// out-of-scope external collaborator; this interface is the seam that keeps
// them out of go.mod while still letting internal/registry wire a concrete
// fetcher at the process edge.
type WeightFetcher interface {
	Fetch(ctx context.Context, repo, name string) (path string, err error)
}

// InferConfig carries the engine-level knobs §9's local-inference design
// note calls out (context window, GPU offload), the resolved weights path,
// and the request's token budget and sampling parameters.
type InferConfig struct {
	WeightsPath string
	NCtx        int
	NGPULayers  int
	MaxTokens   int
	Temperature *float64
	TopP        *float64
	Stop        []string
}

// LocalEngine runs one inference call against the weights named in
// cfg.WeightsPath. Implementations are expected to serialize concurrent
// calls internally if the underlying runtime requires it; Local
// additionally serializes at the per-model level (see below) so callers
// never need to.
type LocalEngine interface {
	Infer(ctx context.Context, prompt string, cfg InferConfig) (string, error)
}

// LocalConfig names the weights this model entry resolves to.
type LocalConfig struct {
	Repo       string
	Name       string
	NCtx       int
	NGPULayers int
}

// Local implements the local-inference adapter (§4.5, §9): a single
// background worker goroutine per model serializes every Complete/Generate
// call against that model's loaded weights, since most local inference
// runtimes (llama.cpp included) cannot safely interleave concurrent calls
// into one loaded context. Requests queue in arrival order; each is still
// individually cancellable via its own cancel channel.
type Local struct {
	cfg      Config
	local    LocalConfig
	fetcher  WeightFetcher
	engine   LocalEngine
	requests chan localRequest

	once        sync.Once
	weightsPath string
	fetchErr    error
}

type localRequest struct {
	ctx    context.Context
	prompt string
	icfg   InferConfig
	cancel <-chan struct{}
	result chan<- localResult
}

type localResult struct {
	text string
	err  error
}

func NewLocal(cfg Config, local LocalConfig, fetcher WeightFetcher, engine LocalEngine) *Local {
	l := &Local{
		cfg: cfg, local: local, fetcher: fetcher, engine: engine,
		requests: make(chan localRequest),
	}
	go l.worker()
	return l
}

func (a *Local) Name() string { return a.cfg.Name }

func (a *Local) worker() {
	for req := range a.requests {
		text, err := a.runOne(req.ctx, req.prompt, req.icfg, req.cancel)
		req.result <- localResult{text: text, err: err}
	}
}

func (a *Local) ensureWeights(ctx context.Context) (string, error) {
	a.once.Do(func() {
		a.weightsPath, a.fetchErr = a.fetcher.Fetch(ctx, a.local.Repo, a.local.Name)
		if a.fetchErr != nil {
			a.fetchErr = apperr.Backend(true, "fetching weights for %q: %v", a.cfg.Name, a.fetchErr)
		}
	})
	return a.weightsPath, a.fetchErr
}

func (a *Local) runOne(ctx context.Context, prompt string, icfg InferConfig, cancel <-chan struct{}) (string, error) {
	select {
	case <-cancel:
		return "", apperr.Cancelled
	default:
	}
	path, err := a.ensureWeights(ctx)
	if err != nil {
		return "", err
	}
	icfg.WeightsPath = path
	text, err := a.engine.Infer(ctx, prompt, icfg)
	if err != nil {
		select {
		case <-cancel:
			return "", apperr.Cancelled
		default:
		}
		return "", apperr.Backend(true, "local inference for %q: %v", a.cfg.Name, err)
	}
	return text, nil
}

func (a *Local) infer(ctx context.Context, prompt string, params Params, budget int, cancel <-chan struct{}) (CompletionOutcome, error) {
	icfg := InferConfig{
		NCtx: a.local.NCtx, NGPULayers: a.local.NGPULayers,
		MaxTokens:   maxTokensOrDefault(params.MaxTokens, budget),
		Temperature: mergeFloat(params.Temperature, a.cfg.Sampling.Temperature),
		TopP:        mergeFloat(params.TopP, a.cfg.Sampling.TopP),
		Stop:        params.Stop,
	}
	result := make(chan localResult, 1)
	select {
	case a.requests <- localRequest{ctx: ctx, prompt: prompt, icfg: icfg, cancel: cancel, result: result}:
	case <-cancel:
		return CompletionOutcome{}, apperr.Cancelled
	case <-ctx.Done():
		return CompletionOutcome{}, apperr.Cancelled
	}
	select {
	case r := <-result:
		if r.err != nil {
			return CompletionOutcome{}, r.err
		}
		return CompletionOutcome{Text: r.text}, nil
	case <-cancel:
		return CompletionOutcome{}, apperr.Cancelled
	case <-ctx.Done():
		return CompletionOutcome{}, apperr.Cancelled
	}
}

// flatten reduces a Prompt to the single string LocalEngine.Infer takes.
// A chat-framed model (registry's Entry.Framing "chat dominates" rule, §3)
// leaves FIM/Text/Prefix/Suffix empty and populates only Messages, so — like
// Ollama.split — Messages is checked before falling back to promptText's
// FIM/Text/Prefix+Suffix chain.
func (a *Local) flatten(prompt Prompt) string {
	if len(prompt.Messages) > 0 {
		var body strings.Builder
		for _, m := range prompt.Messages {
			body.WriteString(m.Content)
			body.WriteString("\n")
		}
		return strings.TrimRight(body.String(), "\n")
	}
	return promptText(prompt)
}

func (a *Local) Complete(ctx context.Context, prompt Prompt, params Params, cancel <-chan struct{}) (CompletionOutcome, error) {
	return a.infer(ctx, a.flatten(prompt), params, a.cfg.TokenBudgets.Completion, cancel)
}

func (a *Local) Generate(ctx context.Context, prompt Prompt, params Params, cancel <-chan struct{}) (GenerationOutcome, error) {
	out, err := a.infer(ctx, a.flatten(prompt), params, a.cfg.TokenBudgets.Generation, cancel)
	return GenerationOutcome(out), err
}
