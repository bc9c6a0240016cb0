// Package registry implements the Model Registry (C4): it parses the
// initializationOptions "models" map into named ModelEntry values, builds
// one transformer adapter per entry, resolves auth.env_var exactly once at
// construction time, and is immutable once New returns.
package registry

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
	"github.com/lsp-ai-go/lsp-ai-go/internal/transformer"
)

// Kind names a transformer backend family, matching §2's C5 table.
type Kind string

const (
	KindLocal     Kind = "local"
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindGemini    Kind = "gemini"
	KindMistralFIM Kind = "mistral_fim"
	KindOllama    Kind = "ollama"
)

// AuthVariant selects how a remote adapter's credential is supplied.
type AuthVariant struct {
	EnvVar  string `json:"env_var,omitempty"`
	Literal string `json:"literal,omitempty"`
}

// TemplateVariant names which framing a ModelEntry uses, per §3.
type TemplateVariant struct {
	Chat *ChatTemplate `json:"chat,omitempty"`
	FIM  *FIMTemplate  `json:"fim,omitempty"`
	Raw  bool          `json:"raw,omitempty"`
}

type ChatTemplate struct {
	Messages []transformer.ChatMessage `json:"messages"`
}

type FIMTemplate struct {
	Start  string `json:"start"`
	Middle string `json:"middle"`
	End    string `json:"end"`
}

// TokenBudgets bounds a model's prompt framing, per §3.
type TokenBudgets struct {
	Completion int `json:"completion"`
	Generation int `json:"generation"`
	MaxContext int `json:"max_context"`
}

// Sampling carries pass-through generation parameters, per §4.5.
type Sampling struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
}

// Rate names a model's outbound request ceiling, consumed by internal/ratelimit.
type Rate struct {
	MaxRequestsPerSecond *float64 `json:"max_requests_per_second,omitempty"`
}

// Entry is the wire shape of one named model, per §3's ModelEntry.
type Entry struct {
	Name             string          `json:"name"`
	Kind             Kind            `json:"kind"`
	Endpoint         string          `json:"endpoint,omitempty"`
	CompletionsEndpoint string       `json:"completions_endpoint,omitempty"`
	ChatEndpoint     string          `json:"chat_endpoint,omitempty"`
	Auth             AuthVariant     `json:"auth,omitempty"`
	TokenBudgets     TokenBudgets    `json:"token_budgets"`
	Sampling         Sampling        `json:"sampling"`
	Rate             Rate            `json:"rate"`
	Template         TemplateVariant `json:"template"`
	// Local-inference-only fields (§4.5).
	Repo       string `json:"repo,omitempty"`
	NCtx       int    `json:"n_ctx,omitempty"`
	NGPULayers int    `json:"n_gpu_layers,omitempty"`
}

// Registry owns every constructed adapter and is read-only after New.
type Registry struct {
	entries  map[string]Entry
	adapters map[string]transformer.Adapter
	order    []string
}

// Deps supplies the narrow external collaborators (§1) adapter
// construction needs: an HTTP doer for remote backends and local-inference
// seams. Any field left nil disables the adapters that need it; they fail
// at construction with a ConfigError rather than at first use.
type Deps struct {
	HTTP          transformer.HTTPDoer
	WeightFetcher transformer.WeightFetcher
	LocalEngine   transformer.LocalEngine
	// Logger receives validate's non-fatal warnings (e.g. a model entry
	// configuring both chat and FIM templates). Defaults to slog's discard
	// handler when nil, so callers that don't care about registry
	// construction-time warnings don't need to wire anything.
	Logger *slog.Logger
}

// New parses raw (the "models" object from initializationOptions) and
// constructs one adapter per entry. Any entry with an unresolvable kind, a
// missing endpoint/credential, or a negative rate is a fatal ConfigError
// (§4.4 "fail fast").
func New(raw json.RawMessage, deps Deps) (*Registry, error) {
	var rawEntries map[string]Entry
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rawEntries); err != nil {
			return nil, apperr.Config("decoding models map: %v", err)
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	reg := &Registry{
		entries:  make(map[string]Entry, len(rawEntries)),
		adapters: make(map[string]transformer.Adapter, len(rawEntries)),
	}

	for name, entry := range rawEntries {
		entry.Name = name
		if err := validate(entry, logger); err != nil {
			return nil, err
		}
		adapter, err := build(entry, deps)
		if err != nil {
			return nil, err
		}
		reg.entries[name] = entry
		reg.adapters[name] = adapter
		reg.order = append(reg.order, name)
	}
	return reg, nil
}

func validate(e Entry, logger *slog.Logger) error {
	switch e.Kind {
	case KindLocal, KindOpenAI, KindAnthropic, KindGemini, KindMistralFIM, KindOllama:
	default:
		return apperr.Config("model %q: unresolvable kind %q", e.Name, e.Kind)
	}
	if e.Rate.MaxRequestsPerSecond != nil && *e.Rate.MaxRequestsPerSecond < 0 {
		return apperr.Config("model %q: negative rate", e.Name)
	}
	if e.Template.Chat != nil && e.Template.FIM != nil {
		// Open Question in §9, decided: chat dominates when both are
		// configured on a model entry; FIM is dropped rather than treated
		// as a configuration error, but the drop is logged since it's
		// easy to misconfigure and silent otherwise.
		logger.Warn("model configures both chat and fim templates, dropping fim", "model", e.Name)
	}
	switch e.Kind {
	case KindOpenAI:
		if e.ChatEndpoint == "" && e.CompletionsEndpoint == "" && e.Endpoint == "" {
			return apperr.Config("model %q: openai-style adapter needs chat_endpoint, completions_endpoint, or endpoint", e.Name)
		}
	case KindAnthropic, KindGemini, KindMistralFIM:
		if e.Endpoint == "" {
			return apperr.Config("model %q: %s adapter requires an endpoint", e.Name, e.Kind)
		}
	case KindOllama:
		if e.Endpoint == "" {
			return apperr.Config("model %q: ollama adapter requires an endpoint", e.Name)
		}
	case KindLocal:
		if e.Repo == "" {
			return apperr.Config("model %q: local-inference adapter requires repo", e.Name)
		}
	}
	if e.Kind == KindOpenAI || e.Kind == KindAnthropic || e.Kind == KindGemini || e.Kind == KindMistralFIM {
		if e.Auth.EnvVar == "" && e.Auth.Literal == "" {
			return apperr.Config("model %q: %s adapter requires auth.env_var or auth.literal", e.Name, e.Kind)
		}
	}
	return nil
}

// resolveAuth reads auth.env_var exactly once, per §6 ("must be read at
// adapter construction, not per-request; rotation is not supported").
func resolveAuth(a AuthVariant) (string, error) {
	if a.Literal != "" {
		return a.Literal, nil
	}
	if a.EnvVar == "" {
		return "", nil
	}
	v := os.Getenv(a.EnvVar)
	if v == "" {
		return "", apperr.Config("environment variable %q is unset", a.EnvVar)
	}
	return v, nil
}

func build(e Entry, deps Deps) (transformer.Adapter, error) {
	cfg := transformer.Config{
		Name:         e.Name,
		Endpoint:     e.Endpoint,
		ChatEndpoint: e.ChatEndpoint,
		CompletionsEndpoint: e.CompletionsEndpoint,
		TokenBudgets: transformer.TokenBudgets(e.TokenBudgets),
		Sampling:     transformer.Sampling(e.Sampling),
	}
	if e.Auth.EnvVar != "" || e.Auth.Literal != "" {
		secret, err := resolveAuth(e.Auth)
		if err != nil {
			return nil, err
		}
		cfg.AuthToken = secret
	}
	switch e.Kind {
	case KindOpenAI:
		if deps.HTTP == nil {
			return nil, apperr.Config("model %q: no HTTP transport configured", e.Name)
		}
		return transformer.NewOpenAI(cfg, deps.HTTP), nil
	case KindAnthropic:
		if deps.HTTP == nil {
			return nil, apperr.Config("model %q: no HTTP transport configured", e.Name)
		}
		return transformer.NewAnthropic(cfg, deps.HTTP), nil
	case KindGemini:
		if deps.HTTP == nil {
			return nil, apperr.Config("model %q: no HTTP transport configured", e.Name)
		}
		return transformer.NewGemini(cfg, deps.HTTP), nil
	case KindMistralFIM:
		if deps.HTTP == nil {
			return nil, apperr.Config("model %q: no HTTP transport configured", e.Name)
		}
		return transformer.NewMistralFIM(cfg, deps.HTTP), nil
	case KindOllama:
		if deps.HTTP == nil {
			return nil, apperr.Config("model %q: no HTTP transport configured", e.Name)
		}
		return transformer.NewOllama(cfg, deps.HTTP)
	case KindLocal:
		if deps.WeightFetcher == nil || deps.LocalEngine == nil {
			return nil, apperr.Config("model %q: no local-inference engine configured", e.Name)
		}
		return transformer.NewLocal(cfg, transformer.LocalConfig{
			Repo:       e.Repo,
			Name:       e.Name,
			NCtx:       e.NCtx,
			NGPULayers: e.NGPULayers,
		}, deps.WeightFetcher, deps.LocalEngine), nil
	default:
		return nil, apperr.Config("model %q: unresolvable kind %q", e.Name, e.Kind)
	}
}

// Get resolves name to its constructed adapter, per §4.4.
func (r *Registry) Get(name string) (transformer.Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, apperr.Config("unknown model %q", name)
	}
	return a, nil
}

// Entry returns the (secret-free) configuration for name, for diagnostics.
func (r *Registry) Entry(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Framing is the resolved prompt-framing shape internal/prompt consumes to
// decide how to render a model's prompt: at most one of Chat/FIM is set,
// Raw otherwise. Chat dominates over FIM when both are configured on any
// model entry (§9 Open Question, decided in DESIGN.md); validate logs a
// warning naming the dropped FIM template.
type Framing struct {
	Chat *ChatTemplate
	FIM  *FIMTemplate
	Raw  bool
}

// Framing resolves e's TemplateVariant down to the single framing C2/C3
// actually use, applying the chat-dominates-FIM tie-break.
func (e Entry) Framing() Framing {
	if e.Template.Chat != nil {
		return Framing{Chat: e.Template.Chat}
	}
	if e.Template.FIM != nil {
		return Framing{FIM: e.Template.FIM}
	}
	return Framing{Raw: true}
}

// List enumerates every configured model name, for diagnostics (§4.4).
func (r *Registry) List() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Resolvable reports whether name resolves in the registry, used at
// startup to fail fast on an Action whose model_ref is unknown (§3).
func (r *Registry) Resolvable(name string) bool {
	_, ok := r.adapters[name]
	return ok
}
