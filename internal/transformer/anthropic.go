package transformer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
)

// Anthropic implements the Anthropic-style adapter (§4.5): x-api-key and
// anthropic-version headers, messages body with the system prompt hoisted
// out of the message array into a top-level field. Grounded on the
// teacher's internal/ai/anthropic_client.go.
type Anthropic struct {
	cfg        Config
	http       HTTPDoer
	apiVersion string
}

func NewAnthropic(cfg Config, doer HTTPDoer) *Anthropic {
	return &Anthropic{cfg: cfg, http: doer, apiVersion: "2023-06-01"}
}

func (a *Anthropic) Name() string { return a.cfg.Name }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model         string             `json:"model"`
	Messages      []anthropicMessage `json:"messages"`
	System        string             `json:"system,omitempty"`
	MaxTokens     int                `json:"max_tokens"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Temperature   *float64           `json:"temperature,omitempty"`
	TopP          *float64           `json:"top_p,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func hoistSystem(messages []ChatMessage) (system string, rest []anthropicMessage) {
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		rest = append(rest, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	if len(rest) == 0 {
		rest = []anthropicMessage{{Role: "user", Content: ""}}
	}
	return system, rest
}

func (a *Anthropic) call(ctx context.Context, messages []ChatMessage, params Params, budget int, cancel <-chan struct{}) (CompletionOutcome, error) {
	if a.cfg.Endpoint == "" {
		return CompletionOutcome{}, apperr.Config("model %q: no endpoint configured", a.cfg.Name)
	}
	system, rest := hoistSystem(messages)
	body := anthropicRequest{
		Model:         a.cfg.Name,
		Messages:      rest,
		System:        system,
		MaxTokens:     maxTokensOrDefault(params.MaxTokens, budget),
		StopSequences: params.Stop,
		Temperature:   mergeFloat(params.Temperature, a.cfg.Sampling.Temperature),
		TopP:          mergeFloat(params.TopP, a.cfg.Sampling.TopP),
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return CompletionOutcome{}, apperr.Backend(false, "marshalling request: %v", err)
	}
	_, respBody, err := retryableSend(ctx, a.cfg.Name, cancel, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", a.cfg.Endpoint, bytes.NewReader(jsonData))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", a.cfg.AuthToken)
		req.Header.Set("anthropic-version", a.apiVersion)
		return a.http.Do(req)
	})
	if err != nil {
		return CompletionOutcome{}, err
	}
	var parsed anthropicResponse
	if jsonErr := json.Unmarshal(respBody, &parsed); jsonErr != nil {
		return CompletionOutcome{}, apperr.Backend(false, "decoding response: %v", jsonErr)
	}
	if parsed.Error != nil {
		return CompletionOutcome{}, apperr.Backend(false, "anthropic error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	var text string
	for _, c := range parsed.Content {
		if c.Type == "text" {
			text = c.Text
			break
		}
	}
	return CompletionOutcome{
		Text:         text,
		FinishReason: parsed.StopReason,
		Usage:        &Usage{PromptTokens: parsed.Usage.InputTokens, CompletionTokens: parsed.Usage.OutputTokens, TotalTokens: parsed.Usage.InputTokens + parsed.Usage.OutputTokens},
	}, nil
}

func (a *Anthropic) Complete(ctx context.Context, prompt Prompt, params Params, cancel <-chan struct{}) (CompletionOutcome, error) {
	messages := prompt.Messages
	if len(messages) == 0 {
		messages = []ChatMessage{{Role: "user", Content: promptText(prompt)}}
	}
	return a.call(ctx, messages, params, a.cfg.TokenBudgets.Completion, cancel)
}

func (a *Anthropic) Generate(ctx context.Context, prompt Prompt, params Params, cancel <-chan struct{}) (GenerationOutcome, error) {
	messages := prompt.Messages
	if len(messages) == 0 {
		messages = []ChatMessage{{Role: "user", Content: promptText(prompt)}}
	}
	out, err := a.call(ctx, messages, params, a.cfg.TokenBudgets.Generation, cancel)
	return GenerationOutcome(out), err
}
