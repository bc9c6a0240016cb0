package transformer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
)

// MistralFIM implements the Mistral fill-in-the-middle adapter (§4.5):
// POSTs {prompt, suffix} and never expects chat framing. New relative to
// the teacher (which has no FIM backend); grounded on §4.5's explicit
// body description plus the teacher's HTTP request-building idiom.
type MistralFIM struct {
	cfg  Config
	http HTTPDoer
}

func NewMistralFIM(cfg Config, doer HTTPDoer) *MistralFIM {
	return &MistralFIM{cfg: cfg, http: doer}
}

func (a *MistralFIM) Name() string { return a.cfg.Name }

type mistralFIMRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Suffix      string   `json:"suffix,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type mistralFIMResponse struct {
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Message string `json:"message"`
}

func (a *MistralFIM) call(ctx context.Context, prompt Prompt, params Params, budget int, cancel <-chan struct{}) (CompletionOutcome, error) {
	if a.cfg.Endpoint == "" {
		return CompletionOutcome{}, apperr.Config("model %q: no endpoint configured", a.cfg.Name)
	}
	body := mistralFIMRequest{
		Model: a.cfg.Name, Prompt: prompt.Prefix, Suffix: prompt.Suffix,
		MaxTokens:   maxTokensOrDefault(params.MaxTokens, budget),
		Temperature: mergeFloat(params.Temperature, a.cfg.Sampling.Temperature),
		TopP:        mergeFloat(params.TopP, a.cfg.Sampling.TopP),
		Stop:        params.Stop,
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
		if a.cfg.AuthToken != "" {
			req.Header.Set("Authorization", "Bearer "+a.cfg.AuthToken)
		}
		return a.http.Do(req)
	})
	if err != nil {
		return CompletionOutcome{}, err
	}
	var parsed mistralFIMResponse
	if jsonErr := json.Unmarshal(respBody, &parsed); jsonErr != nil {
		return CompletionOutcome{}, apperr.Backend(false, "decoding response: %v", jsonErr)
	}
	if len(parsed.Choices) == 0 {
		if parsed.Message != "" {
			return CompletionOutcome{}, apperr.Backend(false, "mistral error: %s", parsed.Message)
		}
		return CompletionOutcome{}, apperr.Backend(false, "no choices returned")
	}
	c := parsed.Choices[0]
	return CompletionOutcome{Text: c.Text, FinishReason: c.FinishReason, Usage: usageOf(parsed.Usage)}, nil
}

func (a *MistralFIM) Complete(ctx context.Context, prompt Prompt, params Params, cancel <-chan struct{}) (CompletionOutcome, error) {
	return a.call(ctx, prompt, params, a.cfg.TokenBudgets.Completion, cancel)
}

func (a *MistralFIM) Generate(ctx context.Context, prompt Prompt, params Params, cancel <-chan struct{}) (GenerationOutcome, error) {
	out, err := a.call(ctx, prompt, params, a.cfg.TokenBudgets.Generation, cancel)
	return GenerationOutcome(out), err
}
