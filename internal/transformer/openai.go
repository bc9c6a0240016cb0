package transformer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
)

// OpenAI implements the OpenAI-style adapter (§4.5): two endpoints
// (legacy completions_endpoint, chat_endpoint), Authorization: Bearer
// header, max_tokens from budgets, sampling fields passed through.
// Grounded on the teacher's internal/ai/openai_client.go request/response
// shapes.
type OpenAI struct {
	cfg  Config
	http HTTPDoer
}

func NewOpenAI(cfg Config, doer HTTPDoer) *OpenAI {
	return &OpenAI{cfg: cfg, http: doer}
}

func (a *OpenAI) Name() string { return a.cfg.Name }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model            string          `json:"model"`
	Messages         []openAIMessage `json:"messages"`
	MaxTokens        int             `json:"max_tokens,omitempty"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	Stop             []string        `json:"stop,omitempty"`
}

type openAICompletionRequest struct {
	Model            string   `json:"model"`
	Prompt           string   `json:"prompt"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	Stop             []string `json:"stop,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Text         string        `json:"text"`
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *OpenAI) params(p Params, budget int) (int, *float64, *float64, *float64, *float64, []string) {
	return maxTokensOrDefault(p.MaxTokens, budget),
		mergeFloat(p.Temperature, a.cfg.Sampling.Temperature),
		mergeFloat(p.TopP, a.cfg.Sampling.TopP),
		mergeFloat(p.FrequencyPenalty, a.cfg.Sampling.FrequencyPenalty),
		mergeFloat(p.PresencePenalty, a.cfg.Sampling.PresencePenalty),
		p.Stop
}

func (a *OpenAI) doChat(ctx context.Context, messages []ChatMessage, params Params, budget int, cancel <-chan struct{}) (CompletionOutcome, error) {
	endpoint := a.cfg.ChatEndpoint
	if endpoint == "" {
		endpoint = a.cfg.Endpoint
	}
	if endpoint == "" {
		return CompletionOutcome{}, apperr.Config("model %q: no chat endpoint configured", a.cfg.Name)
	}
	maxTok, temp, topP, freq, pres, stop := a.params(params, budget)
	msgs := make([]openAIMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openAIMessage{Role: m.Role, Content: m.Content}
	}
	body := openAIChatRequest{
		Model: a.cfg.Name, Messages: msgs, MaxTokens: maxTok,
		Temperature: temp, TopP: topP, FrequencyPenalty: freq, PresencePenalty: pres, Stop: stop,
	}
	resp, err := a.send(ctx, endpoint, body, cancel)
	if err != nil {
		return CompletionOutcome{}, err
	}
	if len(resp.Choices) == 0 {
		return CompletionOutcome{}, apperr.Backend(false, "no choices returned")
	}
	c := resp.Choices[0]
	return CompletionOutcome{Text: c.Message.Content, FinishReason: c.FinishReason, Usage: usageOf(resp.Usage)}, nil
}

func (a *OpenAI) doCompletion(ctx context.Context, text string, params Params, budget int, cancel <-chan struct{}) (CompletionOutcome, error) {
	endpoint := a.cfg.CompletionsEndpoint
	if endpoint == "" {
		endpoint = a.cfg.Endpoint
	}
	if endpoint == "" {
		return CompletionOutcome{}, apperr.Config("model %q: no completions endpoint configured", a.cfg.Name)
	}
	maxTok, temp, topP, freq, pres, stop := a.params(params, budget)
	body := openAICompletionRequest{
		Model: a.cfg.Name, Prompt: text, MaxTokens: maxTok,
		Temperature: temp, TopP: topP, FrequencyPenalty: freq, PresencePenalty: pres, Stop: stop,
	}
	resp, err := a.send(ctx, endpoint, body, cancel)
	if err != nil {
		return CompletionOutcome{}, err
	}
	if len(resp.Choices) == 0 {
		return CompletionOutcome{}, apperr.Backend(false, "no choices returned")
	}
	c := resp.Choices[0]
	text2 := c.Text
	if text2 == "" {
		text2 = c.Message.Content
	}
	return CompletionOutcome{Text: text2, FinishReason: c.FinishReason, Usage: usageOf(resp.Usage)}, nil
}

func (a *OpenAI) send(ctx context.Context, endpoint string, body any, cancel <-chan struct{}) (*openAIResponse, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, apperr.Backend(false, "marshalling request: %v", err)
	}
	_, respBody, err := retryableSend(ctx, a.cfg.Name, cancel, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(jsonData))
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
		return nil, err
	}
	var parsed openAIResponse
	if jsonErr := json.Unmarshal(respBody, &parsed); jsonErr != nil {
		return nil, apperr.Backend(false, "decoding response: %v", jsonErr)
	}
	if parsed.Error != nil {
		return nil, apperr.Backend(false, "openai error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	return &parsed, nil
}

func usageOf(u *struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}) *Usage {
	if u == nil {
		return nil
	}
	return &Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
}

func (a *OpenAI) Complete(ctx context.Context, prompt Prompt, params Params, cancel <-chan struct{}) (CompletionOutcome, error) {
	if len(prompt.Messages) > 0 {
		return a.doChat(ctx, prompt.Messages, params, a.cfg.TokenBudgets.Completion, cancel)
	}
	return a.doCompletion(ctx, promptText(prompt), params, a.cfg.TokenBudgets.Completion, cancel)
}

func (a *OpenAI) Generate(ctx context.Context, prompt Prompt, params Params, cancel <-chan struct{}) (GenerationOutcome, error) {
	if len(prompt.Messages) > 0 {
		out, err := a.doChat(ctx, prompt.Messages, params, a.cfg.TokenBudgets.Generation, cancel)
		return GenerationOutcome(out), err
	}
	out, err := a.doCompletion(ctx, promptText(prompt), params, a.cfg.TokenBudgets.Generation, cancel)
	return GenerationOutcome(out), err
}
