package transformer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
)

// Gemini implements the generateContent surface (§4.5): contents/role
// mapping, API key passed as a query parameter. Grounded on the teacher's
// internal/ai/gemini_client.go request/response shapes.
type Gemini struct {
	cfg  Config
	http HTTPDoer
}

func NewGemini(cfg Config, doer HTTPDoer) *Gemini {
	return &Gemini{cfg: cfg, http: doer}
}

func (a *Gemini) Name() string { return a.cfg.Name }

type geminiPart struct {
	Text string `json:"text"`
}
type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}
type geminiGenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}
type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}
type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// geminiRole maps the spec's chat roles ("user"/"assistant"/"system") to
// Gemini's "user"/"model" role vocabulary.
func geminiRole(role string) string {
	if role == "assistant" || role == "model" {
		return "model"
	}
	return "user"
}

func (a *Gemini) toContents(messages []ChatMessage) []geminiContent {
	out := make([]geminiContent, 0, len(messages))
	for _, m := range messages {
		out = append(out, geminiContent{Parts: []geminiPart{{Text: m.Content}}, Role: geminiRole(m.Role)})
	}
	return out
}

func (a *Gemini) call(ctx context.Context, messages []ChatMessage, params Params, budget int, cancel <-chan struct{}) (CompletionOutcome, error) {
	if a.cfg.Endpoint == "" {
		return CompletionOutcome{}, apperr.Config("model %q: no endpoint configured", a.cfg.Name)
	}
	body := geminiRequest{
		Contents: a.toContents(messages),
		GenerationConfig: &geminiGenerationConfig{
			MaxOutputTokens: maxTokensOrDefault(params.MaxTokens, budget),
			Temperature:     mergeFloat(params.Temperature, a.cfg.Sampling.Temperature),
			TopP:            mergeFloat(params.TopP, a.cfg.Sampling.TopP),
			StopSequences:   params.Stop,
		},
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return CompletionOutcome{}, apperr.Backend(false, "marshalling request: %v", err)
	}
	endpoint := a.cfg.Endpoint
	if a.cfg.AuthToken != "" {
		sep := "?"
		if bytes.ContainsRune([]byte(endpoint), '?') {
			sep = "&"
		}
		endpoint = endpoint + sep + "key=" + a.cfg.AuthToken
	}
	_, respBody, err := retryableSend(ctx, a.cfg.Name, cancel, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(jsonData))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return a.http.Do(req)
	})
	if err != nil {
		return CompletionOutcome{}, err
	}
	var parsed geminiResponse
	if jsonErr := json.Unmarshal(respBody, &parsed); jsonErr != nil {
		return CompletionOutcome{}, apperr.Backend(false, "decoding response: %v", jsonErr)
	}
	if parsed.Error != nil {
		return CompletionOutcome{}, apperr.Backend(false, "gemini error: %s", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return CompletionOutcome{}, apperr.Backend(false, "no candidates returned")
	}
	c := parsed.Candidates[0]
	return CompletionOutcome{
		Text:         c.Content.Parts[0].Text,
		FinishReason: c.FinishReason,
		Usage: &Usage{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

func (a *Gemini) Complete(ctx context.Context, prompt Prompt, params Params, cancel <-chan struct{}) (CompletionOutcome, error) {
	messages := prompt.Messages
	if len(messages) == 0 {
		messages = []ChatMessage{{Role: "user", Content: promptText(prompt)}}
	}
	return a.call(ctx, messages, params, a.cfg.TokenBudgets.Completion, cancel)
}

func (a *Gemini) Generate(ctx context.Context, prompt Prompt, params Params, cancel <-chan struct{}) (GenerationOutcome, error) {
	messages := prompt.Messages
	if len(messages) == 0 {
		messages = []ChatMessage{{Role: "user", Content: promptText(prompt)}}
	}
	out, err := a.call(ctx, messages, params, a.cfg.TokenBudgets.Generation, cancel)
	return GenerationOutcome(out), err
}
