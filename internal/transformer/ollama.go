package transformer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
)

// Ollama implements the Ollama adapter (§4.5): POSTs to <host>/api/generate
// with "stream": false, and reads the reply as newline-delimited JSON,
// concatenating the "response" field of every line, so a streamed reply is
// accumulated the same way as a single object. Grounded on the teacher's
// internal/ai/ollama_client.go.
type Ollama struct {
	cfg  Config
	http HTTPDoer
}

func NewOllama(cfg Config, doer HTTPDoer) (*Ollama, error) {
	if cfg.Endpoint != "" {
		if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
			return nil, apperr.Config("model %q: invalid ollama host %q: %v", cfg.Name, cfg.Endpoint, err)
		}
	}
	return &Ollama{cfg: cfg, http: doer}, nil
}

func (a *Ollama) Name() string { return a.cfg.Name }

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  *bool          `json:"stream,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model              string `json:"model"`
	CreatedAt          string `json:"created_at"`
	Response           string `json:"response"`
	Done               bool   `json:"done"`
	Error              string `json:"error"`
	PromptEvalCount    int    `json:"prompt_eval_count"`
	EvalCount          int    `json:"eval_count"`
	DoneReason         string `json:"done_reason"`
	TotalDurationNanos int64  `json:"total_duration"`
}

func streamFalse() *bool { f := false; return &f }

func (a *Ollama) options(params Params, budget int) map[string]any {
	opts := map[string]any{"num_predict": maxTokensOrDefault(params.MaxTokens, budget)}
	if t := mergeFloat(params.Temperature, a.cfg.Sampling.Temperature); t != nil {
		opts["temperature"] = *t
	}
	if t := mergeFloat(params.TopP, a.cfg.Sampling.TopP); t != nil {
		opts["top_p"] = *t
	}
	if len(params.Stop) > 0 {
		opts["stop"] = params.Stop
	}
	return opts
}

func (a *Ollama) call(ctx context.Context, prompt, system string, params Params, budget int, cancel <-chan struct{}) (CompletionOutcome, error) {
	if a.cfg.Endpoint == "" {
		return CompletionOutcome{}, apperr.Config("model %q: no host configured", a.cfg.Name)
	}
	body := ollamaGenerateRequest{
		Model: a.cfg.Name, Prompt: prompt, System: system,
		Stream: streamFalse(), Options: a.options(params, budget),
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return CompletionOutcome{}, apperr.Backend(false, "marshalling request: %v", err)
	}
	endpoint := strings.TrimRight(a.cfg.Endpoint, "/") + "/api/generate"
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

	var text strings.Builder
	var last ollamaGenerateResponse
	scanner := bufio.NewScanner(bytes.NewReader(respBody))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		select {
		case <-cancel:
			return CompletionOutcome{}, apperr.Cancelled
		default:
		}
		var chunk ollamaGenerateResponse
		if jsonErr := json.Unmarshal(line, &chunk); jsonErr != nil {
			return CompletionOutcome{}, apperr.Backend(false, "decoding stream chunk: %v", jsonErr)
		}
		if chunk.Error != "" {
			return CompletionOutcome{}, apperr.Backend(false, "ollama error: %s", chunk.Error)
		}
		text.WriteString(chunk.Response)
		last = chunk
	}
	if err := scanner.Err(); err != nil {
		return CompletionOutcome{}, apperr.Backend(true, "reading stream: %v", err)
	}
	return CompletionOutcome{
		Text:         text.String(),
		FinishReason: last.DoneReason,
		Usage:        &Usage{PromptTokens: last.PromptEvalCount, CompletionTokens: last.EvalCount, TotalTokens: last.PromptEvalCount + last.EvalCount},
	}, nil
}

func (a *Ollama) split(prompt Prompt) (text, system string) {
	if len(prompt.Messages) > 0 {
		var body strings.Builder
		for _, m := range prompt.Messages {
			if m.Role == "system" {
				system = m.Content
				continue
			}
			body.WriteString(m.Content)
			body.WriteString("\n")
		}
		return strings.TrimRight(body.String(), "\n"), system
	}
	return promptText(prompt), ""
}

func (a *Ollama) Complete(ctx context.Context, prompt Prompt, params Params, cancel <-chan struct{}) (CompletionOutcome, error) {
	text, system := a.split(prompt)
	return a.call(ctx, text, system, params, a.cfg.TokenBudgets.Completion, cancel)
}

func (a *Ollama) Generate(ctx context.Context, prompt Prompt, params Params, cancel <-chan struct{}) (GenerationOutcome, error) {
	text, system := a.split(prompt)
	out, err := a.call(ctx, text, system, params, a.cfg.TokenBudgets.Generation, cancel)
	return GenerationOutcome(out), err
}
