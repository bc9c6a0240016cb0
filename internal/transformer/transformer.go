// Package transformer implements the Transformer Adapters (C5): a uniform
// complete/generate contract over six backend families, each translating to
// its own wire format. Grounded on the teacher's internal/ai/*.go client
// family, generalized from "return a cleaned string" to the richer
// CompletionOutcome/GenerationOutcome contract and from a concrete
// *http.Client field to the HTTPDoer interface seam (§1 names HTTP
// transport libraries an out-of-scope external collaborator).
package transformer

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
	"github.com/lsp-ai-go/lsp-ai-go/internal/metrics"
)

// HTTPDoer is the narrow seam every HTTP-speaking adapter is built
// against. *http.Client satisfies it; tests supply a fake.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ChatMessage is one turn in a chat-framed prompt, per §3's
// template{chat(messages[])}.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FIMTokens are the literal sentinel strings a FIM-framed model wraps its
// prefix/suffix with, per §3's template{fim(start,middle,end)}.
type FIMTokens struct {
	Start, Middle, End string
}

// TokenBudgets mirrors §3's ModelEntry.token_budgets.
type TokenBudgets struct {
	Completion int
	Generation int
	MaxContext int
}

// Sampling mirrors §3's ModelEntry.sampling; nil fields are omitted from
// the outbound request so each backend's own default applies.
type Sampling struct {
	Temperature      *float64
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
}

// Config is the resolved, secret-bearing configuration an adapter is
// constructed from. internal/registry builds one of these per ModelEntry;
// it is never re-exposed once the adapter holds it (§4.4: auth resolved
// once, never leaked by diagnostics).
type Config struct {
	Name                string
	Endpoint            string
	ChatEndpoint        string
	CompletionsEndpoint string
	AuthToken           string
	TokenBudgets        TokenBudgets
	Sampling            Sampling
}

// Prompt is the payload internal/prompt hands to an adapter, already fully
// framed (FIM-wrapped or chat-rendered) by C2/C3 — the adapter's only job
// is wire translation, not template substitution. Only the fields relevant
// to the adapter's framing are populated; e.g. a Mistral FIM adapter reads
// Prefix/Suffix and ignores Messages.
type Prompt struct {
	Prefix   string
	Suffix   string
	FIM      string
	Text     string
	Messages []ChatMessage
}

// Params carries per-request generation parameters, merged from an
// Action's configured parameters and the model's token budget for the
// request kind (completion vs generation).
type Params struct {
	MaxTokens        int
	Temperature      *float64
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
	Stop             []string
}

// Usage reports backend-side token accounting, when the backend returns it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionOutcome and GenerationOutcome are the two outcome shapes every
// adapter returns, per §4.5.
type CompletionOutcome struct {
	Text         string
	FinishReason string
	Usage        *Usage
}

type GenerationOutcome struct {
	Text         string
	FinishReason string
	Usage        *Usage
}

// Adapter is the uniform contract every transformer backend implements.
type Adapter interface {
	Name() string
	Complete(ctx context.Context, prompt Prompt, params Params, cancel <-chan struct{}) (CompletionOutcome, error)
	Generate(ctx context.Context, prompt Prompt, params Params, cancel <-chan struct{}) (GenerationOutcome, error)
}

const (
	maxAttempts       = 3
	perAttemptTimeout = 60 * time.Second
)

// retryableSend executes send up to maxAttempts times, retrying on network
// errors, HTTP 429, and HTTP 5xx with jittered exponential backoff; 4xx
// other than 429 fails immediately and non-retryably, per §4.5. Cancel is
// observed between attempts and during the backoff sleep (§9's "retry loop
// must observe the cancel token between attempts and between backoff
// sleeps").
func retryableSend(ctx context.Context, modelName string, cancel <-chan struct{}, send func(ctx context.Context) (*http.Response, error)) (*http.Response, []byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-cancel:
			return nil, nil, apperr.Cancelled
		default:
		}

		attemptCtx, cancelAttempt := context.WithTimeout(ctx, perAttemptTimeout)
		stopWatcher := watchCancel(cancelAttempt, cancel)
		resp, err := send(attemptCtx)
		cancelAttempt()
		stopWatcher()

		if err != nil {
			if errors.Is(err, context.Canceled) {
				metrics.AdapterAttempts.WithLabelValues(modelName, "cancelled").Inc()
				return nil, nil, apperr.Cancelled
			}
			metrics.AdapterAttempts.WithLabelValues(modelName, "network_error").Inc()
			lastErr = apperr.Backend(true, "network error: %v", err)
			if attempt == maxAttempts || !interruptibleSleep(ctx, cancel, attempt) {
				return nil, nil, lastErrOrCancelled(lastErr, ctx, cancel)
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			metrics.AdapterAttempts.WithLabelValues(modelName, "read_error").Inc()
			lastErr = apperr.Backend(true, "reading response body: %v", readErr)
			if attempt == maxAttempts || !interruptibleSleep(ctx, cancel, attempt) {
				return nil, nil, lastErrOrCancelled(lastErr, ctx, cancel)
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			metrics.AdapterAttempts.WithLabelValues(modelName, "ok").Inc()
			return resp, body, nil
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if !retryable {
			metrics.AdapterAttempts.WithLabelValues(modelName, "http_error").Inc()
			return resp, body, apperr.Backend(false, "http status %d", resp.StatusCode)
		}
		metrics.AdapterAttempts.WithLabelValues(modelName, "retryable_http_error").Inc()
		lastErr = apperr.Backend(true, "http status %d", resp.StatusCode)
		if attempt == maxAttempts || !interruptibleSleep(ctx, cancel, attempt) {
			return nil, nil, lastErrOrCancelled(lastErr, ctx, cancel)
		}
	}
	return nil, nil, lastErr
}

func lastErrOrCancelled(last error, ctx context.Context, cancel <-chan struct{}) error {
	select {
	case <-cancel:
		return apperr.Cancelled
	default:
	}
	if ctx.Err() != nil {
		return apperr.Cancelled
	}
	return last
}

// interruptibleSleep backs off with jittered exponential delay, returning
// false if cancel or ctx fired during the wait.
func interruptibleSleep(ctx context.Context, cancel <-chan struct{}, attempt int) bool {
	base := time.Duration(1<<uint(attempt-1)) * 200 * time.Millisecond
	jitter := time.Duration(rand.Int63n(int64(base) + 1))
	timer := time.NewTimer(base + jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-cancel:
		return false
	}
}

// watchCancel starts a goroutine that invokes abort as soon as cancel fires,
// so an in-flight send(attemptCtx) call gets interrupted mid-request rather
// than only between attempts — §4.9's cancellation model requires
// `$/cancelRequest` to reach the HTTP call itself, not just the retry loop's
// between-attempt checks. The returned stop func must be called once the
// send has returned, to release the watcher goroutine whether or not cancel
// ever fired.
func watchCancel(abort func(), cancel <-chan struct{}) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-cancel:
			abort()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// mergeFloat returns override if non-nil, else fallback.
func mergeFloat(override, fallback *float64) *float64 {
	if override != nil {
		return override
	}
	return fallback
}

func maxTokensOrDefault(requested, fallback int) int {
	if requested > 0 {
		return requested
	}
	return fallback
}

// promptText flattens a non-chat Prompt to the single string a FIM
// template has already fully framed: FIM wins when C3 framed a FIM model
// (prompt.Text is empty in that case), falling back to Text, then to a raw
// Prefix+Suffix concatenation for an adapter given neither. Every adapter
// whose wire format takes one prompt string rather than a Messages array
// — completions-endpoint OpenAI, Ollama, Local — reads prompt.Text through
// this helper instead of directly, since template "fim(start,middle,end)"
// is legal on any kind per §3 and leaves Text empty.
func promptText(p Prompt) string {
	if p.FIM != "" {
		return p.FIM
	}
	if p.Text != "" {
		return p.Text
	}
	return p.Prefix + p.Suffix
}
