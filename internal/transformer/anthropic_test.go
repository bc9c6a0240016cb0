package transformer

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
	"github.com/stretchr/testify/require"
)

func TestAnthropicCompletionSuccess(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		jsonResp(200, `{"content":[{"type":"text","text":"hello"}],"stop_reason":"end_turn","usage":{"input_tokens":5,"output_tokens":7}}`),
	}}
	a := NewAnthropic(Config{Name: "claude", Endpoint: "https://example.test", TokenBudgets: TokenBudgets{Completion: 100}}, doer)

	out, err := a.Complete(context.Background(), Prompt{Text: "prefix"}, Params{}, nil)
	require.NoError(t, err)
	require.Equal(t, "hello", out.Text)
	require.Equal(t, "end_turn", out.FinishReason)
	require.Equal(t, 12, out.Usage.TotalTokens)
}

func TestAnthropicHoistsSystemMessage(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		jsonResp(200, `{"content":[{"type":"text","text":"ok"}]}`),
	}}
	a := NewAnthropic(Config{Name: "claude", Endpoint: "https://example.test"}, doer)

	_, err := a.Complete(context.Background(), Prompt{Messages: []ChatMessage{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
	}}, Params{}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, doer.calls)

	var sent anthropicRequest
	require.NoError(t, json.NewDecoder(doer.lastReq.Body).Decode(&sent))
	require.Equal(t, "be terse", sent.System)
	require.Equal(t, []anthropicMessage{{Role: "user", Content: "hi"}}, sent.Messages)
}

func TestAnthropicNoEndpointConfigured(t *testing.T) {
	doer := &fakeDoer{}
	a := NewAnthropic(Config{Name: "claude"}, doer)
	_, err := a.Complete(context.Background(), Prompt{Text: "x"}, Params{}, nil)
	require.Error(t, err)
	var cfg *apperr.ConfigError
	require.ErrorAs(t, err, &cfg)
}

func TestAnthropicAPIErrorIsNonRetryable(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		jsonResp(200, `{"error":{"type":"overloaded_error","message":"busy"}}`),
	}}
	a := NewAnthropic(Config{Name: "claude", Endpoint: "https://example.test"}, doer)
	_, err := a.Complete(context.Background(), Prompt{Text: "x"}, Params{}, nil)
	require.Error(t, err)
	require.Equal(t, 1, doer.calls)
}

func TestAnthropicGenerateUsesGenerationBudget(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		jsonResp(200, `{"content":[{"type":"text","text":"gen"}],"stop_reason":"end_turn"}`),
	}}
	a := NewAnthropic(Config{Name: "claude", Endpoint: "https://example.test", TokenBudgets: TokenBudgets{Generation: 50}}, doer)
	out, err := a.Generate(context.Background(), Prompt{Text: "x"}, Params{}, nil)
	require.NoError(t, err)
	require.Equal(t, "gen", out.Text)

	var sent anthropicRequest
	require.NoError(t, json.NewDecoder(doer.lastReq.Body).Decode(&sent))
	require.Equal(t, 50, sent.MaxTokens)
}
