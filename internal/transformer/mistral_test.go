package transformer

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
	"github.com/stretchr/testify/require"
)

func TestMistralFIMCompletionSuccess(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		jsonResp(200, `{"choices":[{"text":"middle","finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`),
	}}
	a := NewMistralFIM(Config{Name: "codestral", Endpoint: "https://example.test", TokenBudgets: TokenBudgets{Completion: 64}}, doer)

	out, err := a.Complete(context.Background(), Prompt{Prefix: "func f() {", Suffix: "}"}, Params{}, nil)
	require.NoError(t, err)
	require.Equal(t, "middle", out.Text)
	require.Equal(t, 5, out.Usage.TotalTokens)
}

func TestMistralFIMNoEndpointConfigured(t *testing.T) {
	doer := &fakeDoer{}
	a := NewMistralFIM(Config{Name: "codestral"}, doer)
	_, err := a.Complete(context.Background(), Prompt{Prefix: "x"}, Params{}, nil)
	require.Error(t, err)
	var cfg *apperr.ConfigError
	require.ErrorAs(t, err, &cfg)
}

func TestMistralFIMErrorMessageSurfaced(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{jsonResp(200, `{"choices":[],"message":"invalid model"}`)}}
	a := NewMistralFIM(Config{Name: "codestral", Endpoint: "https://example.test"}, doer)
	_, err := a.Complete(context.Background(), Prompt{Prefix: "x"}, Params{}, nil)
	require.ErrorContains(t, err, "invalid model")
}

func TestMistralFIMNoChoicesNoMessageIsGenericError(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{jsonResp(200, `{"choices":[]}`)}}
	a := NewMistralFIM(Config{Name: "codestral", Endpoint: "https://example.test"}, doer)
	_, err := a.Complete(context.Background(), Prompt{Prefix: "x"}, Params{}, nil)
	require.Error(t, err)
}

func TestMistralFIMGenerateUsesGenerationBudget(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		jsonResp(200, `{"choices":[{"text":"gen","finish_reason":"stop"}]}`),
	}}
	a := NewMistralFIM(Config{Name: "codestral", Endpoint: "https://example.test", TokenBudgets: TokenBudgets{Generation: 32}}, doer)
	out, err := a.Generate(context.Background(), Prompt{Prefix: "x"}, Params{}, nil)
	require.NoError(t, err)
	require.Equal(t, "gen", out.Text)

	var sent mistralFIMRequest
	require.NoError(t, json.NewDecoder(doer.lastReq.Body).Decode(&sent))
	require.Equal(t, 32, sent.MaxTokens)
}
