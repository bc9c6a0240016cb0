package registry

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
	"github.com/lsp-ai-go/lsp-ai-go/internal/transformer"
	"github.com/stretchr/testify/require"
)

type fakeDoer struct{}

func (fakeDoer) Do(req *http.Request) (*http.Response, error) { return nil, nil }

func TestNewEmptyModels(t *testing.T) {
	reg, err := New(nil, Deps{})
	require.NoError(t, err)
	require.Empty(t, reg.List())
}

func TestNewRejectsUnknownKind(t *testing.T) {
	raw := json.RawMessage(`{"m": {"kind": "made_up"}}`)
	_, err := New(raw, Deps{})
	require.Error(t, err)
	var cfg *apperr.ConfigError
	require.ErrorAs(t, err, &cfg)
}

func TestNewRejectsNegativeRate(t *testing.T) {
	rate := -1.0
	entry := Entry{Kind: KindOpenAI, Endpoint: "https://example.test", Auth: AuthVariant{Literal: "x"}, Rate: Rate{MaxRequestsPerSecond: &rate}}
	raw, _ := json.Marshal(map[string]Entry{"m": entry})
	_, err := New(raw, Deps{HTTP: fakeDoer{}})
	require.Error(t, err)
}

func TestNewOpenAIRequiresHTTPDeps(t *testing.T) {
	entry := Entry{Kind: KindOpenAI, Endpoint: "https://example.test", Auth: AuthVariant{Literal: "x"}}
	raw, _ := json.Marshal(map[string]Entry{"m": entry})
	_, err := New(raw, Deps{})
	require.Error(t, err)
}

func TestNewOpenAIMissingEndpointIsConfigError(t *testing.T) {
	entry := Entry{Kind: KindOpenAI, Auth: AuthVariant{Literal: "x"}}
	raw, _ := json.Marshal(map[string]Entry{"m": entry})
	_, err := New(raw, Deps{HTTP: fakeDoer{}})
	require.Error(t, err)
}

func TestNewOpenAIMissingAuthIsConfigError(t *testing.T) {
	entry := Entry{Kind: KindOpenAI, Endpoint: "https://example.test"}
	raw, _ := json.Marshal(map[string]Entry{"m": entry})
	_, err := New(raw, Deps{HTTP: fakeDoer{}})
	require.Error(t, err)
}

func TestNewOpenAIBuildsAndResolves(t *testing.T) {
	entry := Entry{Kind: KindOpenAI, Endpoint: "https://example.test", Auth: AuthVariant{Literal: "sk-test"}}
	raw, _ := json.Marshal(map[string]Entry{"gpt": entry})
	reg, err := New(raw, Deps{HTTP: fakeDoer{}})
	require.NoError(t, err)
	require.True(t, reg.Resolvable("gpt"))
	require.False(t, reg.Resolvable("missing"))

	adapter, err := reg.Get("gpt")
	require.NoError(t, err)
	require.Equal(t, "gpt", adapter.Name())

	got, ok := reg.Entry("gpt")
	require.True(t, ok)
	require.Equal(t, KindOpenAI, got.Kind)
}

func TestNewLocalRequiresRepo(t *testing.T) {
	entry := Entry{Kind: KindLocal}
	raw, _ := json.Marshal(map[string]Entry{"m": entry})
	_, err := New(raw, Deps{})
	require.Error(t, err)
}

func TestNewLocalMissingEngineIsConfigError(t *testing.T) {
	entry := Entry{Kind: KindLocal, Repo: "org/model"}
	raw, _ := json.Marshal(map[string]Entry{"m": entry})
	_, err := New(raw, Deps{})
	require.Error(t, err)
}

func TestFramingChatDominatesOverFIM(t *testing.T) {
	e := Entry{Template: TemplateVariant{
		Chat: &ChatTemplate{Messages: []transformer.ChatMessage{{Role: "user", Content: "hi"}}},
		FIM:  &FIMTemplate{Start: "<s>", Middle: "<m>", End: "<e>"},
	}}
	framing := e.Framing()
	require.NotNil(t, framing.Chat)
	require.Nil(t, framing.FIM)
}

func TestFramingRawWhenNeitherConfigured(t *testing.T) {
	var e Entry
	framing := e.Framing()
	require.True(t, framing.Raw)
}

func TestResolveAuthMissingEnvVarIsError(t *testing.T) {
	entry := Entry{Kind: KindOpenAI, Endpoint: "https://example.test", Auth: AuthVariant{EnvVar: "LSP_AI_GO_TEST_DOES_NOT_EXIST"}}
	raw, _ := json.Marshal(map[string]Entry{"m": entry})
	_, err := New(raw, Deps{HTTP: fakeDoer{}})
	require.Error(t, err)
}
