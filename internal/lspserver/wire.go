package lspserver

import (
	"encoding/json"

	"github.com/lsp-ai-go/lsp-ai-go/internal/action"
	"github.com/lsp-ai-go/lsp-ai-go/internal/postprocess"
	"github.com/lsp-ai-go/lsp-ai-go/internal/transformer"
)

// initOptions is the wire shape of initialize.params.initializationOptions
// (§6): memory backend selection, the model registry's raw entries (passed
// through untouched to internal/registry), the configured actions, and an
// optional implicit-completion-action fallback.
type initOptions struct {
	Memory     json.RawMessage `json:"memory"`
	Models     json.RawMessage `json:"models"`
	Actions    []wireAction    `json:"actions"`
	Completion *wireCompletion `json:"completion"`
}

type wireCompletion struct {
	Model      string          `json:"model"`
	Parameters json.RawMessage `json:"parameters"`
}

type wireMemory struct {
	FileStore  *wireFileStore  `json:"file_store"`
	PostgresML *wirePostgresML `json:"postgresml"`
}

type wireFileStore struct {
	Chunking bool `json:"chunking"`
	TopK     int  `json:"top_k"`
}

type wirePostgresML struct {
	ConnString string `json:"conn_string"`
}

// wireAction is §3's Action type, as it arrives over the wire.
type wireAction struct {
	Trigger     string              `json:"trigger"`
	DisplayName string              `json:"display_name"`
	ModelRef    string              `json:"model_ref"`
	Parameters  json.RawMessage     `json:"parameters"`
	PostProcess wirePostProcessRule `json:"post_process"`
}

type wirePostProcessRule struct {
	Extractor   string `json:"extractor"`
	StripPrefix string `json:"strip_prefix"`
	StripSuffix string `json:"strip_suffix"`
}

type wireChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// wireParameters is the "parameter-blob" named by §3's Action type; unknown
// fields flow through to Vars so an action's template can reference them.
type wireParameters struct {
	MaxTokens        int               `json:"max_tokens"`
	Temperature      *float64          `json:"temperature"`
	TopP             *float64          `json:"top_p"`
	FrequencyPenalty *float64          `json:"frequency_penalty"`
	PresencePenalty  *float64          `json:"presence_penalty"`
	Stop             []string          `json:"stop"`
	Messages         []wireChatMessage `json:"messages"`
}

func toParameters(raw json.RawMessage) action.Parameters {
	if len(raw) == 0 {
		return action.Parameters{}
	}
	var wp wireParameters
	_ = json.Unmarshal(raw, &wp)

	var extra map[string]any
	_ = json.Unmarshal(raw, &extra)

	var messages []transformer.ChatMessage
	for _, m := range wp.Messages {
		messages = append(messages, transformer.ChatMessage{Role: m.Role, Content: m.Content})
	}

	return action.Parameters{
		MaxTokens: wp.MaxTokens, Temperature: wp.Temperature, TopP: wp.TopP,
		FrequencyPenalty: wp.FrequencyPenalty, PresencePenalty: wp.PresencePenalty,
		Stop: wp.Stop, Messages: messages, Vars: extra,
	}
}

// ParseActions decodes initialize.params.initializationOptions into the
// configured Action list, synthesizing an implicit default completion
// action from the top-level "completion" field when none of the
// configured actions has an empty trigger (§4.8).
func ParseActions(raw json.RawMessage) ([]action.Action, error) {
	var opts initOptions
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &opts); err != nil {
			return nil, err
		}
	}
	return toActions(opts.Actions, opts.Completion), nil
}

func toActions(wireActions []wireAction, completion *wireCompletion) []action.Action {
	out := make([]action.Action, 0, len(wireActions)+1)
	haveDefault := false
	for _, wa := range wireActions {
		if wa.Trigger == "" {
			haveDefault = true
		}
		out = append(out, action.Action{
			Name: wa.DisplayName, Trigger: wa.Trigger, Model: wa.ModelRef,
			Parameters: toParameters(wa.Parameters),
			PostProcess: postprocess.Rule{
				Extractor: wa.PostProcess.Extractor, StripPrefix: wa.PostProcess.StripPrefix, StripSuffix: wa.PostProcess.StripSuffix,
			},
		})
	}
	if !haveDefault && completion != nil {
		out = append(out, action.Action{
			Name: "completion", Trigger: "", Model: completion.Model,
			Parameters: toParameters(completion.Parameters),
		})
	}
	return out
}
