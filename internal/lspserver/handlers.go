package lspserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/lsp-ai-go/lsp-ai-go/internal/action"
	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
	"github.com/lsp-ai-go/lsp-ai-go/internal/lsp"
	"github.com/lsp-ai-go/lsp-ai-go/internal/position"
)

func (s *Server) handleInitialize(ctx context.Context, req lsp.RequestMessage) {
	var params lsp.InitializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendResponse(req.ID, nil, &lsp.ResponseError{Code: lsp.InvalidParams, Message: err.Error()})
		return
	}

	reg, engine, limiter, mem, chnkr, err := s.buildDeps(params.InitializationOptions, s.documents)
	if err != nil {
		// A config error at initialize is fatal: it is reported as an error
		// response plus a logMessage, and handleMessage then stops the read
		// loop with exit code 2.
		s.logToClient(lsp.TypeError, "initialization failed: "+err.Error())
		s.sendResponse(req.ID, nil, apperr.ToResponseError(err))
		return
	}

	s.regMu.Lock()
	s.reg, s.engine, s.limiter, s.mem, s.chnkr = reg, engine, limiter, mem, chnkr
	s.regMu.Unlock()

	s.stateMu.Lock()
	s.initialized = true
	s.stateMu.Unlock()

	trueVal := true
	sync := lsp.SyncIncremental
	result := lsp.InitializeResult{
		ServerInfo: &lsp.ServerInfo{Name: "lsp-ai-go"},
		Capabilities: lsp.ServerCapabilities{
			TextDocumentSync:         &lsp.TextDocumentSyncOptions{OpenClose: &trueVal, Change: &sync},
			CompletionProvider:       &lsp.CompletionOptions{},
			InlineCompletionProvider: &lsp.InlineCompletionOptions{},
			CodeActionProvider:       &lsp.CodeActionOptions{ResolveProvider: &trueVal},
		},
	}
	s.sendResponse(req.ID, result, nil)
}

func (s *Server) handleDidOpen(req lsp.RequestMessage) {
	var params lsp.DidOpenTextDocumentParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.logger.Error("decoding didOpen", "error", err)
		return
	}
	s.documents.Open(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version, params.TextDocument.LanguageID)
}

func (s *Server) handleDidChange(req lsp.RequestMessage) {
	var params lsp.DidChangeTextDocumentParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.logger.Error("decoding didChange", "error", err)
		return
	}
	if err := s.documents.Change(params.TextDocument.URI, params.TextDocument.Version, params.ContentChanges); err != nil {
		s.logger.Warn("applying change", "uri", params.TextDocument.URI, "error", err)
	}
}

func (s *Server) handleDidClose(ctx context.Context, req lsp.RequestMessage) {
	var params lsp.DidCloseTextDocumentParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.logger.Error("decoding didClose", "error", err)
		return
	}
	snap, err := s.documents.Close(params.TextDocument.URI)
	if err != nil {
		return
	}

	s.regMu.Lock()
	c := s.chnkr
	s.regMu.Unlock()
	if c != nil {
		c.Index(ctx, string(snap.URI), snap.Language, []byte(snap.Text()))
	}
}

func (s *Server) handleCompletion(ctx context.Context, req lsp.RequestMessage, cancel <-chan struct{}) {
	if !s.debouncer.Allow(cancel) {
		s.sendResponse(req.ID, lsp.CompletionList{IsIncomplete: false, Items: nil}, nil)
		return
	}

	var params lsp.CompletionParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendResponse(req.ID, nil, &lsp.ResponseError{Code: lsp.InvalidParams, Message: err.Error()})
		return
	}

	engine := s.engineOrNil()
	if engine == nil {
		s.sendResponse(req.ID, nil, apperr.ToResponseError(apperr.Config("server not initialized")))
		return
	}

	text, err := engine.Complete(ctx, params.TextDocument.URI, params.Position, cancel)
	if err != nil {
		s.logToClient(lsp.TypeWarning, "completion failed: "+err.Error())
		s.sendResponse(req.ID, nil, apperr.ToResponseError(err))
		return
	}

	item := lsp.CompletionItem{Label: text, InsertText: &text}
	s.sendResponse(req.ID, lsp.CompletionList{IsIncomplete: false, Items: []lsp.CompletionItem{item}}, nil)
}

func (s *Server) handleGeneration(ctx context.Context, req lsp.RequestMessage, cancel <-chan struct{}) {
	var params lsp.GenerationParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendResponse(req.ID, nil, &lsp.ResponseError{Code: lsp.InvalidParams, Message: err.Error()})
		return
	}

	engine := s.engineOrNil()
	if engine == nil {
		s.sendResponse(req.ID, nil, apperr.ToResponseError(apperr.Config("server not initialized")))
		return
	}

	override := paramsFromMap(params.Parameters)
	text, err := engine.Generate(ctx, params.TextDocument.URI, params.Position, "", params.Model, override, cancel)
	if err != nil {
		s.logToClient(lsp.TypeWarning, "generation failed: "+err.Error())
		s.sendResponse(req.ID, nil, apperr.ToResponseError(err))
		return
	}
	s.sendResponse(req.ID, lsp.GenerationResult{GeneratedText: text}, nil)
}

func paramsFromMap(raw map[string]any) action.Parameters {
	if raw == nil {
		return action.Parameters{}
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return action.Parameters{}
	}
	return toParameters(encoded)
}

func (s *Server) handleCodeAction(ctx context.Context, req lsp.RequestMessage, cancel <-chan struct{}) {
	var params lsp.CodeActionParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendResponse(req.ID, nil, &lsp.ResponseError{Code: lsp.InvalidParams, Message: err.Error()})
		return
	}

	engine := s.engineOrNil()
	if engine == nil {
		s.sendResponse(req.ID, nil, apperr.ToResponseError(apperr.Config("server not initialized")))
		return
	}

	snap, err := s.documents.Snapshot(params.TextDocument.URI)
	if err != nil {
		s.sendResponse(req.ID, []lsp.CodeAction{}, nil)
		return
	}

	prefix := linePrefix(snap.Text(), params.Range.End)
	candidates := engine.CodeActions(params.TextDocument.URI, params.Range.End, prefix)

	out := make([]lsp.CodeAction, 0, len(candidates))
	for _, c := range candidates {
		data, _ := json.Marshal(c.Token)
		out = append(out, lsp.CodeAction{Title: c.Title, Kind: "quickfix", Data: data})
	}
	s.sendResponse(req.ID, out, nil)
}

func (s *Server) handleCodeActionResolve(ctx context.Context, req lsp.RequestMessage, cancel <-chan struct{}) {
	var ca lsp.CodeAction
	if err := json.Unmarshal(req.Params, &ca); err != nil {
		s.sendResponse(req.ID, nil, &lsp.ResponseError{Code: lsp.InvalidParams, Message: err.Error()})
		return
	}
	var token uuid.UUID
	if err := json.Unmarshal(ca.Data, &token); err != nil {
		s.sendResponse(req.ID, nil, &lsp.ResponseError{Code: lsp.InvalidParams, Message: "malformed code action token"})
		return
	}

	engine := s.engineOrNil()
	if engine == nil {
		s.sendResponse(req.ID, nil, apperr.ToResponseError(apperr.Config("server not initialized")))
		return
	}

	text, uri, pos, err := engine.Resolve(ctx, token, cancel)
	if err != nil {
		s.logToClient(lsp.TypeWarning, "code action resolution failed: "+err.Error())
		s.sendResponse(req.ID, nil, apperr.ToResponseError(err))
		return
	}
	if text != "" {
		ca.Edit = &lsp.WorkspaceEdit{Changes: map[lsp.DocumentURI][]lsp.TextEdit{
			uri: {{Range: lsp.Range{Start: pos, End: pos}, NewText: text}},
		}}
	}
	s.sendResponse(req.ID, ca, nil)
}

func (s *Server) engineOrNil() *action.Engine {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	return s.engine
}

// linePrefix returns the text of pos's line up to pos.Character, used by
// textDocument/codeAction to match an action's configured trigger string
// against the text immediately before the cursor (§4.8).
func linePrefix(text string, pos lsp.Position) string {
	offset, err := position.ToOffset([]byte(text), pos)
	if err != nil {
		return ""
	}
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	return text[lineStart:offset]
}
