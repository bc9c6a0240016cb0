// Package lsp defines the JSON-RPC wire types for the LSP-compatible
// subset of methods this server accepts, plus the vendor generation
// extension described in the initialization contract.
package lsp

import "encoding/json"

type DocumentURI string

// RequestMessage represents a JSON-RPC request or notification. A nil ID
// distinguishes a notification from a request.
type RequestMessage struct {
	RPCVersion string          `json:"jsonrpc"`
	ID         *int            `json:"id,omitempty"`
	Method     string          `json:"method"`
	Params     json.RawMessage `json:"params,omitempty"`
}

type ResponseMessage struct {
	RPCVersion string          `json:"jsonrpc"`
	ID         *int            `json:"id"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *ResponseError  `json:"error,omitempty"`
}

type ResponseError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Standard JSON-RPC error codes, plus the stable numeric codes §7 assigns
// to each error taxonomy entry.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	ConfigErrorCode   = -32000
	DocumentErrorCode = -32001
	BackendErrorCode  = -32002
)

type InsertTextFormat int

const (
	InsertTextFormatPlainText InsertTextFormat = 1
	InsertTextFormatSnippet   InsertTextFormat = 2
)

type CompletionItem struct {
	Label            string              `json:"label"`
	Kind             *CompletionItemKind `json:"kind,omitempty"`
	Detail           *string             `json:"detail,omitempty"`
	Documentation    *string             `json:"documentation,omitempty"`
	InsertText       *string             `json:"insertText,omitempty"`
	InsertTextFormat *InsertTextFormat   `json:"insertTextFormat,omitempty"`
}

type InitializeParams struct {
	ProcessID             *int               `json:"processId,omitempty"`
	RootURI               *DocumentURI       `json:"rootUri,omitempty"`
	ClientInfo            *ClientInfo        `json:"clientInfo,omitempty"`
	InitializationOptions json.RawMessage    `json:"initializationOptions,omitempty"`
	Capabilities          ClientCapabilities `json:"capabilities"`
}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type ClientCapabilities struct {
	Workspace    *WorkspaceClientCapabilities    `json:"workspace,omitempty"`
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
}

type WorkspaceClientCapabilities struct {
	Configuration *bool `json:"configuration,omitempty"`
	ApplyEdit     *bool `json:"applyEdit,omitempty"`
}

type TextDocumentClientCapabilities struct {
	Synchronization  *TextDocumentSyncClientCapabilities `json:"synchronization,omitempty"`
	Completion       *CompletionClientCapabilities       `json:"completion,omitempty"`
	InlineCompletion *InlineCompletionClientCapabilities `json:"inlineCompletion,omitempty"`
	CodeAction       *CodeActionClientCapabilities       `json:"codeAction,omitempty"`
}

type TextDocumentSyncClientCapabilities struct {
	DidSave *bool `json:"didSave,omitempty"`
}
type CompletionClientCapabilities struct {
	CompletionItem *struct {
		SnippetSupport *bool `json:"snippetSupport,omitempty"`
	} `json:"completionItem,omitempty"`
}
type InlineCompletionClientCapabilities struct {
	DynamicRegistration *bool `json:"dynamicRegistration,omitempty"`
}
type CodeActionClientCapabilities struct {
	DynamicRegistration *bool `json:"dynamicRegistration,omitempty"`
	ResolveSupport       *struct {
		Properties []string `json:"properties"`
	} `json:"resolveSupport,omitempty"`
}

type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type ServerCapabilities struct {
	TextDocumentSync         *TextDocumentSyncOptions `json:"textDocumentSync,omitempty"`
	CompletionProvider       *CompletionOptions       `json:"completionProvider,omitempty"`
	InlineCompletionProvider *InlineCompletionOptions `json:"inlineCompletionProvider,omitempty"`
	CodeActionProvider       *CodeActionOptions       `json:"codeActionProvider,omitempty"`
}

type TextDocumentSyncKind int

const (
	SyncNone        TextDocumentSyncKind = 0
	SyncFull        TextDocumentSyncKind = 1
	SyncIncremental TextDocumentSyncKind = 2
)

type TextDocumentSyncOptions struct {
	OpenClose *bool                 `json:"openClose,omitempty"`
	Change    *TextDocumentSyncKind `json:"change,omitempty"`
}

type CompletionOptions struct {
	TriggerCharacters []string `json:"triggerCharacters,omitempty"`
	ResolveProvider   *bool    `json:"resolveProvider,omitempty"`
}

type InlineCompletionOptions struct{}

type CodeActionOptions struct {
	ResolveProvider *bool `json:"resolveProvider,omitempty"`
}

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}

type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

type InlineCompletionParams struct {
	TextDocument TextDocumentIdentifier  `json:"textDocument"`
	Position     Position                `json:"position"`
	Context      InlineCompletionContext `json:"context"`
}

type InlineCompletionContext struct {
	TriggerKind            InlineCompletionTriggerKind `json:"triggerKind"`
	SelectedCompletionInfo *SelectedCompletionInfo     `json:"selectedCompletionInfo,omitempty"`
}

type InlineCompletionTriggerKind int

const (
	TriggerInvoke    InlineCompletionTriggerKind = 0
	TriggerAutomatic InlineCompletionTriggerKind = 1
)

type SelectedCompletionInfo struct {
	Range Range  `json:"range"`
	Text  string `json:"text"`
}

type InlineCompletionList struct {
	Items []InlineCompletionItem `json:"items"`
}

type InlineCompletionItem struct {
	InsertText string   `json:"insertText"`
	FilterText *string  `json:"filterText,omitempty"`
	Range      *Range   `json:"range,omitempty"`
	Command    *Command `json:"command,omitempty"`
}

type Command struct {
	Title     string        `json:"title"`
	Command   string        `json:"command"`
	Arguments []interface{} `json:"arguments,omitempty"`
}

type LogMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

type VersionedTextDocumentIdentifier struct {
	URI     DocumentURI `json:"uri"`
	Version int         `json:"version"`
}

// TextDocumentContentChangeEvent represents either a full-document
// replacement (Range nil) or an incremental edit (Range set), per §4.1.
type TextDocumentContentChangeEvent struct {
	Range       *Range  `json:"range,omitempty"`
	RangeLength *uint32 `json:"rangeLength,omitempty"`
	Text        string  `json:"text"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Position is 0-based line and UTF-16 code-unit character offset, per §3.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type CompletionParams struct {
	TextDocumentPositionParams
	Context *CompletionContext `json:"context,omitempty"`
}

type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

type CompletionContext struct {
	TriggerKind      CompletionTriggerKind `json:"triggerKind"`
	TriggerCharacter *string               `json:"triggerCharacter,omitempty"`
}

type CompletionTriggerKind int

const (
	CompletionTriggerKindInvoked                         CompletionTriggerKind = 1
	CompletionTriggerKindTriggerCharacter                CompletionTriggerKind = 2
	CompletionTriggerKindTriggerForIncompleteCompletions CompletionTriggerKind = 3
)

type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

type CompletionItemKind int

const (
	CompletionItemKindText     CompletionItemKind = 1
	CompletionItemKindSnippet  CompletionItemKind = 15
	CompletionItemKindConstant CompletionItemKind = 21
)

type MessageType int

const (
	TypeError   MessageType = 1
	TypeWarning MessageType = 2
	TypeInfo    MessageType = 3
	TypeLog     MessageType = 4
)

// --- Code actions (§6) ---

type CodeActionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Range        Range                  `json:"range"`
	Context      CodeActionContext      `json:"context"`
}

type CodeActionContext struct {
	Diagnostics []json.RawMessage `json:"diagnostics"`
}

// CodeAction corresponds to one enumerated, resolvable action returned
// from textDocument/codeAction. Data carries the opaque resolve token
// minted by internal/action.
type CodeAction struct {
	Title string          `json:"title"`
	Kind  string          `json:"kind,omitempty"`
	Edit  *WorkspaceEdit  `json:"edit,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type WorkspaceEdit struct {
	Changes map[DocumentURI][]TextEdit `json:"changes,omitempty"`
}

type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

type ApplyWorkspaceEditParams struct {
	Label string        `json:"label,omitempty"`
	Edit  WorkspaceEdit `json:"edit"`
}

// --- Vendor extension: textDocument/generation (§6) ---

type GenerationParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
	Model        string                 `json:"model,omitempty"`
	Parameters   map[string]any         `json:"parameters,omitempty"`
}

type GenerationResult struct {
	GeneratedText string `json:"generatedText"`
}

// --- Control (§6) ---

// CancelParams is $/cancelRequest's payload; ID mirrors the JSON-RPC
// request id being cancelled.
type CancelParams struct {
	ID int `json:"id"`
}
