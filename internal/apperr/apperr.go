// Package apperr defines the error taxonomy from §7: typed errors that
// carry the stable LSP numeric code their family maps to, so dispatch code
// can go straight from a Go error to a JSON-RPC response without
// re-deriving which code applies.
package apperr

import (
	"errors"
	"fmt"

	"github.com/lsp-ai-go/lsp-ai-go/internal/lsp"
)

// ConfigError covers malformed init options, unknown model references,
// invalid regexes, and template compile failures. Fatal at init,
// request-scoped at action resolution.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config error: " + e.Msg }

func Config(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// DocumentError covers unknown URIs, out-of-range positions, and version
// regressions. Mapped to an empty result for races, an LSP error otherwise.
type DocumentError struct {
	Msg string
	// Race marks an error that should be treated as an editor race
	// (resolved with an empty result) rather than surfaced to the user.
	Race bool
}

func (e *DocumentError) Error() string { return "document error: " + e.Msg }

func NotFound(uri lsp.DocumentURI) *DocumentError {
	return &DocumentError{Msg: fmt.Sprintf("unknown document: %s", uri), Race: true}
}

func OutOfRange(msg string) *DocumentError {
	return &DocumentError{Msg: msg, Race: true}
}

func InvalidState(msg string) *DocumentError {
	return &DocumentError{Msg: msg, Race: false}
}

// BackendError covers adapter-level failures: HTTP non-2xx, parse
// failures, inference failures. Retryable variants feed the retry loop.
type BackendError struct {
	Msg       string
	Retryable bool
}

func (e *BackendError) Error() string { return "backend error: " + e.Msg }

func Backend(retryable bool, format string, args ...any) *BackendError {
	return &BackendError{Msg: fmt.Sprintf(format, args...), Retryable: retryable}
}

// Cancelled is returned cooperatively; it is never logged as an error.
var Cancelled = errors.New("cancelled")

// RateLimitDenied is internal-only signalling; the rate limiter suspends
// rather than returning this to a caller, but components that wrap
// acquire() may surface it if they choose not to wait.
var RateLimitDenied = errors.New("rate limit denied")

// Code maps an error to the stable numeric code §7 assigns to its family,
// or lsp.InternalError if the error doesn't match a known taxonomy member.
func Code(err error) int {
	var cfg *ConfigError
	var doc *DocumentError
	var be *BackendError
	switch {
	case errors.As(err, &cfg):
		return lsp.ConfigErrorCode
	case errors.As(err, &doc):
		return lsp.DocumentErrorCode
	case errors.As(err, &be):
		return lsp.BackendErrorCode
	default:
		return lsp.InternalError
	}
}

// IsRace reports whether err is a DocumentError that should resolve to an
// empty result instead of an LSP error response (§4.8 DocumentMissing).
func IsRace(err error) bool {
	var doc *DocumentError
	if errors.As(err, &doc) {
		return doc.Race
	}
	return false
}

// ToResponseError converts err into the wire-level error object.
func ToResponseError(err error) *lsp.ResponseError {
	return &lsp.ResponseError{Code: Code(err), Message: err.Error()}
}
