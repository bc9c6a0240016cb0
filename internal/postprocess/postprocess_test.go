package postprocess

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyNoRule(t *testing.T) {
	p, err := Compile(Rule{})
	require.NoError(t, err)
	out, err := p.Apply("hello world")
	require.NoError(t, err)
	require.Equal(t, "hello world", out)
}

func TestApplyStripPrefixSuffix(t *testing.T) {
	p, err := Compile(Rule{StripPrefix: "```go\n", StripSuffix: "```"})
	require.NoError(t, err)
	out, err := p.Apply("```go\nfunc f() {}\n```")
	require.NoError(t, err)
	require.Equal(t, "func f() {}\n", out)
}

func TestApplyExtractorNoMatchYieldsEmpty(t *testing.T) {
	p, err := Compile(Rule{Extractor: `xyz(never)matches`})
	require.NoError(t, err)
	out, err := p.Apply("no match here")
	require.NoError(t, err)
	require.Equal(t, "", out)
}

func TestApplyExtractorThenStrip(t *testing.T) {
	p, err := Compile(Rule{Extractor: "(?s)```go\n(.*)```", StripSuffix: "\n"})
	require.NoError(t, err)
	out, err := p.Apply("```go\nfunc f() {}\n```")
	require.NoError(t, err)
	require.Equal(t, "func f() {}", out)
}

func TestCompileInvalidExtractorIsConfigError(t *testing.T) {
	_, err := Compile(Rule{Extractor: `(unclosed`})
	require.Error(t, err)
}
