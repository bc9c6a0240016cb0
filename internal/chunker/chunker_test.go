package chunker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexGoFunctionAndTypeSpec(t *testing.T) {
	c := New()
	src := []byte("package demo\n\ntype Point struct {\n\tX, Y int\n}\n\nfunc Sum(a, b int) int {\n\treturn a + b\n}\n")
	found := c.Index(context.Background(), "file:///demo.go", "go", src)
	require.NotEmpty(t, found)

	var sawFunc, sawType bool
	for _, ch := range found {
		if ch.Kind == KindFunction && ch.Name == "Sum" {
			sawFunc = true
		}
		if ch.Kind == KindClass && ch.Name == "Point" {
			sawType = true
		}
	}
	require.True(t, sawFunc, "expected Sum function chunk")
	require.True(t, sawType, "expected Point type chunk")
}

func TestIndexUnsupportedLanguageIsNoop(t *testing.T) {
	c := New()
	found := c.Index(context.Background(), "file:///x.cobol", "cobol", []byte("IDENTIFICATION DIVISION."))
	require.Empty(t, found)
}

func TestIndexReplacesChunksForSameURI(t *testing.T) {
	c := New()
	c.Index(context.Background(), "file:///a.go", "go", []byte("package a\n\nfunc One() {}\n"))
	c.Index(context.Background(), "file:///a.go", "go", []byte("package a\n\nfunc Two() {}\n"))

	results := c.Search("One", 10)
	require.Empty(t, results)

	results = c.Search("Two", 10)
	require.NotEmpty(t, results)
}

func TestSearchRanksByOverlap(t *testing.T) {
	c := New()
	c.Index(context.Background(), "file:///a.go", "go", []byte("package a\n\nfunc Alpha() {\n\treturn\n}\n"))
	c.Index(context.Background(), "file:///b.go", "go", []byte("package b\n\nfunc Beta() {\n\treturn\n}\n"))

	results := c.Search("Alpha", 5)
	require.NotEmpty(t, results)
	require.Equal(t, "Alpha", results[0].Name)
}

func TestSearchZeroKReturnsNil(t *testing.T) {
	c := New()
	c.Index(context.Background(), "file:///a.go", "go", []byte("package a\n\nfunc Alpha() {}\n"))
	require.Nil(t, c.Search("Alpha", 0))
}
