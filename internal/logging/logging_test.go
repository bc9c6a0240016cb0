package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewJSONFormatEmitsJSON(t *testing.T) {
	logger := New(FormatJSON, slog.LevelInfo)
	require.NotNil(t, logger)
}

func TestNewTextFormatIsDefault(t *testing.T) {
	logger := New(Format("bogus"), slog.LevelWarn)
	require.NotNil(t, logger)
}

func TestFromContextWithoutRequestIDReturnsBaseUnmodified(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))
	got := FromContext(context.Background(), base)
	require.Same(t, base, got)
}

func TestFromContextWithRequestIDAttachesField(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := WithRequestID(context.Background(), "req-42")
	logged := FromContext(ctx, base)
	logged.Info("hello")
	require.Contains(t, buf.String(), "req-42")
}

func TestFromContextEmptyRequestIDReturnsBaseUnmodified(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := WithRequestID(context.Background(), "")
	got := FromContext(ctx, base)
	require.Same(t, base, got)
}
