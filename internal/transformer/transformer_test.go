package transformer

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
	"github.com/stretchr/testify/require"
)

func TestRetryableSendSucceedsFirstTry(t *testing.T) {
	resp, body, err := retryableSend(context.Background(), "m", nil, func(ctx context.Context) (*http.Response, error) {
		return jsonResp(200, "ok"), nil
	})
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "ok", string(body))
}

func TestRetryableSendNonRetryable4xxStopsImmediately(t *testing.T) {
	calls := 0
	_, _, err := retryableSend(context.Background(), "m", nil, func(ctx context.Context) (*http.Response, error) {
		calls++
		return jsonResp(404, "nope"), nil
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestRetryableSendRetries429ThenSucceeds(t *testing.T) {
	calls := 0
	_, body, err := retryableSend(context.Background(), "m", nil, func(ctx context.Context) (*http.Response, error) {
		calls++
		if calls == 1 {
			return jsonResp(429, "slow down"), nil
		}
		return jsonResp(200, "done"), nil
	})
	require.NoError(t, err)
	require.Equal(t, "done", string(body))
	require.Equal(t, 2, calls)
}

func TestRetryableSendCancelBetweenAttempts(t *testing.T) {
	cancel := make(chan struct{})
	calls := 0
	_, _, err := retryableSend(context.Background(), "m", cancel, func(ctx context.Context) (*http.Response, error) {
		calls++
		close(cancel)
		return nil, errors.New("network blip")
	})
	require.ErrorIs(t, err, apperr.Cancelled)
	require.Equal(t, 1, calls)
}

// TestRetryableSendCancelDuringInFlightCallInterruptsIt covers §4.9's
// requirement that $/cancelRequest reach the HTTP call itself while it is
// in flight, not just the retry loop's between-attempt checks: cancel
// fires from outside the send closure, after send has already started
// blocking on attemptCtx.Done(), mirroring a real in-flight
// http.Client.Do(req) being aborted by its request context.
func TestRetryableSendCancelDuringInFlightCallInterruptsIt(t *testing.T) {
	cancel := make(chan struct{})
	started := make(chan struct{})
	go func() {
		<-started
		close(cancel)
	}()
	_, _, err := retryableSend(context.Background(), "m", cancel, func(ctx context.Context) (*http.Response, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.ErrorIs(t, err, apperr.Cancelled)
}

func TestRetryableSendExhaustsAttemptsOn5xx(t *testing.T) {
	calls := 0
	_, _, err := retryableSend(context.Background(), "m", nil, func(ctx context.Context) (*http.Response, error) {
		calls++
		return jsonResp(503, "unavailable"), nil
	})
	require.Error(t, err)
	require.Equal(t, maxAttempts, calls)
}

func TestMergeFloatPrefersOverride(t *testing.T) {
	override := 0.2
	fallback := 0.9
	require.Equal(t, &override, mergeFloat(&override, &fallback))
	require.Equal(t, &fallback, mergeFloat(nil, &fallback))
	require.Nil(t, mergeFloat(nil, nil))
}

func TestMaxTokensOrDefault(t *testing.T) {
	require.Equal(t, 10, maxTokensOrDefault(10, 99))
	require.Equal(t, 99, maxTokensOrDefault(0, 99))
	require.Equal(t, 99, maxTokensOrDefault(-1, 99))
}
