package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-bill-must-split/internal/common"
)

func geminiReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]any{"text": text}},
				},
			},
		},
	})
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewGeminiClient(Config{
		Endpoint:  server.URL + "/v1beta/models",
		Model:     "test-model",
		Timeout:   2 * time.Second,
		RateLimit: 600,
	}, nil)
	require.NoError(t, err)
	return client
}

func TestGeminiClient_GenerateContent(t *testing.T) {
	var captured generateContentRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		_, _ = io.WriteString(w, geminiReply(`{"category":"tax","confidence":0.9}`))
	})

	text, err := client.GenerateContent(context.Background(), GenerateRequest{
		Prompt:          "classify",
		APIKey:          "secret",
		MaxOutputTokens: 256,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"category":"tax","confidence":0.9}`, text)

	require.Len(t, captured.Contents, 1)
	assert.Equal(t, "classify", captured.Contents[0].Parts[0].Text)
	assert.Zero(t, captured.GenerationConfig.Temperature)
	assert.Equal(t, 1, captured.GenerationConfig.TopK)
	assert.Equal(t, 256, captured.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, "application/json", captured.GenerationConfig.ResponseMIMEType)
	assert.NotEmpty(t, captured.SafetySettings)
}

func TestGeminiClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantErr  error
		wantHTTP int
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: "bad key", wantErr: common.ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, body: "nope", wantErr: common.ErrUnauthorized},
		{name: "rate limited", status: http.StatusTooManyRequests, body: "slow down", wantErr: common.ErrRateLimit},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantHTTP: 500},
		{name: "bad request", status: http.StatusBadRequest, body: "bad", wantHTTP: 400},
		{name: "no candidates", status: http.StatusOK, body: `{"candidates":[]}`, wantErr: common.ErrInvalidResponse},
		{name: "not json", status: http.StatusOK, body: `<html>`, wantErr: common.ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.GenerateContent(context.Background(), GenerateRequest{Prompt: "p", APIKey: "k"})
			require.Error(t, err)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantHTTP != 0 {
				var httpErr *common.HTTPError
				require.ErrorAs(t, err, &httpErr)
				assert.Equal(t, tt.wantHTTP, httpErr.StatusCode)
				assert.Equal(t, tt.body, httpErr.Body)
			}
		})
	}
}

func TestGeminiClient_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
		_, _ = io.WriteString(w, geminiReply("late"))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.GenerateContent(ctx, GenerateRequest{Prompt: "p", APIKey: "timeout-secret-key"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTimeout)
	assert.True(t, common.IsRetryable(err))
	assert.NotContains(t, err.Error(), "timeout-secret-key")
}

func TestGeminiClient_TransportErrorOmitsKey(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL + "/v1beta/models"
	server.Close()

	client, err := NewGeminiClient(Config{Endpoint: endpoint, Model: "test-model", Timeout: 2 * time.Second, RateLimit: 600}, nil)
	require.NoError(t, err)

	_, err = client.GenerateContent(context.Background(), GenerateRequest{Prompt: "p", APIKey: "SUPERSECRETKEY"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SUPERSECRETKEY")
	assert.NotContains(t, err.Error(), "key=")
	assert.Contains(t, err.Error(), "request failed")
}

func TestGeminiClient_MissingKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	})

	_, err := client.GenerateContent(context.Background(), GenerateRequest{Prompt: "p"})
	assert.ErrorIs(t, err, common.ErrMissingKey)
}

func TestNewGeminiClient_InvalidURL(t *testing.T) {
	for _, endpoint := range []string{"not a url", "ftp://example.com", "http://", "://bad"} {
		_, err := NewGeminiClient(Config{Endpoint: endpoint}, nil)
		assert.ErrorIs(t, err, common.ErrInvalidURL, endpoint)
	}
}
