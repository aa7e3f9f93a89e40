package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopassist/shopassist-go/internal/config"
	"github.com/shopassist/shopassist-go/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const okBody = `{"candidates":[{"content":{"parts":[{"text":"  Here are 3 laptops under $500.  "}]},"finishReason":"STOP"}]}`

func newTestClient(t *testing.T, baseURL, apiKey string, timeout time.Duration) *GeminiClient {
	return NewGeminiClient(config.AIConfig{
		Provider: "gemini",
		Model:    "gemini-1.5-flash",
		APIKey:   apiKey,
		BaseURL:  baseURL,
		Timeout:  timeout,
	}, zaptest.NewLogger(t))
}

func TestGeminiClient_Generate(t *testing.T) {
	var got GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(okBody))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "secret", 5*time.Second)
	reply, err := c.Generate(context.Background(), "cheap laptop", nil)
	require.NoError(t, err)
	assert.Equal(t, "Here are 3 laptops under $500.", reply)

	require.Len(t, got.Contents, 1)
	assert.Equal(t, "user", got.Contents[0].Role)
	require.Len(t, got.Contents[0].Parts, 1)
	assert.Contains(t, got.Contents[0].Parts[0].Text, "Customer Question: cheap laptop")
	assert.True(t, strings.HasPrefix(got.Contents[0].Parts[0].Text, "You are an advanced AI shopping assistant"))
	assert.Equal(t, GenerationConfig{Temperature: 0.7, MaxOutputTokens: 1024, TopP: 0.95, TopK: 40}, got.GenerationConfig)
	assert.Len(t, got.SafetySettings, 4)
}

func TestGeminiClient_GenerateWithImage(t *testing.T) {
	var got GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(okBody))
	}))
	defer srv.Close()

	img := &model.Image{MimeType: "image/png", Data: []byte("pngbytes")}
	c := newTestClient(t, srv.URL, "secret", 5*time.Second)
	_, err := c.Generate(context.Background(), "find similar", img)
	require.NoError(t, err)

	require.Len(t, got.Contents[0].Parts, 2)
	inline := got.Contents[0].Parts[1].InlineData
	require.NotNil(t, inline)
	assert.Equal(t, "image/png", inline.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("pngbytes")), inline.Data)
}

func TestGeminiClient_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{name: "forbidden", status: http.StatusForbidden, body: `{"error":"bad key"}`, wantStatus: http.StatusForbidden},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, wantStatus: http.StatusTooManyRequests},
		{name: "malformed json", status: http.StatusOK, body: `not json`},
		{name: "no candidates", status: http.StatusOK, body: `{"candidates":[]}`},
		{name: "empty text", status: http.StatusOK, body: `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL, "secret", 5*time.Second)
			_, err := c.Generate(context.Background(), "hi", nil)
			require.Error(t, err)

			var oracleErr *OracleError
			require.True(t, errors.As(err, &oracleErr))
			assert.Equal(t, tt.wantStatus, oracleErr.StatusCode)
		})
	}
}

func TestGeminiClient_TimeoutDoesNotLeakKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "super-secret-key", 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Generate(ctx, "hi", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.NotContains(t, err.Error(), "super-secret-key")
}

func TestGeminiClient_Configured(t *testing.T) {
	assert.False(t, newTestClient(t, "http://localhost", "", time.Second).Configured())
	assert.False(t, newTestClient(t, "http://localhost", "   ", time.Second).Configured())
	assert.True(t, newTestClient(t, "http://localhost", "k", time.Second).Configured())
	assert.Equal(t, "gemini", newTestClient(t, "http://localhost", "k", time.Second).Name())
}
