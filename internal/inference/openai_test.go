package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/persona-forge/internal/models"
	"go.uber.org/zap"
)

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "llama3:8b",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(b)
}

func newTestClient(url string) *OpenAIClient {
	return NewOpenAIClient(Config{BaseURL: url + "/v1", Model: "llama3:8b"}, zap.NewNop())
}

func TestInferSendsSystemAndUserMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer ollama", r.Header.Get("Authorization"))

		var req struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3:8b", req.Model)
		assert.Equal(t, 256, req.MaxTokens)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "user", req.Messages[1].Role)
			assert.Equal(t, "write a post", req.Messages[1].Content)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completion("  hello world  "))
	}))
	defer server.Close()

	text, err := newTestClient(server.URL).Infer(context.Background(), models.PromptSpec{
		System:    "be brief",
		Prompt:    "write a post",
		MaxTokens: 256,
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestInferTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Infer(context.Background(), models.PromptSpec{Prompt: "x"}, 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.True(t, Transient(err))
}

func TestInferUnavailableWhenRuntimeDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestClient(url).Infer(context.Background(), models.PromptSpec{Prompt: "x"}, time.Second)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestInferServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"model loading","type":"server_error"}}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Infer(context.Background(), models.PromptSpec{Prompt: "x"}, time.Second)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestInferBadRequestIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad prompt","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Infer(context.Background(), models.PromptSpec{Prompt: "x"}, time.Second)
	require.ErrorIs(t, err, ErrMalformedOutput)
	assert.False(t, Transient(err))
}

func TestInferEmptyContentIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completion("   "))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Infer(context.Background(), models.PromptSpec{Prompt: "x"}, time.Second)
	require.ErrorIs(t, err, ErrMalformedOutput)
}

func TestInferRateLimitPastDeadlineIsTimeout(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completion("ok"))
	}))
	defer server.Close()

	c := NewOpenAIClient(Config{BaseURL: server.URL + "/v1", Model: "llama3:8b", RequestsPerSecond: 0.01}, zap.NewNop())
	require.True(t, c.limiter.Allow())

	_, err := c.Infer(context.Background(), models.PromptSpec{Prompt: "x"}, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, hits.Load())
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, newLimiter(0))
	l := newLimiter(0.5)
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())
	assert.Equal(t, 3, newLimiter(2.5).Burst())
}
