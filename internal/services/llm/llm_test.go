package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"StockCast/internal/domain/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestChatClientGenerate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	c, err := NewChatClient(ChatConfig{BaseURL: srv.URL + "/", APIKey: "key", Model: "m"})
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), "be terse", "analyze AAPL")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "m", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "analyze AAPL", got.Messages[1].Content)
}

func TestChatClientRetriesServerErrorsOnly(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c, err := NewChatClient(ChatConfig{BaseURL: srv.URL, APIKey: "k", Attempts: 3})
	require.NoError(t, err)
	out, err := c.Generate(context.Background(), "", "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())

	calls.Store(0)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer bad.Close()
	c, _ = NewChatClient(ChatConfig{BaseURL: bad.URL, APIKey: "k", Attempts: 3})
	_, err = c.Generate(context.Background(), "", "p")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()
	c, _ := NewChatClient(ChatConfig{BaseURL: srv.URL, APIKey: "k"})
	_, err := c.Generate(context.Background(), "", "p")
	assert.Error(t, err)
}

func TestChatClientRequiresKey(t *testing.T) {
	_, err := NewChatClient(ChatConfig{BaseURL: "http://x"})
	assert.Error(t, err)
}

func TestExtractText(t *testing.T) {
	res := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: "a"}, {Text: "b"}}},
	}}}
	out, err := extractText(res)
	require.NoError(t, err)
	assert.Equal(t, "ab", out)

	_, err = extractText(&genai.GenerateContentResponse{})
	assert.Error(t, err)
}

func TestUnconfiguredIsUnavailable(t *testing.T) {
	_, err := Unconfigured{Provider: "groq"}.Generate(context.Background(), "s", "p")
	require.Error(t, err)
	assert.Equal(t, errs.KindUnavailable, errs.KindOf(err))
}
