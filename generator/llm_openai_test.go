package generator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatCompletion(content, finish string) string {
	return `{"id":"chatcmpl-1","object":"chat.completion","created":1760000000,"model":"gpt-4o-search-preview",` +
		`"choices":[{"index":0,"finish_reason":"` + finish + `","message":{"role":"assistant","content":` +
		jsonString(content) + `,"refusal":null}}]}`
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func newOpenAITestServer(t *testing.T, status int, body string, hits *int32, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if seen != nil {
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOpenAILLMFromConfig(t *testing.T) {
	_, err := NewOpenAILLMFromConfig(nil)
	assert.Error(t, err)
	_, err = NewOpenAILLMFromConfig(&LLMSettings{Model: "m"})
	assert.Error(t, err)
	_, err = NewOpenAILLMFromConfig(&LLMSettings{APIKey: "k"})
	assert.Error(t, err)
}

func TestOpenAILLMComplete(t *testing.T) {
	var hits int32
	var seen map[string]any
	srv := newOpenAITestServer(t, http.StatusOK, chatCompletion("final answer", "stop"), &hits, &seen)

	llm, err := NewOpenAILLMFromConfig(&LLMSettings{
		Model:     "gpt-4o-search-preview",
		APIKey:    "test-key",
		BaseURL:   srv.URL + "/",
		MaxTokens: 1024,
		WebSearch: true,
	})
	require.NoError(t, err)

	got, err := llm.Complete(context.Background(), Prompt{System: "sys", User: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "final answer", got)
	assert.EqualValues(t, 1, hits)
	assert.Contains(t, seen, "web_search_options")
}

func TestOpenAILLMCompleteFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, ErrTransport},
		{"server error not retried", http.StatusInternalServerError, `{"error":{"message":"boom"}}`, ErrTransport},
		{"content filter", http.StatusOK, chatCompletion("partial", "content_filter"), ErrGeneration},
		{"empty content", http.StatusOK, chatCompletion("", "stop"), ErrGeneration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			srv := newOpenAITestServer(t, tt.status, tt.body, &hits, nil)
			llm, err := NewOpenAILLMFromConfig(&LLMSettings{Model: "m", APIKey: "k", BaseURL: srv.URL + "/"})
			require.NoError(t, err)

			_, err = llm.Complete(context.Background(), Prompt{User: "hello"})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.EqualValues(t, 1, hits)
		})
	}
}
