package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/llm"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],"usage":{"total_tokens":2000}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-test", CostPer1K: 0.5}, nil)
	gen, err := c.Generate(context.Background(), "hi", llm.Constraints{})
	require.NoError(t, err)
	assert.Equal(t, "openai", gen.Oracle)
	assert.Equal(t, "hello", gen.Text)
	assert.Equal(t, 2000, gen.TokensUsed)
	assert.InDelta(t, 1.0, gen.CostEstimate, 1e-9)
}

func TestGenerateClassifiesErrors(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Name: "primary", APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := c.Generate(context.Background(), "hi", llm.Constraints{})
	assert.ErrorIs(t, err, common.ErrOracleRateLimited)

	status = http.StatusInternalServerError
	_, err = c.Generate(context.Background(), "hi", llm.Constraints{})
	assert.ErrorIs(t, err, common.ErrOracleUnavailable)
}
