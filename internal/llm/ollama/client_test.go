package ollama

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
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "tiny", req.Model)
		_, _ = w.Write([]byte(`{"response":"local text","done":true,"prompt_eval_count":3,"eval_count":4}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", Model: "tiny"}, nil)
	gen, err := c.Generate(context.Background(), "p", llm.Constraints{})
	require.NoError(t, err)
	assert.Equal(t, "local text", gen.Text)
	assert.Equal(t, 7, gen.TokensUsed)
	assert.Zero(t, gen.CostEstimate)
}

func TestGenerateUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}, nil).Generate(context.Background(), "p", llm.Constraints{})
	assert.ErrorIs(t, err, common.ErrOracleUnavailable)
}
