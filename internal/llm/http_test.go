package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-engine/internal/common"
)

func TestSendJSON(t *testing.T) {
	var gotID, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Request-ID")
		gotAuth = r.Header.Get("Authorization")
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["prompt"]})
	}))
	defer srv.Close()

	ctx := common.WithRequestID(context.Background(), "req-42")
	raw, status, err := SendJSON(ctx, srv.Client(), srv.URL, map[string]string{"prompt": "hi"},
		map[string]string{"Authorization": "Bearer k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"echo":"hi"}`, string(raw))
	assert.Equal(t, "req-42", gotID)
	assert.Equal(t, "Bearer k", gotAuth)
}

func TestSendJSON_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	_, status, err := SendJSON(context.Background(), srv.Client(), srv.URL, struct{}{}, nil, nil)
	require.Error(t, err)
	var se *HTTPStatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 7*time.Second, se.RetryAfter)
	assert.Contains(t, se.Error(), "slow down")

	classified := ClassifyHTTPError("anthropic", status, err)
	assert.ErrorIs(t, classified, common.ErrOracleRateLimited)
	assert.ErrorIs(t, ClassifyHTTPError("anthropic", http.StatusBadGateway, err), common.ErrOracleUnavailable)
	assert.NoError(t, ClassifyHTTPError("anthropic", http.StatusOK, nil))
}
