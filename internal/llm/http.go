package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/content-engine/internal/common"
)

// maxReplyBytes bounds how much of a reply body is read.
const maxReplyBytes = 8 << 20

// HTTPStatusError is a non-2xx reply from a JSON endpoint.
type HTTPStatusError struct {
	Status     int
	Body       string
	RetryAfter time.Duration // from a Retry-After header in seconds, zero if absent
}

func (e *HTTPStatusError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("non-2xx status: %d: %s", e.Status, body)
}

// SendJSON POSTs body as JSON to url and returns the raw reply and its status code.
// The request id from ctx (or a fresh one) is sent as X-Request-ID; headers override defaults.
func SendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	log := logger.With("req_id", reqID)

	payload, err := json.Marshal(body)
	if err != nil {
		log.Error("llm.http.encode_error", "error", err)
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		log.Error("llm.http.build_request_error", "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	log.Debug("llm.http.request", "url", url, "content_length", len(payload))
	resp, err := client.Do(req)
	if err != nil {
		log.Error("llm.http.send_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warn("llm.http.response_body_close_error", "error", cerr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		log.Error("llm.http.read_error", "status", resp.StatusCode, "error", err, "elapsed_ms", elapsed)
		return nil, resp.StatusCode, fmt.Errorf("read reply: %w", err)
	}
	log.Info("llm.http.response", "status", resp.StatusCode, "bytes", len(raw), "elapsed_ms", elapsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &HTTPStatusError{Status: resp.StatusCode, Body: string(raw)}
		if secs, perr := strconv.Atoi(resp.Header.Get("Retry-After")); perr == nil && secs > 0 {
			se.RetryAfter = time.Duration(secs) * time.Second
		}
		return raw, resp.StatusCode, se
	}
	return raw, resp.StatusCode, nil
}

// ClassifyHTTPError maps a SendJSON failure onto the oracle error taxonomy:
// 429 is rate limiting, anything else makes the oracle unavailable.
func ClassifyHTTPError(oracle string, status int, err error) error {
	if err == nil {
		return nil
	}
	if status == http.StatusTooManyRequests {
		return common.NewOracleRateLimited(oracle, err)
	}
	return common.NewOracleUnavailable(oracle, err)
}
