// Package anthropic is a messages-API oracle over plain JSON HTTP.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/llm"
)

const (
	apiVersion     = "2023-06-01"
	defaultBaseURL = "https://api.anthropic.com/v1"
)

// Config for the Anthropic client.
type Config struct {
	Name        string
	APIKey      string // if empty, falls back to env ANTHROPIC_API_KEY
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	CostPer1K   float64
	Timeout     time.Duration
	System      string
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float32  `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Name == "" {
		cfg.Name = "anthropic"
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-sonnet-20240620"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

func (c *Client) Name() string { return c.cfg.Name }

// Generate implements llm.Oracle.
func (c *Client) Generate(ctx context.Context, prompt string, cons llm.Constraints) (llm.Generation, error) {
	req := messagesRequest{
		Model:     c.cfg.Model,
		System:    c.cfg.System,
		Messages:  []message{{Role: "user", Content: prompt}},
		MaxTokens: c.cfg.MaxTokens,
	}
	if cons.ModelName != "" {
		req.Model = cons.ModelName
	}
	if cons.MaxTokens > 0 {
		req.MaxTokens = cons.MaxTokens
	}
	temp := c.cfg.Temperature
	if cons.Temperature > 0 {
		temp = cons.Temperature
	}
	if temp > 0 {
		req.Temperature = &temp
	}

	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": apiVersion,
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/messages"
	raw, status, err := llm.SendJSON(ctx, c.http, url, req, headers, c.logger)
	if err != nil {
		return llm.Generation{Oracle: c.cfg.Name}, llm.ClassifyHTTPError(c.cfg.Name, status, err)
	}

	var resp messagesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return llm.Generation{Oracle: c.cfg.Name}, common.NewOracleUnavailable(c.cfg.Name, fmt.Errorf("decode anthropic response: %w", err))
	}
	if resp.Error != nil {
		return llm.Generation{Oracle: c.cfg.Name}, common.NewOracleUnavailable(c.cfg.Name, fmt.Errorf("anthropic API error: %s - %s", resp.Error.Type, resp.Error.Message))
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return llm.Generation{Oracle: c.cfg.Name}, common.NewOracleUnavailable(c.cfg.Name, fmt.Errorf("received content but no text block found"))
	}

	tokens := resp.Usage.InputTokens + resp.Usage.OutputTokens
	if tokens == 0 {
		tokens = llm.ApproxTokens(prompt, b.String())
	}
	return llm.Generation{
		Oracle:       c.cfg.Name,
		Text:         b.String(),
		TokensUsed:   tokens,
		CostEstimate: llm.EstimateCost(tokens, c.cfg.CostPer1K),
	}, nil
}
