// Package ollama is an oracle backed by a local Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/llm"
)

type Config struct {
	Name        string
	BaseURL     string // e.g. http://localhost:11434
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Name == "" {
		cfg.Name = "ollama"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.1"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

func (c *Client) Name() string { return c.cfg.Name }

// Generate implements llm.Oracle. Local models are free, so the cost estimate is 0.
func (c *Client) Generate(ctx context.Context, prompt string, cons llm.Constraints) (llm.Generation, error) {
	model := c.cfg.Model
	if cons.ModelName != "" {
		model = cons.ModelName
	}
	options := map[string]any{"num_predict": c.cfg.MaxTokens}
	if cons.MaxTokens > 0 {
		options["num_predict"] = cons.MaxTokens
	}
	if cons.Temperature > 0 {
		options["temperature"] = cons.Temperature
	} else if c.cfg.Temperature > 0 {
		options["temperature"] = c.cfg.Temperature
	}

	raw, status, err := llm.SendJSON(ctx, c.http, c.cfg.BaseURL+"/api/generate", generateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  false,
		Options: options,
	}, nil, c.logger)
	if err != nil {
		return llm.Generation{Oracle: c.cfg.Name}, llm.ClassifyHTTPError(c.cfg.Name, status, err)
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return llm.Generation{Oracle: c.cfg.Name}, common.NewOracleUnavailable(c.cfg.Name, fmt.Errorf("decode ollama response: %w", err))
	}
	if resp.Error != "" {
		return llm.Generation{Oracle: c.cfg.Name}, common.NewOracleUnavailable(c.cfg.Name, fmt.Errorf("ollama: %s", resp.Error))
	}
	if strings.TrimSpace(resp.Response) == "" {
		return llm.Generation{Oracle: c.cfg.Name}, common.NewOracleUnavailable(c.cfg.Name, fmt.Errorf("empty ollama response"))
	}
	return llm.Generation{
		Oracle:     c.cfg.Name,
		Text:       resp.Response,
		TokensUsed: resp.PromptEvalCount + resp.EvalCount,
	}, nil
}
