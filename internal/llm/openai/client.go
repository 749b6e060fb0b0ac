package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/llm"
)

// Generate implements llm.Oracle using chat completions.
func (c *Client) Generate(ctx context.Context, prompt string, cons llm.Constraints) (llm.Generation, error) {
	start := time.Now()
	model := c.cfg.Model
	if cons.ModelName != "" {
		model = cons.ModelName
	}
	temp := c.cfg.Temperature
	if cons.Temperature > 0 {
		temp = cons.Temperature
	}
	maxTokens := c.cfg.MaxTokens
	if cons.MaxTokens > 0 {
		maxTokens = cons.MaxTokens
	}

	c.logger.Debug("llm.openai.start",
		"oracle", c.cfg.Name,
		"model", model,
		"temp", temp,
		"prompt_len", len(prompt),
	)

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:               model,
		Temperature:         temp,
		MaxCompletionTokens: maxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: c.cfg.System},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		c.logger.Error("llm.openai.http_error",
			"oracle", c.cfg.Name, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Generation{Oracle: c.cfg.Name}, classify(c.cfg.Name, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		c.logger.Error("llm.openai.no_choices",
			"oracle", c.cfg.Name,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Generation{Oracle: c.cfg.Name}, common.NewOracleUnavailable(c.cfg.Name, fmt.Errorf("no choices in openai response"))
	}

	tokens := resp.Usage.TotalTokens
	if tokens == 0 {
		tokens = llm.ApproxTokens(prompt, resp.Choices[0].Message.Content)
	}
	c.logger.Info("llm.openai.ok",
		"oracle", c.cfg.Name,
		"model", model,
		"tokens", tokens,
		"finish_reason", resp.Choices[0].FinishReason,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.Generation{
		Oracle:       c.cfg.Name,
		Text:         resp.Choices[0].Message.Content,
		TokensUsed:   tokens,
		CostEstimate: llm.EstimateCost(tokens, c.cfg.CostPer1K),
	}, nil
}

func classify(name string, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return common.NewOracleRateLimited(name, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return common.NewOracleRateLimited(name, err)
	}
	return common.NewOracleUnavailable(name, err)
}
