// Package providers builds the oracle registry from configuration.
package providers

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/llm"
	"github.com/joseph-ayodele/content-engine/internal/llm/anthropic"
	"github.com/joseph-ayodele/content-engine/internal/llm/ollama"
	"github.com/joseph-ayodele/content-engine/internal/llm/openai"
)

// New constructs the backend for one oracle config.
func New(oc common.OracleConfig, logger *slog.Logger) (llm.Oracle, error) {
	switch oc.Provider {
	case "openai", "":
		return openai.NewClient(openai.Config{
			Name:        oc.Name,
			APIKey:      oc.APIKey,
			BaseURL:     oc.BaseURL,
			Model:       oc.Model,
			Temperature: oc.Temperature,
			MaxTokens:   oc.MaxTokens,
			CostPer1K:   oc.CostPer1K,
			Timeout:     oc.Timeout,
		}, logger), nil
	case "anthropic":
		return anthropic.NewClient(anthropic.Config{
			Name:        oc.Name,
			APIKey:      oc.APIKey,
			BaseURL:     oc.BaseURL,
			Model:       oc.Model,
			Temperature: oc.Temperature,
			MaxTokens:   oc.MaxTokens,
			CostPer1K:   oc.CostPer1K,
			Timeout:     oc.Timeout,
		}, logger), nil
	case "ollama":
		return ollama.NewClient(ollama.Config{
			Name:        oc.Name,
			BaseURL:     oc.BaseURL,
			Model:       oc.Model,
			Temperature: oc.Temperature,
			MaxTokens:   oc.MaxTokens,
			Timeout:     oc.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown oracle provider %q for %q", common.ErrInvalidInput, oc.Provider, oc.Name)
	}
}

// BuildRegistry creates every configured oracle, wrapped with its rate limit and
// instrumentation, in configuration order.
func BuildRegistry(cfg common.LLMConfig, obs llm.CallObserver, logger *slog.Logger) (*llm.Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reg := llm.NewRegistry()
	for _, oc := range cfg.Oracles {
		o, err := New(oc, logger)
		if err != nil {
			return nil, err
		}
		o = llm.Instrument(llm.WithRateLimit(o, oc.RatePerMinute, 1), obs, logger)
		if err := reg.Register(o); err != nil {
			return nil, err
		}
		logger.Info("llm.oracle.registered", "oracle", oc.Name, "provider", oc.Provider, "model", oc.Model)
	}
	return reg, nil
}
