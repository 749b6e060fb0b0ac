package llm

import "context"

// Constraints bound one generation call.
type Constraints struct {
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	ModelName   string  `json:"model_name,omitempty"`
}

// Generation is the output of one oracle call.
type Generation struct {
	Oracle       string  `json:"oracle"`
	Text         string  `json:"text"`
	TokensUsed   int     `json:"tokens_used"`
	CostEstimate float64 `json:"cost_estimate"`
}

// Oracle is a text generation backend. Implementations return errors that
// satisfy errors.Is(err, common.ErrOracleUnavailable) or common.ErrOracleRateLimited.
type Oracle interface {
	Name() string
	Generate(ctx context.Context, prompt string, c Constraints) (Generation, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc struct {
	OracleName string
	Fn         func(ctx context.Context, prompt string, c Constraints) (Generation, error)
}

func (f OracleFunc) Name() string { return f.OracleName }

func (f OracleFunc) Generate(ctx context.Context, prompt string, c Constraints) (Generation, error) {
	return f.Fn(ctx, prompt, c)
}

// Outline is the structured research outline.
type Outline struct {
	Title    string           `json:"title"`
	Sections []OutlineSection `json:"sections"`
}

type OutlineSection struct {
	Heading string   `json:"heading"`
	Points  []string `json:"points,omitempty"`
}

// Meta is the SEO metadata produced in the polish stage.
type Meta struct {
	MetaTitle       string `json:"meta_title"`
	MetaDescription string `json:"meta_description"`
}

// InsightReply is the structured reply of the keyword insight prompt.
type InsightReply struct {
	RelatedKeywords []string `json:"related_keywords"`
	SearchIntent    string   `json:"search_intent"`
}

// EstimateCost prices tokens at costPer1K.
func EstimateCost(tokens int, costPer1K float64) float64 {
	if tokens <= 0 || costPer1K <= 0 {
		return 0
	}
	return float64(tokens) / 1000 * costPer1K
}

// ApproxTokens estimates a token count from text length when a backend reports none.
func ApproxTokens(texts ...string) int {
	n := 0
	for _, t := range texts {
		n += len(t)
	}
	return (n + 3) / 4
}
