package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/content-engine/internal/common"
)

type rateLimited struct {
	Oracle
	limiter *rate.Limiter
}

// WithRateLimit caps o at perMinute calls. Callers wait for a token; if the
// context ends first the call fails as rate limited. perMinute <= 0 returns o.
func WithRateLimit(o Oracle, perMinute int, burst int) Oracle {
	if perMinute <= 0 {
		return o
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimited{
		Oracle:  o,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
	}
}

func (r *rateLimited) Generate(ctx context.Context, prompt string, c Constraints) (Generation, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Generation{Oracle: r.Name()}, common.NewOracleRateLimited(r.Name(), err)
	}
	return r.Oracle.Generate(ctx, prompt, c)
}
