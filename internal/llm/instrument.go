package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/joseph-ayodele/content-engine/internal/common"
)

var tracer = otel.Tracer("content-engine/llm")

// Call outcomes reported to observers.
const (
	OutcomeOK          = "ok"
	OutcomeUnavailable = "unavailable"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// CallObserver receives one record per oracle call.
type CallObserver interface {
	ObserveOracleCall(oracle, outcome string, tokens int, elapsed time.Duration)
}

type instrumented struct {
	Oracle
	obs    CallObserver
	logger *slog.Logger
}

// Instrument wraps o with tracing, logging and an optional observer.
func Instrument(o Oracle, obs CallObserver, logger *slog.Logger) Oracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &instrumented{Oracle: o, obs: obs, logger: logger}
}

func (i *instrumented) Generate(ctx context.Context, prompt string, c Constraints) (Generation, error) {
	ctx, span := tracer.Start(ctx, "oracle.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("oracle.name", i.Name()),
		attribute.Int("oracle.prompt_len", len(prompt)),
	)

	start := time.Now()
	gen, err := i.Oracle.Generate(ctx, prompt, c)
	elapsed := time.Since(start)

	outcome := Outcome(err)
	if i.obs != nil {
		i.obs.ObserveOracleCall(i.Name(), outcome, gen.TokensUsed, elapsed)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.logger.Warn("oracle.call.error",
			"oracle", i.Name(),
			"job_id", common.JobIDFromContext(ctx),
			"outcome", outcome,
			"error", err,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		return gen, err
	}
	span.SetAttributes(attribute.Int("oracle.tokens", gen.TokensUsed))
	i.logger.Debug("oracle.call.ok",
		"oracle", i.Name(),
		"job_id", common.JobIDFromContext(ctx),
		"tokens", gen.TokensUsed,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return gen, nil
}

// Outcome classifies err for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, common.ErrOracleRateLimited):
		return OutcomeRateLimited
	case errors.Is(err, common.ErrOracleUnavailable):
		return OutcomeUnavailable
	default:
		return OutcomeError
	}
}
