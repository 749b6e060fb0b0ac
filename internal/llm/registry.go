package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/joseph-ayodele/content-engine/internal/common"
)

// Registry holds the configured oracles by name, in registration order.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	oracles map[string]Oracle
}

func NewRegistry(oracles ...Oracle) *Registry {
	r := &Registry{oracles: make(map[string]Oracle, len(oracles))}
	for _, o := range oracles {
		_ = r.Register(o)
	}
	return r
}

// Register adds o. Names must be unique.
func (r *Registry) Register(o Oracle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := o.Name()
	if _, dup := r.oracles[name]; dup {
		return fmt.Errorf("oracle %q already registered", name)
	}
	r.oracles[name] = o
	r.order = append(r.order, name)
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.oracles[name]
	return ok
}

// Get returns the oracle registered under name.
func (r *Registry) Get(name string) (Oracle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.oracles[name]
	return o, ok
}

// Names lists registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Chain resolves names into an ordered fallback chain.
func (r *Registry) Chain(names []string) (Chain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(Chain, 0, len(names))
	for _, n := range names {
		o, ok := r.oracles[n]
		if !ok {
			return nil, fmt.Errorf("%w: unknown oracle %q", common.ErrInvalidInput, n)
		}
		out = append(out, o)
	}
	return out, nil
}

// Chain is an explicit ordered list of oracles: the first success wins.
type Chain []Oracle

// Names lists the chain's oracle names in order.
func (c Chain) Names() []string {
	out := make([]string, len(c))
	for i, o := range c {
		out[i] = o.Name()
	}
	return out
}

// Attempt is one failed call made while walking a chain.
type Attempt struct {
	Oracle string
	Err    error
}

// ChainOutcome reports what a chain call did.
type ChainOutcome struct {
	Generation Generation
	// Failed lists the oracles that failed before the one that produced Generation.
	Failed []Attempt
	// Calls counts every oracle invocation, failed ones included.
	Calls int
	// Cost sums the cost estimates of all calls.
	Cost float64
}

// Generate calls each oracle in order until one succeeds. Each call is bounded by
// timeout when it is positive; exceeding it counts as a failure of that oracle.
// When every oracle fails the error is an *common.AllOraclesFailedError.
func (c Chain) Generate(ctx context.Context, prompt string, cons Constraints, timeout time.Duration, logger *slog.Logger) (ChainOutcome, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var out ChainOutcome
	all := &common.AllOraclesFailedError{Failures: map[string]error{}}
	for _, o := range c {
		if err := ctx.Err(); err != nil {
			break
		}
		out.Calls++
		gen, err := callWithTimeout(ctx, o, prompt, cons, timeout)
		out.Cost += gen.CostEstimate
		if err == nil && gen.Text != "" {
			out.Generation = gen
			return out, nil
		}
		if err == nil {
			err = common.NewOracleUnavailable(o.Name(), errors.New("empty reply"))
		}
		logger.Warn("llm.chain.attempt_failed", "oracle", o.Name(), "error", err)
		out.Failed = append(out.Failed, Attempt{Oracle: o.Name(), Err: err})
		all.Failures[o.Name()] = err
		all.Order = append(all.Order, o.Name())
	}
	if err := ctx.Err(); err != nil && len(all.Order) < len(c) {
		return out, fmt.Errorf("oracle chain interrupted: %w", err)
	}
	return out, all
}

// callWithTimeout bounds one oracle call. A blown deadline becomes a TimeoutError
// wrapped as an unavailable-oracle failure.
func callWithTimeout(ctx context.Context, o Oracle, prompt string, cons Constraints, timeout time.Duration) (Generation, error) {
	if timeout <= 0 {
		return o.Generate(ctx, prompt, cons)
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	gen, err := o.Generate(cctx, prompt, cons)
	if err != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return gen, common.NewOracleUnavailable(o.Name(), &common.TimeoutError{Op: "oracle " + o.Name(), Limit: timeout})
	}
	return gen, err
}

// CallWithTimeout is callWithTimeout for callers outside the package.
func CallWithTimeout(ctx context.Context, o Oracle, prompt string, cons Constraints, timeout time.Duration) (Generation, error) {
	return callWithTimeout(ctx, o, prompt, cons, timeout)
}
