package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/llm"
	"github.com/joseph-ayodele/content-engine/internal/textutil"
)

// MaxRelatedKeywords caps the related keyword list.
const MaxRelatedKeywords = 15

// KeywordInsight answers keyword research questions.
type KeywordInsight interface {
	RelatedKeywords(ctx context.Context, seed string) Result[[]string]
	SearchIntent(ctx context.Context, keyword string) Result[constants.SearchIntent]
}

type insight struct {
	related []string
	intent  constants.SearchIntent
}

type insightScopeKey struct{}

type insightScope struct {
	mu   sync.Mutex
	memo map[string]insight
}

// WithInsightScope returns a context under which successful insight answers are
// kept until the context is dropped, so RelatedKeywords and SearchIntent for the
// same keyword share one oracle reply. Nothing is kept outside a scope.
func WithInsightScope(ctx context.Context) context.Context {
	if _, ok := ctx.Value(insightScopeKey{}).(*insightScope); ok {
		return ctx
	}
	return context.WithValue(ctx, insightScopeKey{}, &insightScope{memo: map[string]insight{}})
}

func scopeFrom(ctx context.Context) *insightScope {
	s, _ := ctx.Value(insightScopeKey{}).(*insightScope)
	return s
}

func (s *insightScope) get(key string) (insight, bool) {
	if s == nil {
		return insight{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.memo[key]
	return in, ok
}

func (s *insightScope) put(key string, in insight) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.memo[key] = in
	s.mu.Unlock()
}

type insightFlight struct {
	in  insight
	res Result[struct{}]
}

// OracleInsight derives keyword insight from one structured oracle reply per keyword.
// Concurrent lookups of the same keyword wait for a single oracle call.
type OracleInsight struct {
	chain   llm.Chain
	timeout time.Duration
	logger  *slog.Logger

	group singleflight.Group
}

func NewOracleInsight(chain llm.Chain, timeout time.Duration, logger *slog.Logger) *OracleInsight {
	if logger == nil {
		logger = slog.Default()
	}
	return &OracleInsight{chain: chain, timeout: timeout, logger: logger}
}

func (o *OracleInsight) RelatedKeywords(ctx context.Context, seed string) Result[[]string] {
	in, res := o.lookup(ctx, seed)
	if res.Failed() {
		return Result[[]string]{Warning: res.Warning, Calls: res.Calls, Cost: res.Cost}
	}
	return OK(in.related).WithUsage(res.Calls, res.Cost)
}

func (o *OracleInsight) SearchIntent(ctx context.Context, keyword string) Result[constants.SearchIntent] {
	in, res := o.lookup(ctx, keyword)
	if res.Failed() {
		return Result[constants.SearchIntent]{Warning: res.Warning, Calls: res.Calls, Cost: res.Cost}
	}
	return OK(in.intent).WithUsage(res.Calls, res.Cost)
}

// lookup reports oracle usage only to the caller whose call reached the oracle.
func (o *OracleInsight) lookup(ctx context.Context, keyword string) (insight, Result[struct{}]) {
	key := textutil.Normalize(keyword)
	if key == "" {
		return insight{}, Degraded[struct{}]("keyword insight", errors.New("empty keyword"))
	}
	scope := scopeFrom(ctx)
	if in, ok := scope.get(key); ok {
		return in, Result[struct{}]{}
	}

	leader := false
	v, _, _ := o.group.Do(key, func() (any, error) {
		leader = true
		in, res := o.ask(ctx, keyword)
		return insightFlight{in: in, res: res}, nil
	})
	f := v.(insightFlight)
	if !f.res.Failed() {
		scope.put(key, f.in)
	}
	if !leader {
		common.LoggerFromContext(ctx, o.logger).Debug("enrich.insight.shared", "keyword", key)
		f.res.Calls, f.res.Cost = 0, 0
	}
	f.in.related = slices.Clone(f.in.related)
	return f.in, f.res
}

func (o *OracleInsight) ask(ctx context.Context, keyword string) (insight, Result[struct{}]) {
	if len(o.chain) == 0 {
		return insight{}, Degraded[struct{}]("keyword insight", errors.New("no oracle configured"))
	}
	out, err := o.chain.Generate(ctx, llm.BuildInsightPrompt(keyword), llm.Constraints{Temperature: 0.2}, o.timeout, common.LoggerFromContext(ctx, o.logger))
	if err != nil {
		return insight{}, Degraded[struct{}]("keyword insight", err).WithUsage(out.Calls, out.Cost)
	}
	var reply llm.InsightReply
	if err := llm.DecodeReply("insight", llm.InsightJSONSchema(), out.Generation.Text, &reply); err != nil {
		return insight{}, Degraded[struct{}]("keyword insight", fmt.Errorf("bad reply: %w", err)).WithUsage(out.Calls, out.Cost)
	}
	intent, ok := constants.ParseSearchIntent(reply.SearchIntent)
	if !ok {
		common.LoggerFromContext(ctx, o.logger).Warn("enrich.insight.unknown_intent", "keyword", keyword, "intent", reply.SearchIntent)
	}
	return insight{
		related: DedupeKeywords(reply.RelatedKeywords, MaxRelatedKeywords, keyword),
		intent:  intent,
	}, Result[struct{}]{Calls: out.Calls, Cost: out.Cost}
}

// DedupeKeywords normalizes whitespace, drops case-insensitive duplicates and any
// excluded keyword, and keeps at most limit entries (all when limit <= 0) in
// first-seen order.
func DedupeKeywords(in []string, limit int, exclude ...string) []string {
	seen := make(map[string]struct{}, len(in)+len(exclude))
	for _, e := range exclude {
		seen[textutil.Normalize(e)] = struct{}{}
	}
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.Join(strings.Fields(k), " ")
		n := strings.ToLower(k)
		if k == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, k)
		if len(out) == limit {
			break
		}
	}
	return out
}
