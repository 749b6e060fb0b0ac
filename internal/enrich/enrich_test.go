package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/entity"
	"github.com/joseph-ayodele/content-engine/internal/llm"
)

func insightOracle(calls *atomic.Int32, reply string, err error) llm.Oracle {
	return llm.OracleFunc{OracleName: "insight", Fn: func(context.Context, string, llm.Constraints) (llm.Generation, error) {
		calls.Add(1)
		if err != nil {
			return llm.Generation{}, err
		}
		return llm.Generation{Oracle: "insight", Text: reply, CostEstimate: 0.01}, nil
	}}
}

const insightReply = "Here you go:\n```json\n{\"related_keywords\":[\"go tutorial\",\"Go Tutorial\",\"golang\",\"learn go\"],\"search_intent\":\"informational\"}\n```"

func TestOracleInsightSharesOneCallWithinScope(t *testing.T) {
	var calls atomic.Int32
	svc := NewOracleInsight(llm.Chain{insightOracle(&calls, insightReply, nil)}, 0, nil)
	ctx := WithInsightScope(context.Background())

	var wg sync.WaitGroup
	var reported atomic.Int32
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := svc.RelatedKeywords(ctx, "golang")
			reported.Add(int32(r.Calls))
		}()
	}
	wg.Wait()

	related := svc.RelatedKeywords(ctx, "Golang ")
	require.False(t, related.Failed())
	assert.Equal(t, []string{"go tutorial", "learn go"}, related.Value)

	intent := svc.SearchIntent(ctx, "golang")
	require.False(t, intent.Failed())
	assert.Equal(t, constants.IntentInformational, intent.Value)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(1), reported.Load(), "usage is counted once")
}

func TestOracleInsightConcurrentLookupsMakeOneCall(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	slow := llm.OracleFunc{OracleName: "insight", Fn: func(context.Context, string, llm.Constraints) (llm.Generation, error) {
		calls.Add(1)
		<-release
		return llm.Generation{Oracle: "insight", Text: insightReply}, nil
	}}
	svc := NewOracleInsight(llm.Chain{slow}, 0, nil)

	var wg sync.WaitGroup
	results := make([]Result[[]string], 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = svc.RelatedKeywords(context.Background(), "GoLang")
		}()
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		require.False(t, r.Failed())
		assert.Equal(t, []string{"go tutorial", "learn go"}, r.Value)
	}
}

func TestOracleInsightKeepsNothingOutsideScope(t *testing.T) {
	var calls atomic.Int32
	svc := NewOracleInsight(llm.Chain{insightOracle(&calls, insightReply, nil)}, 0, nil)

	require.False(t, svc.RelatedKeywords(context.Background(), "golang").Failed())
	require.False(t, svc.SearchIntent(context.Background(), "golang").Failed())
	assert.Equal(t, int32(2), calls.Load())

	scoped := WithInsightScope(context.Background())
	require.False(t, svc.RelatedKeywords(scoped, "golang").Failed())
	assert.Equal(t, scoped, WithInsightScope(scoped))
	require.False(t, svc.SearchIntent(WithInsightScope(scoped), "golang").Failed())
	assert.Equal(t, int32(3), calls.Load())
}

func TestOracleInsightDegrades(t *testing.T) {
	tests := []struct {
		name  string
		chain llm.Chain
	}{
		{"no oracle", nil},
		{"oracle down", llm.Chain{insightOracle(new(atomic.Int32), "", common.NewOracleUnavailable("insight", errors.New("down")))}},
		{"not json", llm.Chain{insightOracle(new(atomic.Int32), "sorry, I cannot help", nil)}},
		{"schema mismatch", llm.Chain{insightOracle(new(atomic.Int32), `{"related_keywords":"x","search_intent":"informational"}`, nil)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewOracleInsight(tt.chain, 0, nil)
			res := svc.RelatedKeywords(context.Background(), "golang")
			assert.True(t, res.Failed())
			assert.Contains(t, res.Warning, "keyword insight unavailable")
			assert.Nil(t, res.Value)
			assert.Equal(t, len(tt.chain), res.Calls)
		})
	}
}

func TestDedupeKeywords(t *testing.T) {
	got := DedupeKeywords([]string{" a  b ", "A B", "c", "", "seed", "d"}, 2, "Seed")
	assert.Equal(t, []string{"a b", "c"}, got)
	assert.Equal(t, []string{"x", "y"}, DedupeKeywords([]string{"x", "y"}, 0))
}

func TestHTTPSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "golang generics", req.Query)
		assert.Equal(t, 2, req.MaxResults)
		_, _ = w.Write([]byte(`{"results":[
			{"url":"https://go.dev/doc","title":"Docs","snippet":"Official docs"},
			{"url":"https://go.dev/doc","title":"Dup","snippet":"dup"},
			{"url":"","title":"No URL"},
			{"url":"https://go.dev/blog","title":"Blog","content":"From the  blog"},
			{"url":"https://example.com","title":"Extra"}
		]}`))
	}))
	defer srv.Close()

	res := NewHTTPSearch(srv.URL, "key", time.Second, nil).Search(context.Background(), "golang generics", 2)
	require.False(t, res.Failed())
	assert.Equal(t, []entity.SearchResult{
		{URL: "https://go.dev/doc", Title: "Docs", Snippet: "Official docs"},
		{URL: "https://go.dev/blog", Title: "Blog", Snippet: "From the blog"},
	}, res.Value)
}

func TestHTTPSearchDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	res := NewHTTPSearch(srv.URL, "", time.Second, nil).Search(context.Background(), "q", 3)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Warning, "web search unavailable")
	assert.Empty(t, res.Value)
}

func TestPresetOptimizer(t *testing.T) {
	tests := []struct {
		length constants.LengthPreset
		intent constants.SearchIntent
		want   int
	}{
		{constants.LengthMedium, constants.IntentInformational, 1800},
		{constants.LengthMedium, constants.IntentCommercial, 1500},
		{constants.LengthShort, constants.IntentNavigational, 400},
		{constants.LengthLong, constants.IntentInformational, 3000},
		{constants.LengthShort, "", 950},
	}
	for _, tt := range tests {
		res := PresetOptimizer{}.TargetWords(context.Background(), entity.GenerationRequest{Length: tt.length}, tt.intent)
		assert.Equal(t, tt.want, res.Value, "%s/%s", tt.length, tt.intent)
	}
}

func TestCachedInsight(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())
	t.Cleanup(func() {
		rdb.Del(ctx, cacheKeyPrefix+"related:cache test seed", cacheKeyPrefix+"intent:cache test seed")
	})

	var calls atomic.Int32
	reply := `{"related_keywords":["one","two"],"search_intent":"commercial"}`
	c := NewCachedInsight(NewOracleInsight(llm.Chain{insightOracle(&calls, reply, nil)}, 0, nil), rdb, time.Minute, nil)

	first := c.RelatedKeywords(ctx, "cache test seed")
	require.False(t, first.Failed())
	second := NewCachedInsight(nil, rdb, time.Minute, nil).RelatedKeywords(ctx, "Cache  Test Seed")
	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, int32(1), calls.Load())
}
