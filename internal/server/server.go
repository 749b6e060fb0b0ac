// Package server exposes the content engine over HTTP with gin.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/joseph-ayodele/content-engine/internal/entity"
	"github.com/joseph-ayodele/content-engine/internal/export"
	"github.com/joseph-ayodele/content-engine/internal/interlink"
)

// JobService is the part of the job manager the API needs.
type JobService interface {
	Submit(ctx context.Context, req entity.SubmitRequest) (entity.SubmitResponse, error)
	GetStatus(ctx context.Context, id string) (*entity.Job, error)
	List(ctx context.Context, limit int) ([]*entity.Job, error)
}

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

// Deps are the collaborators of the API. Jobs and Interlinks are required.
type Deps struct {
	Jobs       JobService
	Interlinks *interlink.Service
	Export     *export.Service
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Health checks run on GET /healthz, keyed by dependency name.
	Health map[string]HealthFunc
	// Redis enables the submit rate limit when SubmitRateLimit > 0.
	Redis redis.UniversalClient
}

// Options tune the API.
type Options struct {
	SubmitRateLimit  int
	SubmitRateWindow time.Duration
	HealthTimeout    time.Duration
}

type Server struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

func New(deps Deps, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Export == nil && deps.Interlinks != nil {
		deps.Export = export.NewService(deps.Interlinks, logger)
	}
	if opts.SubmitRateWindow <= 0 {
		opts.SubmitRateWindow = time.Minute
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 2 * time.Second
	}
	return &Server{deps: deps, opts: opts, logger: logger}
}

// Router builds the gin engine with every route registered.
//
//	POST /v1/jobs               submit a generation job
//	GET  /v1/jobs               list recent jobs
//	GET  /v1/jobs/:id           job status and result
//	POST /v1/interlinks         rank interlinking opportunities
//	POST /v1/interlinks/export  the same ranking as an XLSX report
//	POST /v1/score              quality score for arbitrary text
//	GET  /healthz               dependency health
//	GET  /metrics               Prometheus metrics
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware("content-engine"), requestID(s.logger), accessLog())

	r.GET("/healthz", s.health)
	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}

	v1 := r.Group("/v1")
	submit := []gin.HandlerFunc{}
	if s.opts.SubmitRateLimit > 0 && s.deps.Redis != nil {
		submit = append(submit, NewRateLimiter(RateLimiterConfig{
			RedisClient: s.deps.Redis,
			Limit:       s.opts.SubmitRateLimit,
			Window:      s.opts.SubmitRateWindow,
			KeyPrefix:   "rl:submit:",
		}))
	}
	v1.POST("/jobs", append(submit, s.submitJob)...)
	v1.GET("/jobs", s.listJobs)
	v1.GET("/jobs/:id", s.getJob)
	v1.POST("/interlinks", s.findInterlinks)
	v1.POST("/interlinks/export", s.exportInterlinks)
	v1.POST("/score", s.score)
	return r
}

// Handler is Router as a plain http.Handler.
func (s *Server) Handler() http.Handler {
	return s.Router()
}
