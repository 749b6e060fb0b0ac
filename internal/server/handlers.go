package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/entity"
	"github.com/joseph-ayodele/content-engine/internal/quality"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// InterlinkRequest is the body of the interlinking endpoints.
type InterlinkRequest struct {
	Keyword    string               `json:"keyword" validate:"notblank,max=200"`
	Corpus     []entity.ContentItem `json:"corpus,omitempty" validate:"max=5000,dive"`
	MaxResults int                  `json:"max_results,omitempty" validate:"gte=0,lte=100"`
}

// ScoreRequest is the body of POST /v1/score.
type ScoreRequest struct {
	Text    string `json:"text" validate:"notblank"`
	Keyword string `json:"keyword,omitempty" validate:"max=100"`
}

type errorResponse struct {
	Error     string                   `json:"error"`
	Fields    []common.ValidationError `json:"fields,omitempty"`
	RequestID string                   `json:"request_id,omitempty"`
}

// respondError maps err onto its HTTP status. Internal failures are logged and
// not echoed back.
func respondError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	body := errorResponse{Error: err.Error(), RequestID: common.RequestIDFromContext(c.Request.Context())}
	var ve common.ValidationErrors
	if errors.As(err, &ve) {
		body.Error = common.ErrValidation.Error()
		body.Fields = ve
	}
	if status == http.StatusInternalServerError {
		common.LoggerFromContext(c.Request.Context(), nil).Error("http.internal_error", "error", err)
		body.Error = common.ErrInternal.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

// bind decodes the JSON body into dst and validates it.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, fmt.Errorf("%w: malformed JSON body: %v", common.ErrInvalidInput, err))
		return false
	}
	return true
}

func (s *Server) submitJob(c *gin.Context) {
	var req entity.SubmitRequest
	if !bind(c, &req) {
		return
	}
	resp, err := s.deps.Jobs.Submit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Location", "/v1/jobs/"+resp.JobID)
	c.JSON(http.StatusAccepted, resp)
}

func (s *Server) getJob(c *gin.Context) {
	job, err := s.deps.Jobs.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) listJobs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, fmt.Errorf("%w: limit must be a non-negative integer", common.ErrInvalidInput))
			return
		}
		limit = n
	}
	jobs, err := s.deps.Jobs.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) bindInterlink(c *gin.Context) (InterlinkRequest, bool) {
	var req InterlinkRequest
	if !bind(c, &req) {
		return req, false
	}
	if err := common.ValidateStruct(req); err != nil {
		respondError(c, err)
		return req, false
	}
	return req, true
}

func (s *Server) findInterlinks(c *gin.Context) {
	req, ok := s.bindInterlink(c)
	if !ok {
		return
	}
	opps, err := s.deps.Interlinks.Find(c.Request.Context(), req.Keyword, req.Corpus, req.MaxResults)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keyword": req.Keyword, "opportunities": opps})
}

func (s *Server) exportInterlinks(c *gin.Context) {
	req, ok := s.bindInterlink(c)
	if !ok {
		return
	}
	data, err := s.deps.Export.ExportInterlinksXLSX(c.Request.Context(), req.Keyword, req.Corpus, req.MaxResults)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="interlinks.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (s *Server) score(c *gin.Context) {
	var req ScoreRequest
	if !bind(c, &req) {
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quality.Score(req.Text, quality.Options{Keyword: req.Keyword}))
}

func (s *Server) health(c *gin.Context) {
	checks := make(map[string]string, len(s.deps.Health))
	healthy := true
	for name, check := range s.deps.Health {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.HealthTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			healthy = false
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}
