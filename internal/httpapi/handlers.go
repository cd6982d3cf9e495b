package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"
	"github.com/panbanda/gradelens/internal/service/analysis"
	"github.com/panbanda/gradelens/pkg/analyzer/aggregate"
	"github.com/panbanda/gradelens/pkg/models"
	"github.com/panbanda/gradelens/pkg/source"
)

// APIError is the body of every failed request.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps an APIError.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

var (
	errBadQuery     = errors.New("bad query parameter")
	errBodyTooLarge = errors.New("request body too large")
)

func respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, errBadQuery):
		status, code = http.StatusBadRequest, "bad_query"
	case errors.Is(err, errBodyTooLarge):
		status, code = http.StatusRequestEntityTooLarge, "body_too_large"
	case errors.Is(err, source.ErrInvalidDataset), errors.Is(err, aggregate.ErrInvalidScore):
		status, code = http.StatusUnprocessableEntity, "invalid_dataset"
	case errors.Is(err, analysis.ErrNoDataset):
		status, code = http.StatusBadRequest, "no_dataset"
	case errors.Is(err, analysis.ErrUnknownExam):
		status, code = http.StatusNotFound, "unknown_exam"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: err.Error(), Code: code}})
}

// respond writes v as JSON with an ETag of the body. A matching
// If-None-Match answers 304 without a body.
func respond(c *gin.Context, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		respondError(c, fmt.Errorf("encode response: %w", err))
		return
	}
	etag := `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func healthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// load resolves the dataset of a request. A request body is decoded as an
// inline dataset (YAML when the content type says so, JSON otherwise);
// without one the configured source is read. Bodies over the configured
// limit are rejected. Query parameters class, track, year and exam narrow
// the scope either way.
func (s *Server) load(c *gin.Context) (*models.Dataset, error) {
	scope, err := scopeFromQuery(c)
	if err != nil {
		return nil, err
	}
	req := analysis.Request{Scope: scope}

	if c.Request.Method == http.MethodPost {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody)
		body, err := c.GetRawData()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, tooLarge.Limit)
			}
			return nil, fmt.Errorf("read body: %w", err)
		}
		if len(body) > 0 {
			format := source.FormatJSON
			if strings.Contains(c.ContentType(), "yaml") {
				format = source.FormatYAML
			}
			ds, err := source.Decode(body, format)
			if err != nil {
				return nil, err
			}
			req.Dataset = ds
		}
	}
	return s.service.Load(c.Request.Context(), req)
}

func scopeFromQuery(c *gin.Context) (source.Scope, error) {
	scope := source.Scope{
		ClassCode:    c.Query("class"),
		Track:        c.Query("track"),
		AcademicYear: c.Query("year"),
	}
	for _, raw := range c.QueryArray("exam") {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return scope, fmt.Errorf("%w: exam=%q", errBadQuery, raw)
		}
		scope.ExamIDs = append(scope.ExamIDs, id)
	}
	return scope, nil
}

func (s *Server) report(c *gin.Context) {
	ds, err := s.load(c)
	if err != nil {
		respondError(c, err)
		return
	}
	rep, err := s.service.Report(c.Request.Context(), ds)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, rep)
}

func (s *Server) aggregate(c *gin.Context) {
	ds, err := s.load(c)
	if err != nil {
		respondError(c, err)
		return
	}
	agg, err := s.service.Aggregate(ds)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, agg)
}

func (s *Server) cohorts(c *gin.Context) {
	ds, err := s.load(c)
	if err != nil {
		respondError(c, err)
		return
	}
	cohorts, err := s.service.Cohorts(ds)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, cohorts)
}

func (s *Server) rank(c *gin.Context) {
	var examID *int64
	if raw := c.Query("exam_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, fmt.Errorf("%w: exam_id=%q", errBadQuery, raw))
			return
		}
		examID = &id
	}

	ds, err := s.load(c)
	if err != nil {
		respondError(c, err)
		return
	}
	ranked, err := s.service.Rank(ds, examID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, ranked)
}
