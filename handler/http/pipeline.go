package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ragmill/src/core/chunking"
	"ragmill/src/core/pipeline"
	"ragmill/src/rag"
)

// HealthCheck probes one external collaborator.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	pipeline *pipeline.Pipeline
	checks   map[string]HealthCheck
}

func NewHandler(p *pipeline.Pipeline) *Handler {
	return &Handler{
		pipeline: p,
		checks:   map[string]HealthCheck{},
	}
}

// AddHealthCheck registers a named collaborator probe reported by the
// health endpoint.
func (h *Handler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// RegisterRoutes registers all pipeline API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")

	// Document routes
	v1.POST("/documents/load", h.LoadDocuments)
	v1.POST("/documents/process", h.ProcessDocuments)

	// Query routes
	v1.POST("/query", h.Query)
	v1.POST("/query/batch", h.BatchQuery)

	// System routes
	v1.POST("/reset", h.Reset)
	v1.GET("/stats", h.GetStats)
	v1.GET("/health", h.CheckHealth)
}

// Common error response structure
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func sendError(c *gin.Context, status int, err error) {
	var code string
	switch {
	case errors.Is(err, rag.ErrNotLoaded):
		code = "NO_DOCUMENTS_LOADED"
		status = http.StatusConflict
	case errors.Is(err, rag.ErrNotIndexed):
		code = "DOCUMENTS_NOT_PROCESSED"
		status = http.StatusConflict
	case errors.Is(err, chunking.ErrInvalidOptions):
		code = "BAD_REQUEST"
		status = http.StatusBadRequest
	case status == http.StatusBadRequest:
		code = "BAD_REQUEST"
	default:
		code = "INTERNAL_ERROR"
		status = http.StatusInternalServerError
	}

	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
}

func sendJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

type loadRequest struct {
	Directory string `json:"directory"`
	File      string `json:"file"`
}

type loadResponse struct {
	DocumentsLoaded int      `json:"documentsLoaded"`
	Warnings        []string `json:"warnings,omitempty"`
}

// LoadDocuments godoc
// @Summary Load documents from a directory or a single file
// @Tags documents
// @Accept json
// @Produce json
// @Param body body loadRequest true "Load parameters"
// @Success 200 {object} loadResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /documents/load [post]
func (h *Handler) LoadDocuments(c *gin.Context) {
	var req loadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	var (
		count    int
		warnings []error
		err      error
	)
	if req.File != "" {
		count, warnings, err = h.pipeline.LoadFile(c.Request.Context(), req.File)
	} else {
		count, warnings, err = h.pipeline.LoadDirectory(c.Request.Context(), req.Directory)
	}
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	resp := loadResponse{DocumentsLoaded: count}
	for _, w := range warnings {
		resp.Warnings = append(resp.Warnings, w.Error())
	}
	sendJSON(c, http.StatusOK, resp)
}

type processRequest struct {
	Strategy     string `json:"strategy"`
	ChunkSize    int    `json:"chunkSize"`
	ChunkOverlap int    `json:"chunkOverlap"`
	MaxChars     int    `json:"maxChars"`
	MaxSentences int    `json:"maxSentences"`
}

type processResponse struct {
	ChunksCreated int `json:"chunksCreated"`
}

// ProcessDocuments godoc
// @Summary Chunk and index the loaded documents
// @Tags documents
// @Accept json
// @Produce json
// @Param body body processRequest true "Chunking parameters"
// @Success 200 {object} processResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /documents/process [post]
func (h *Handler) ProcessDocuments(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	count, err := h.pipeline.Process(c.Request.Context(), chunking.Options{
		Strategy:     req.Strategy,
		ChunkSize:    req.ChunkSize,
		ChunkOverlap: req.ChunkOverlap,
		MaxChars:     req.MaxChars,
		MaxSentences: req.MaxSentences,
	})
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusOK, processResponse{ChunksCreated: count})
}

type queryRequest struct {
	Question  string  `json:"question" binding:"required"`
	K         int     `json:"k"`
	Threshold float64 `json:"threshold"`
}

// Query godoc
// @Summary Answer a question from the indexed documents
// @Tags query
// @Accept json
// @Produce json
// @Param body body queryRequest true "Query parameters"
// @Success 200 {object} rag.QueryResult
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /query [post]
func (h *Handler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	result, err := h.pipeline.Query(c.Request.Context(), req.Question, req.K, req.Threshold)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusOK, result)
}

type batchQueryRequest struct {
	Questions []string `json:"questions" binding:"required"`
	K         int      `json:"k"`
	Threshold float64  `json:"threshold"`
}

type batchQueryItem struct {
	Question   string       `json:"question"`
	Answer     string       `json:"answer,omitempty"`
	Sources    []rag.Source `json:"sources,omitempty"`
	NumSources int          `json:"numSources"`
	Error      string       `json:"error,omitempty"`
}

// BatchQuery godoc
// @Summary Answer multiple questions, preserving input order
// @Tags query
// @Accept json
// @Produce json
// @Param body body batchQueryRequest true "Batch query parameters"
// @Success 200 {array} batchQueryItem
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /query/batch [post]
func (h *Handler) BatchQuery(c *gin.Context) {
	var req batchQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}
	if len(req.Questions) == 0 {
		sendError(c, http.StatusBadRequest, errors.New("questions must not be empty"))
		return
	}

	results, err := h.pipeline.BatchQuery(c.Request.Context(), req.Questions, req.K, req.Threshold)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	items := make([]batchQueryItem, len(results))
	for i, res := range results {
		items[i] = batchQueryItem{
			Question:   res.Question,
			Answer:     res.Answer,
			Sources:    res.Sources,
			NumSources: res.NumSources,
		}
		if res.Err != nil {
			items[i].Error = res.Err.Error()
		}
	}
	sendJSON(c, http.StatusOK, items)
}

// Reset godoc
// @Summary Clear loaded documents and the indexed collection
// @Tags system
// @Success 204
// @Failure 500 {object} ErrorResponse
// @Router /reset [post]
func (h *Handler) Reset(c *gin.Context) {
	if err := h.pipeline.Reset(c.Request.Context()); err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetStats godoc
// @Summary Report pipeline statistics
// @Tags system
// @Produce json
// @Success 200 {object} rag.PipelineStats
// @Failure 500 {object} ErrorResponse
// @Router /stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.pipeline.Stats(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, stats)
}

// CheckHealth godoc
// @Summary Health check with collaborator reachability
// @Tags system
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /health [get]
func (h *Handler) CheckHealth(c *gin.Context) {
	status := http.StatusOK
	components := gin.H{}
	for name, check := range h.checks {
		if err := check(c.Request.Context()); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	sendJSON(c, status, gin.H{
		"status":     overall,
		"state":      h.pipeline.State().String(),
		"components": components,
	})
}
