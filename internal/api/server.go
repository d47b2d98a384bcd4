// Package api exposes run-now and run history over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"opsconsole/internal/config"
	"opsconsole/internal/models"
	"opsconsole/internal/syncs"
)

// Error codes
const (
	ErrorCodeValidation          = "VALIDATION_ERROR"
	ErrorCodeNotFound            = "NOT_FOUND"
	ErrorCodeMissingCredentials  = "MISSING_CREDENTIALS"
	ErrorCodeSyncFailed          = "SYNC_FAILED"
	ErrorCodeInternalServerError = "INTERNAL_SERVER_ERROR"
)

// List limits
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Syncer starts sync runs. *syncs.Runner implements it.
type Syncer interface {
	Run(ctx context.Context, kind, trigger string) (*syncs.Result, error)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Server serves the HTTP API.
type Server struct {
	syncer         Syncer
	db             *gorm.DB
	logger         *slog.Logger
	maxRunDuration time.Duration
}

// New returns a Server. maxRunDuration backs the stale filter of the run list.
func New(syncer Syncer, db *gorm.DB, logger *slog.Logger, maxRunDuration time.Duration) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRunDuration <= 0 {
		maxRunDuration = config.DefaultMaxRunDuration
	}
	return &Server{
		syncer:         syncer,
		db:             db,
		logger:         logger.With("component", "api"),
		maxRunDuration: maxRunDuration,
	}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", s.health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sync/:kind", s.sync)
		v1.GET("/runs", s.listRuns)
		v1.GET("/runs/:id", s.getRun)
		v1.GET("/status", s.status)
	}
	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

// RespondWithError sends a standardized JSON error response.
func RespondWithError(c *gin.Context, httpStatus int, code, message string, details any) {
	c.JSON(httpStatus, ErrorResponse{Code: code, Message: message, Details: details})
}

func (s *Server) health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		RespondWithError(c, http.StatusServiceUnavailable, ErrorCodeInternalServerError, "database unavailable", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// sync runs one kind and answers with its Result. A completed run with item
// errors is a 207.
func (s *Server) sync(c *gin.Context) {
	kind := c.Param("kind")
	if !syncs.IsKind(kind) {
		RespondWithError(c, http.StatusNotFound, ErrorCodeNotFound, "unknown sync kind", gin.H{"kind": kind, "kinds": syncs.Kinds})
		return
	}

	res, err := s.syncer.Run(c.Request.Context(), kind, models.TriggerAPI)
	var credErr *config.CredentialsError
	switch {
	case errors.As(err, &credErr):
		RespondWithError(c, http.StatusPreconditionFailed, ErrorCodeMissingCredentials, credErr.Error(),
			gin.H{"source": credErr.Source, "missing": credErr.Missing})
	case errors.Is(err, syncs.ErrUnknownKind):
		RespondWithError(c, http.StatusNotFound, ErrorCodeNotFound, err.Error(), nil)
	case err != nil || res == nil || res.Failed():
		msg := "sync failed"
		if err != nil {
			msg = err.Error()
		}
		RespondWithError(c, http.StatusInternalServerError, ErrorCodeSyncFailed, msg, res)
	case res.Partial():
		c.JSON(http.StatusMultiStatus, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}

func (s *Server) listRuns(c *gin.Context) {
	limit := DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			RespondWithError(c, http.StatusBadRequest, ErrorCodeValidation, "limit must be a positive integer", gin.H{"limit": raw})
			return
		}
		limit = min(n, MaxLimit)
	}
	stale, err := strconv.ParseBool(c.DefaultQuery("stale", "false"))
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, ErrorCodeValidation, "stale must be a boolean", nil)
		return
	}
	kind := c.Query("kind")
	if kind != "" && !syncs.IsKind(kind) {
		RespondWithError(c, http.StatusBadRequest, ErrorCodeValidation, "unknown sync kind", gin.H{"kind": kind})
		return
	}

	runs, err := syncs.ListRuns(c.Request.Context(), s.db, syncs.RunFilter{
		Kind:           kind,
		Status:         c.Query("status"),
		Stale:          stale,
		MaxRunDuration: s.maxRunDuration,
		Limit:          limit,
	})
	if err != nil {
		s.logger.Error("list runs failed", "error", err)
		RespondWithError(c, http.StatusInternalServerError, ErrorCodeInternalServerError, "failed to list runs", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (s *Server) getRun(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		RespondWithError(c, http.StatusBadRequest, ErrorCodeValidation, "invalid run id", gin.H{"id": c.Param("id")})
		return
	}

	run, err := syncs.GetRun(c.Request.Context(), s.db, uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		RespondWithError(c, http.StatusNotFound, ErrorCodeNotFound, "run not found", gin.H{"id": id})
		return
	}
	if err != nil {
		s.logger.Error("get run failed", "id", id, "error", err)
		RespondWithError(c, http.StatusInternalServerError, ErrorCodeInternalServerError, "failed to load run", nil)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) status(c *gin.Context) {
	overview, err := syncs.Overview(c.Request.Context(), s.db)
	if err != nil {
		s.logger.Error("status failed", "error", err)
		RespondWithError(c, http.StatusInternalServerError, ErrorCodeInternalServerError, "failed to load status", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kinds": overview})
}
