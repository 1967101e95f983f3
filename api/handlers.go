package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Server bundles dependencies for HTTP handlers.
type Server struct {
	store  TaskStore
	logger *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(store TaskStore, logger *slog.Logger) *Server {
	return &Server{store: store, logger: logger}
}

// RegisterRoutes attaches the scan handlers to the provided router group.
func (s *Server) RegisterRoutes(routes gin.IRoutes) {
	routes.POST("/scans", s.createScanHandler)
	routes.GET("/scans/:id", s.getScanHandler)
}

var uuidV4Pattern = regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-4[a-fA-F0-9]{3}-[abAB89][a-fA-F0-9]{3}-[a-fA-F0-9]{12}$`)

// @Summary      Create a new scan task
// @Description  Validate a single-target scan, persist it and queue it for a background worker. Poll GET /scans/{id} for the report.
// @Tags         Scans
// @Accept       json
// @Produce      json
// @Param        scanRequest  body      CreateScanRequest     true  "Scan request parameters"
// @Success      202          {object}  ScanAcceptedResponse  "Scan accepted"
// @Failure      400          {object}  ErrorResponse         "Malformed body or invalid port range"
// @Failure      401          {object}  ErrorResponse         "Missing or incorrect API key"
// @Failure      429          {object}  ErrorResponse         "Rate limit exceeded"
// @Failure      500          {object}  ErrorResponse         "Task could not be persisted or queued"
// @Security     ApiKeyAuth
// @Router       /scans [post]
func (s *Server) createScanHandler(c *gin.Context) {
	var req CreateScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request payload: " + err.Error()})
		return
	}
	req.Host = strings.TrimSpace(req.Host)
	if req.Host == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "host must not be empty"})
		return
	}
	if err := validatePorts(req.Ports); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	taskID, err := generateUUID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to generate task id"})
		return
	}

	task := &ScanTask{
		ID:          taskID,
		Status:      StatusPending,
		Host:        req.Host,
		Ports:       strings.TrimSpace(req.Ports),
		Concurrency: req.Concurrency,
		TimeoutMs:   req.TimeoutMs,
		Banner:      req.Banner,
		CreatedAt:   time.Now().UTC(),
	}

	ctx := c.Request.Context()
	if err := s.store.CreateTask(ctx, task); err != nil {
		s.logger.Error("failed to persist task", "task_id", task.ID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to persist task"})
		return
	}

	if err := s.store.PushToQueue(ctx, task.ID); err != nil {
		s.logger.Error("failed to queue task", "task_id", task.ID, "error", err)
		task.Status = StatusFailed
		task.Error = "failed to queue task"
		now := time.Now().UTC()
		task.CompletedAt = &now
		_ = s.store.UpdateTask(ctx, task)

		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to queue task"})
		return
	}

	c.JSON(http.StatusAccepted, ScanAcceptedResponse{ID: task.ID, Status: task.Status})
}

// @Summary      Get scan status and report
// @Description  Return the task snapshot. The report is attached once the status is completed; failed tasks carry an error.
// @Tags         Scans
// @Produce      json
// @Param        id   path      string         true  "Scan Task ID (UUID v4)"
// @Success      200  {object}  ScanTask       "Current task snapshot"
// @Failure      400  {object}  ErrorResponse  "Malformed task identifier"
// @Failure      401  {object}  ErrorResponse  "Missing or incorrect API key"
// @Failure      404  {object}  ErrorResponse  "Unknown task"
// @Failure      429  {object}  ErrorResponse  "Rate limit exceeded"
// @Failure      500  {object}  ErrorResponse  "Task could not be loaded"
// @Security     ApiKeyAuth
// @Router       /scans/{id} [get]
func (s *Server) getScanHandler(c *gin.Context) {
	id := c.Param("id")
	if !uuidV4Pattern.MatchString(id) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid task id format"})
		return
	}
	task, err := s.store.GetTask(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "task not found"})
			return
		}
		s.logger.Error("failed to load task", "task_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load task"})
		return
	}

	c.JSON(http.StatusOK, task)
}

// @Summary      Liveness and store health
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  ErrorResponse
// @Router       /healthz [get]
func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
