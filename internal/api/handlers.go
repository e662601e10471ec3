package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"homekeep/internal/date"
	"homekeep/internal/engine"
	"homekeep/internal/storage"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// TaskResponse is a task plus its due status as of the server's today.
type TaskResponse struct {
	storage.Task
	Status engine.DueStatus `json:"status"`
}

type CreateTaskRequest struct {
	Name          string     `json:"name"`
	Description   *string    `json:"description"`
	FrequencyDays int        `json:"frequency_days"`
	NextDueDate   *date.Date `json:"next_due_date"`
}

type CompleteTaskRequest struct {
	Notes       *string    `json:"notes"`
	CompletedOn *date.Date `json:"completed_on"`
}

type CompleteTaskResponse struct {
	Event storage.Completion `json:"event"`
	Task  TaskResponse       `json:"task"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.svc.ListTasks(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.taskResponses(tasks))
}

func (s *Server) handleDueTasks(c *gin.Context) {
	tasks, err := s.svc.DueTasks(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.taskResponses(tasks))
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	task, err := s.svc.CreateTask(c.Request.Context(), engine.CreateTaskInput{
		Name:          req.Name,
		Description:   req.Description,
		FrequencyDays: req.FrequencyDays,
		NextDueDate:   req.NextDueDate,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.taskResponse(*task))
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.svc.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.taskResponse(*task))
}

func (s *Server) handleCompleteTask(c *gin.Context) {
	var req CompleteTaskRequest
	// The body is optional: an empty POST completes the task today.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	res, err := s.svc.Complete(c.Request.Context(), c.Param("id"), engine.CompleteInput{
		Notes:       req.Notes,
		CompletedOn: req.CompletedOn,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, CompleteTaskResponse{
		Event: res.Event,
		Task:  s.taskResponse(res.Task),
	})
}

func (s *Server) handleTaskHistory(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		s.writeError(c, err)
		return
	}
	pageSize, err := queryInt(c, "page_size", 0)
	if err != nil {
		s.writeError(c, err)
		return
	}

	hp, err := s.svc.HistoryPage(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hp)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, engine.ValidationError{Field: key, Message: "must be an integer"}
	}
	return n, nil
}

func (s *Server) taskResponse(t storage.Task) TaskResponse {
	return TaskResponse{Task: t, Status: s.svc.Status(t)}
}

func (s *Server) taskResponses(tasks []storage.Task) []TaskResponse {
	today := s.svc.Today()
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskResponse{Task: t, Status: engine.ComputeStatus(t, today)})
	}
	return out
}

func (s *Server) writeError(c *gin.Context, err error) {
	var (
		ve engine.ValidationError
		nf engine.NotFoundError
		cc engine.ConcurrencyConflict
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ve.Error(), Field: ve.Field})
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.As(err, &cc):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "task is busy, try again"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
