package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"tasksync/internal/service"
	"tasksync/internal/wire"
)

// Request bodies.

type addRequest struct {
	Text  string `json:"text"`
	Group string `json:"group"`
}

type editRequest struct {
	Text string `json:"text"`
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

type selectRequest struct {
	TaskID *string `json:"taskId"`
}

type moveRequest struct {
	Target *int `json:"target"`
}

// Response bodies.

// TaskResponse is returned by calls that affect a single task.
type TaskResponse struct {
	OK   bool         `json:"ok"`
	Task service.Task `json:"task"`
}

// ToggleNextResponse names the task that was toggled.
type ToggleNextResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// DeleteResponse carries the text of the deleted task.
type DeleteResponse struct {
	OK   bool   `json:"ok"`
	Text string `json:"text"`
}

// EditResponse carries the text before and after the edit.
type EditResponse struct {
	OK      bool   `json:"ok"`
	OldText string `json:"oldText"`
	NewText string `json:"newText"`
}

// OKResponse acknowledges calls with nothing else to report.
type OKResponse struct {
	OK bool `json:"ok"`
}

// HealthResponse is served on /healthz.
type HealthResponse struct {
	OK       bool `json:"ok"`
	Tasks    int  `json:"tasks"`
	Channels int  `json:"channels"`
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondError(c, fmt.Errorf("%w: %v", service.ErrInvalidArgument, err))
		return false
	}
	return true
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		OK:       true,
		Tasks:    len(s.store.Snapshot().Items),
		Channels: s.hub.Count(),
	})
}

func (s *Server) handlePush(c *gin.Context) {
	s.hub.Serve(c.Writer, c.Request, func() ([]byte, error) {
		return wire.Encode(s.store.Snapshot(), wire.SourceWS)
	})
}

func (s *Server) handleList(c *gin.Context) {
	items, err := s.store.List()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, wire.FromSnapshot(s.store.Snapshot(), wire.SourcePull))
}

func (s *Server) handleAdd(c *gin.Context) {
	var req addRequest
	if !bind(c, &req) {
		return
	}
	task, err := s.store.Add(req.Text, req.Group)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, TaskResponse{OK: true, Task: task})
}

func (s *Server) handleToggle(c *gin.Context) {
	task, err := s.store.Toggle(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, TaskResponse{OK: true, Task: task})
}

func (s *Server) handleToggleNext(c *gin.Context) {
	task, err := s.store.ToggleNext()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ToggleNextResponse{OK: true, ID: task.ID})
}

func (s *Server) handleDelete(c *gin.Context) {
	task, err := s.store.Delete(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DeleteResponse{OK: true, Text: task.Text})
}

func (s *Server) handleEdit(c *gin.Context) {
	var req editRequest
	if !bind(c, &req) {
		return
	}
	old, updated, err := s.store.Edit(c.Param("id"), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, EditResponse{OK: true, OldText: old.Text, NewText: updated.Text})
}

func (s *Server) handleReset(c *gin.Context) {
	var req resetRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	if !req.Confirm {
		respondError(c, fmt.Errorf("%w: reset requires confirm", service.ErrInvalidArgument))
		return
	}
	s.store.Reset()
	c.JSON(http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleSelect(c *gin.Context) {
	var req selectRequest
	if !bind(c, &req) {
		return
	}
	id := ""
	if req.TaskID != nil {
		id = *req.TaskID
	}
	if err := s.store.Select(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleMoveUp(c *gin.Context) {
	s.respondMove(c, s.store.MoveUp(c.Param("id")))
}

func (s *Server) handleMoveDown(c *gin.Context) {
	s.respondMove(c, s.store.MoveDown(c.Param("id")))
}

func (s *Server) handleMoveTo(c *gin.Context) {
	var req moveRequest
	if !bind(c, &req) {
		return
	}
	if req.Target == nil || *req.Target < 0 {
		respondError(c, fmt.Errorf("%w: target must be a non-negative integer", service.ErrInvalidArgument))
		return
	}
	s.respondMove(c, s.store.MoveTo(c.Param("id"), *req.Target))
}

func (s *Server) respondMove(c *gin.Context, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, OKResponse{OK: true})
}
