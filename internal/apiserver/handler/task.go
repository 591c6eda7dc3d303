package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskwire/taskwire/internal/apiserver/database"
	"github.com/taskwire/taskwire/internal/common/dto"
	"github.com/taskwire/taskwire/internal/realtime"
	"go.uber.org/zap"
)

// Task handles task endpoints. Mutations publish an event to the
// project's group after the write has committed.
type Task struct {
	db     database.Database
	relay  *realtime.Relay
	logger *zap.Logger
}

// NewTask creates the task handler
func NewTask(db database.Database, relay *realtime.Relay, logger *zap.Logger) *Task {
	return &Task{
		db:     db,
		relay:  relay,
		logger: logger.Named("handler.task"),
	}
}

// List returns the tasks of a project
func (h *Task) List(c *gin.Context) {
	if _, ok := requireMember(c, h.db); !ok {
		return
	}

	tasks, err := h.db.ListTasks(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		h.logger.Error("failed to list tasks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// Create creates a task and broadcasts task_created to the project group
func (h *Task) Create(c *gin.Context) {
	userID, ok := requireMember(c, h.db)
	if !ok {
		return
	}

	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	projectID := c.Param("project_id")
	task := &database.Task{
		ProjectID:   projectID,
		CreatorID:   &userID,
		AssigneeID:  req.AssigneeID,
		Title:       req.Title,
		Description: req.Description,
		Status:      database.TaskTodo,
		DueDate:     req.DueDate,
	}
	if err := h.db.CreateTask(c.Request.Context(), task); err != nil {
		h.logger.Error("failed to create task", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	h.relay.Publish(c.Request.Context(), projectID, realtime.EventTaskCreated, task)
	c.JSON(http.StatusCreated, task)
}

// Get returns a single task
func (h *Task) Get(c *gin.Context) {
	if _, ok := requireMember(c, h.db); !ok {
		return
	}

	task, err := h.db.GetTask(c.Request.Context(), c.Param("project_id"), c.Param("task_id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// Update applies a partial update and broadcasts task_updated. Only the
// task's creator or assignee may update it.
func (h *Task) Update(c *gin.Context) {
	userID, ok := requireMember(c, h.db)
	if !ok {
		return
	}

	projectID := c.Param("project_id")
	task, err := h.db.GetTask(c.Request.Context(), projectID, c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	allowed := (task.CreatorID != nil && *task.CreatorID == userID) ||
		(task.AssigneeID != nil && *task.AssigneeID == userID)
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not allowed to update this task"})
		return
	}

	var req dto.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		status := database.TaskStatus(*req.Status)
		if status != database.TaskTodo && status != database.TaskInProgress && status != database.TaskDone {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task status"})
			return
		}
		task.Status = status
	}
	if req.AssigneeID != nil {
		task.AssigneeID = req.AssigneeID
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}

	if err := h.db.UpdateTask(c.Request.Context(), task); err != nil {
		h.logger.Error("failed to update task", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	h.relay.Publish(c.Request.Context(), projectID, realtime.EventTaskUpdated, task)
	c.JSON(http.StatusOK, task)
}

// Delete soft-deletes a task
func (h *Task) Delete(c *gin.Context) {
	if _, ok := requireMember(c, h.db); !ok {
		return
	}

	err := h.db.DeleteTask(c.Request.Context(), c.Param("project_id"), c.Param("task_id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}
