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

// Comment handles task comment endpoints
type Comment struct {
	db     database.Database
	relay  *realtime.Relay
	logger *zap.Logger
}

// NewComment creates the comment handler
func NewComment(db database.Database, relay *realtime.Relay, logger *zap.Logger) *Comment {
	return &Comment{
		db:     db,
		relay:  relay,
		logger: logger.Named("handler.comment"),
	}
}

// List returns the comments of a task in chronological order
func (h *Comment) List(c *gin.Context) {
	if _, ok := requireMember(c, h.db); !ok {
		return
	}

	// Verify the task belongs to this project
	if _, err := h.db.GetTask(c.Request.Context(), c.Param("project_id"), c.Param("task_id")); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	comments, err := h.db.ListComments(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		h.logger.Error("failed to list comments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, comments)
}

// Create adds a comment and broadcasts comment_added to the project group
func (h *Comment) Create(c *gin.Context) {
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

	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment := &database.Comment{
		TaskID:   task.ID,
		AuthorID: userID,
		Content:  req.Content,
	}
	if err := h.db.CreateComment(c.Request.Context(), comment); err != nil {
		h.logger.Error("failed to create comment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	h.relay.Publish(c.Request.Context(), projectID, realtime.EventCommentAdded, comment)
	c.JSON(http.StatusCreated, comment)
}
