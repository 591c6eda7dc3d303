package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskwire/taskwire/internal/apiserver/database"
	"github.com/taskwire/taskwire/internal/apiserver/middleware"
	"github.com/taskwire/taskwire/internal/common/dto"
	"go.uber.org/zap"
)

// Project handles project and membership endpoints
type Project struct {
	db     database.Database
	logger *zap.Logger
}

// NewProject creates the project handler
func NewProject(db database.Database, logger *zap.Logger) *Project {
	return &Project{
		db:     db,
		logger: logger.Named("handler.project"),
	}
}

// requireMember aborts with 403 unless the requester is an active member
// of the project. Returns the requester's user ID.
func requireMember(c *gin.Context, db database.Database) (string, bool) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	projectID := c.Param("project_id")
	isMember, err := db.IsProjectMember(c.Request.Context(), claims.UserID, projectID)
	if err != nil || !isMember {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not a project member"})
		return "", false
	}
	return claims.UserID, true
}

// List returns the projects the requester belongs to
func (h *Project) List(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	projects, err := h.db.ListProjectsForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("failed to list projects", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, projects)
}

// Create creates a project owned by the requester
func (h *Project) Create(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project := &database.Project{
		Title:       req.Title,
		Description: req.Description,
		Status:      database.ProjectActive,
	}
	if err := h.db.CreateProject(c.Request.Context(), project, claims.UserID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "project title already taken"})
		return
	}

	h.logger.Info("project created",
		zap.String("project", project.ID),
		zap.String("owner", claims.UserID))
	c.JSON(http.StatusCreated, project)
}

// Get returns a single project the requester is a member of
func (h *Project) Get(c *gin.Context) {
	if _, ok := requireMember(c, h.db); !ok {
		return
	}

	project, err := h.db.GetProject(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, project)
}

// Invite creates a pending invitation for an existing user
func (h *Project) Invite(c *gin.Context) {
	inviterID, ok := requireMember(c, h.db)
	if !ok {
		return
	}

	var req dto.InviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	invitee, err := h.db.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	role := database.ProjectRole(req.Role)
	if role != database.RoleAdmin && role != database.RoleMember {
		role = database.RoleMember
	}

	invitation := &database.ProjectInvitation{
		UserID:      invitee.ID,
		ProjectID:   c.Param("project_id"),
		Role:        role,
		InvitedByID: &inviterID,
		Status:      database.InvitationPending,
	}
	if err := h.db.CreateInvitation(c.Request.Context(), invitation); err != nil {
		h.logger.Error("failed to create invitation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, invitation)
}

// ListInvitations returns the requester's pending invitations
func (h *Project) ListInvitations(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	invitations, err := h.db.ListInvitationsForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, invitations)
}

// RespondInvitation accepts, rejects, or cancels a pending invitation.
// Accepting creates the active membership in the same transaction.
func (h *Project) RespondInvitation(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	invitation, err := h.db.GetInvitation(c.Request.Context(), c.Param("invite_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "invitation not found"})
		return
	}
	if invitation.Status != database.InvitationPending {
		c.JSON(http.StatusConflict, gin.H{"error": "invitation already responded to"})
		return
	}

	action := c.Param("action")
	switch action {
	case "accept", "reject":
		// Only the invitee may respond
		if invitation.UserID != claims.UserID {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your invitation"})
			return
		}
	case "cancel":
		// Only the inviter may cancel
		if invitation.InvitedByID == nil || *invitation.InvitedByID != claims.UserID {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the inviter can cancel"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}

	now := time.Now()
	err = h.db.Transaction(c.Request.Context(), func(ctx context.Context) error {
		switch action {
		case "accept":
			if err := h.db.AddProjectMember(ctx, &database.ProjectMembership{
				UserID:     invitation.UserID,
				ProjectID:  invitation.ProjectID,
				Role:       invitation.Role,
				Status:     database.MembershipActive,
				DateJoined: now,
			}); err != nil && !errors.Is(err, database.ErrAlreadyMember) {
				return err
			}
			invitation.Status = database.InvitationAccepted
		case "reject":
			invitation.Status = database.InvitationRejected
		case "cancel":
			invitation.Status = database.InvitationCancelled
		}
		invitation.RespondedAt = &now
		return h.db.UpdateInvitation(ctx, invitation)
	})
	if err != nil {
		h.logger.Error("failed to respond to invitation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, invitation)
}
