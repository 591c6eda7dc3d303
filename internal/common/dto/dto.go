package dto

import "time"

// InboundMessage is the client-to-server websocket message schema.
// Type discriminates; unknown types are ignored server-side.
type InboundMessage struct {
	Type    string  `json:"type"`
	Content string  `json:"content"`
	TaskID  *string `json:"task_id"`
}

// UserInfo is the public shape of a user
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// RegisterRequest is the payload for user registration
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=150"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest is the payload for user login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued token and user info
type LoginResponse struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

// CreateProjectRequest is the payload for project creation
type CreateProjectRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description"`
}

// InviteMemberRequest is the payload for inviting a user to a project
type InviteMemberRequest struct {
	Username string `json:"username" binding:"required"`
	Role     string `json:"role"`
}

// CreateTaskRequest is the payload for task creation
type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required,max=255"`
	Description string     `json:"description"`
	AssigneeID  *string    `json:"assignee"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateTaskRequest is the payload for a partial task update
type UpdateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	AssigneeID  *string    `json:"assignee"`
	DueDate     *time.Time `json:"due_date"`
}

// CreateCommentRequest is the payload for commenting on a task
type CreateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}
