package database

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyMember is returned when a membership already exists
	ErrAlreadyMember = errors.New("user is already a project member")
)

// Database defines the methods for persistence operations.
type Database interface {
	// Close closes the database connection.
	Close() error

	// Transaction runs fn inside a transaction; the callback context must
	// be used for all database calls made within fn.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	// CreateUser creates a new user.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByUsername returns the user with the given username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserByID returns the user with the given id.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// CreateProject creates a project and an OWNER membership for ownerID.
	CreateProject(ctx context.Context, project *Project, ownerID string) error

	// GetProject returns the project with the given id.
	GetProject(ctx context.Context, id string) (*Project, error)

	// ListProjectsForUser returns all projects the user is an active member of.
	ListProjectsForUser(ctx context.Context, userID string) ([]*Project, error)

	// AddProjectMember records an active membership.
	AddProjectMember(ctx context.Context, membership *ProjectMembership) error

	// IsProjectMember reports whether the user holds an active membership
	// in the project. A missing project or user yields (false, nil).
	IsProjectMember(ctx context.Context, userID, projectID string) (bool, error)

	// ListProjectMembers returns the active memberships of a project.
	ListProjectMembers(ctx context.Context, projectID string) ([]*ProjectMembership, error)

	// CreateInvitation creates a pending project invitation.
	CreateInvitation(ctx context.Context, invitation *ProjectInvitation) error

	// GetInvitation returns the invitation with the given id.
	GetInvitation(ctx context.Context, id string) (*ProjectInvitation, error)

	// UpdateInvitation persists invitation state changes.
	UpdateInvitation(ctx context.Context, invitation *ProjectInvitation) error

	// ListInvitationsForUser returns pending invitations addressed to the user.
	ListInvitationsForUser(ctx context.Context, userID string) ([]*ProjectInvitation, error)

	// CreateTask creates a task.
	CreateTask(ctx context.Context, task *Task) error

	// GetTask returns the task with the given id scoped to a project.
	GetTask(ctx context.Context, projectID, taskID string) (*Task, error)

	// UpdateTask persists task changes.
	UpdateTask(ctx context.Context, task *Task) error

	// DeleteTask soft-deletes a task.
	DeleteTask(ctx context.Context, projectID, taskID string) error

	// ListTasks returns the tasks of a project.
	ListTasks(ctx context.Context, projectID string) ([]*Task, error)

	// CreateComment creates a comment on a task.
	CreateComment(ctx context.Context, comment *Comment) error

	// ListComments returns the comments of a task in chronological order.
	ListComments(ctx context.Context, taskID string) ([]*Comment, error)
}
