package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Model is the embedded base for all persisted entities
type Model struct {
	ID        string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate assigns a UUID primary key when none was provided
func (m *Model) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// User represents a platform user
type User struct {
	Model
	Username string `json:"username" gorm:"type:varchar(150);uniqueIndex;not null"`
	Email    string `json:"email" gorm:"type:varchar(254);uniqueIndex;not null"`
	Password string `json:"-" gorm:"not null"` // bcrypt hash, never exposed
	IsActive bool   `json:"is_active" gorm:"not null;default:true"`
}

// ProjectStatus represents the lifecycle state of a project
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "ACTIVE"
	ProjectArchived ProjectStatus = "ARCHIVED"
)

// Project represents a project within the platform
type Project struct {
	Model
	Title       string        `json:"title" gorm:"type:varchar(255);uniqueIndex;not null"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status" gorm:"type:varchar(20);not null;default:'ACTIVE'"`
}

// ProjectRole represents a member's role within a project
type ProjectRole string

const (
	RoleOwner  ProjectRole = "OWNER"
	RoleAdmin  ProjectRole = "ADMIN"
	RoleMember ProjectRole = "MEMBER"
)

// MembershipStatus represents the state of a membership
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "ACTIVE"
	MembershipInactive MembershipStatus = "INACTIVE"
)

// ProjectMembership represents an active membership of a user in a project
type ProjectMembership struct {
	Model
	UserID     string           `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_membership_user_project"`
	ProjectID  string           `json:"project_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_membership_user_project"`
	Role       ProjectRole      `json:"role" gorm:"type:varchar(20);not null;default:'MEMBER'"`
	Status     MembershipStatus `json:"status" gorm:"type:varchar(20);not null;default:'ACTIVE'"`
	DateJoined time.Time        `json:"date_joined"`
}

// InvitationStatus represents the state of a project invitation
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "PENDING"
	InvitationAccepted  InvitationStatus = "ACCEPTED"
	InvitationRejected  InvitationStatus = "REJECTED"
	InvitationCancelled InvitationStatus = "CANCELLED"
)

// ProjectInvitation represents an invitation for a user to join a project
type ProjectInvitation struct {
	Model
	UserID      string           `json:"user_id" gorm:"type:varchar(36);not null;index"`
	ProjectID   string           `json:"project_id" gorm:"type:varchar(36);not null;index"`
	Role        ProjectRole      `json:"role" gorm:"type:varchar(20);not null;default:'MEMBER'"`
	InvitedByID *string          `json:"invited_by" gorm:"type:varchar(36)"`
	Status      InvitationStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING'"`
	SentAt      time.Time        `json:"sent_at"`
	RespondedAt *time.Time       `json:"responded_at"`
}

// TaskStatus represents the workflow state of a task
type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
)

// Task represents a task within a project
type Task struct {
	Model
	ProjectID   string     `json:"project_id" gorm:"type:varchar(36);not null;index"`
	CreatorID   *string    `json:"creator" gorm:"type:varchar(36)"`
	AssigneeID  *string    `json:"assignee" gorm:"type:varchar(36)"`
	Title       string     `json:"title" gorm:"type:varchar(255);not null"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status" gorm:"type:varchar(20);not null;default:'TODO'"`
	DueDate     *time.Time `json:"due_date"`
}

// Comment represents a comment on a task
type Comment struct {
	Model
	TaskID   string `json:"task_id" gorm:"type:varchar(36);not null;index"`
	AuthorID string `json:"author" gorm:"type:varchar(36);not null"`
	Content  string `json:"content" gorm:"not null"`
}
