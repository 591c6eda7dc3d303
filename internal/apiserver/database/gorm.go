package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// gormDB is the driver-independent implementation of Database. The
// per-driver constructors differ only in how the *gorm.DB is opened.
type gormDB struct {
	db *gorm.DB
}

func newGormDB(db *gorm.DB) (*gormDB, error) {
	if err := db.AutoMigrate(
		&User{},
		&Project{},
		&ProjectMembership{},
		&ProjectInvitation{},
		&Task{},
		&Comment{},
	); err != nil {
		return nil, err
	}
	return &gormDB{db: db}, nil
}

func (g *gormDB) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *gormDB) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(withTx(ctx, tx))
	})
}

func (g *gormDB) CreateUser(ctx context.Context, user *User) error {
	return conn(ctx, g.db).Create(user).Error
}

func (g *gormDB) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := conn(ctx, g.db).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &user, err
}

func (g *gormDB) GetUserByID(ctx context.Context, id string) (*User, error) {
	var user User
	err := conn(ctx, g.db).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &user, err
}

func (g *gormDB) CreateProject(ctx context.Context, project *Project, ownerID string) error {
	return conn(ctx, g.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return err
		}
		membership := &ProjectMembership{
			UserID:     ownerID,
			ProjectID:  project.ID,
			Role:       RoleOwner,
			Status:     MembershipActive,
			DateJoined: time.Now(),
		}
		return tx.Create(membership).Error
	})
}

func (g *gormDB) GetProject(ctx context.Context, id string) (*Project, error) {
	var project Project
	err := conn(ctx, g.db).Where("id = ?", id).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &project, err
}

func (g *gormDB) ListProjectsForUser(ctx context.Context, userID string) ([]*Project, error) {
	var projects []*Project
	err := conn(ctx, g.db).
		Joins("JOIN project_memberships ON project_memberships.project_id = projects.id").
		Where("project_memberships.user_id = ? AND project_memberships.status = ? AND project_memberships.deleted_at IS NULL",
			userID, MembershipActive).
		Find(&projects).Error
	return projects, err
}

func (g *gormDB) AddProjectMember(ctx context.Context, membership *ProjectMembership) error {
	db := conn(ctx, g.db)

	var count int64
	if err := db.Model(&ProjectMembership{}).
		Where("user_id = ? AND project_id = ?", membership.UserID, membership.ProjectID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrAlreadyMember
	}

	if membership.DateJoined.IsZero() {
		membership.DateJoined = time.Now()
	}
	return db.Create(membership).Error
}

func (g *gormDB) IsProjectMember(ctx context.Context, userID, projectID string) (bool, error) {
	var count int64
	err := conn(ctx, g.db).Model(&ProjectMembership{}).
		Where("user_id = ? AND project_id = ? AND status = ?", userID, projectID, MembershipActive).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (g *gormDB) ListProjectMembers(ctx context.Context, projectID string) ([]*ProjectMembership, error) {
	var memberships []*ProjectMembership
	err := conn(ctx, g.db).
		Where("project_id = ? AND status = ?", projectID, MembershipActive).
		Find(&memberships).Error
	return memberships, err
}

func (g *gormDB) CreateInvitation(ctx context.Context, invitation *ProjectInvitation) error {
	if invitation.SentAt.IsZero() {
		invitation.SentAt = time.Now()
	}
	return conn(ctx, g.db).Create(invitation).Error
}

func (g *gormDB) GetInvitation(ctx context.Context, id string) (*ProjectInvitation, error) {
	var invitation ProjectInvitation
	err := conn(ctx, g.db).Where("id = ?", id).First(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &invitation, err
}

func (g *gormDB) UpdateInvitation(ctx context.Context, invitation *ProjectInvitation) error {
	return conn(ctx, g.db).Save(invitation).Error
}

func (g *gormDB) ListInvitationsForUser(ctx context.Context, userID string) ([]*ProjectInvitation, error) {
	var invitations []*ProjectInvitation
	err := conn(ctx, g.db).
		Where("user_id = ? AND status = ?", userID, InvitationPending).
		Order("sent_at asc").
		Find(&invitations).Error
	return invitations, err
}

func (g *gormDB) CreateTask(ctx context.Context, task *Task) error {
	return conn(ctx, g.db).Create(task).Error
}

func (g *gormDB) GetTask(ctx context.Context, projectID, taskID string) (*Task, error) {
	var task Task
	err := conn(ctx, g.db).
		Where("id = ? AND project_id = ?", taskID, projectID).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &task, err
}

func (g *gormDB) UpdateTask(ctx context.Context, task *Task) error {
	return conn(ctx, g.db).Save(task).Error
}

func (g *gormDB) DeleteTask(ctx context.Context, projectID, taskID string) error {
	result := conn(ctx, g.db).
		Where("id = ? AND project_id = ?", taskID, projectID).
		Delete(&Task{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *gormDB) ListTasks(ctx context.Context, projectID string) ([]*Task, error) {
	var tasks []*Task
	err := conn(ctx, g.db).
		Where("project_id = ?", projectID).
		Order("created_at asc").
		Find(&tasks).Error
	return tasks, err
}

func (g *gormDB) CreateComment(ctx context.Context, comment *Comment) error {
	return conn(ctx, g.db).Create(comment).Error
}

func (g *gormDB) ListComments(ctx context.Context, taskID string) ([]*Comment, error) {
	var comments []*Comment
	err := conn(ctx, g.db).
		Where("task_id = ?", taskID).
		Order("created_at asc").
		Find(&comments).Error
	return comments, err
}
