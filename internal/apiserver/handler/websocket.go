package handler

import (
	"context"

	"github.com/taskwire/taskwire/internal/apiserver/database"
	"github.com/taskwire/taskwire/internal/auth/jwt"
	"github.com/taskwire/taskwire/internal/common/config"
	"github.com/taskwire/taskwire/internal/realtime"
	"github.com/taskwire/taskwire/pkg/metrics"
	"go.uber.org/zap"
)

// jwtTokenValidator adapts the JWT service to the session handshake
type jwtTokenValidator struct {
	svc *jwt.Service
}

func (v *jwtTokenValidator) Validate(token string) (realtime.Identity, error) {
	claims, err := v.svc.ValidateToken(token)
	if err != nil {
		return realtime.Identity{}, err
	}
	return realtime.Identity{UserID: claims.UserID, Username: claims.Username}, nil
}

// dbMembership adapts the database membership query. Fail-closed: a
// query error denies access rather than propagating.
type dbMembership struct {
	db     database.Database
	logger *zap.Logger
}

func (m *dbMembership) IsMember(ctx context.Context, userID, projectID string) bool {
	if userID == "" || projectID == "" {
		return false
	}
	ok, err := m.db.IsProjectMember(ctx, userID, projectID)
	if err != nil {
		m.logger.Error("membership check failed, denying",
			zap.String("user", userID),
			zap.String("project", projectID),
			zap.Error(err))
		return false
	}
	return ok
}

// NewWebSocket wires the realtime session handler to the JWT service
// and membership store
func NewWebSocket(logger *zap.Logger, registry *realtime.Registry, jwtService *jwt.Service, db database.Database, m *metrics.Metrics, cfg config.WebSocketConfig) *realtime.SessionHandler {
	return realtime.NewSessionHandler(
		logger,
		registry,
		&jwtTokenValidator{svc: jwtService},
		&dbMembership{db: db, logger: logger.Named("membership")},
		m,
		cfg,
	)
}
