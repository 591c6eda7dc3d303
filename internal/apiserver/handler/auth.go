package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskwire/taskwire/internal/apiserver/database"
	"github.com/taskwire/taskwire/internal/auth/jwt"
	"github.com/taskwire/taskwire/internal/common/dto"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Auth handles registration and login
type Auth struct {
	db         database.Database
	jwtService *jwt.Service
	logger     *zap.Logger
}

// NewAuth creates the authentication handler
func NewAuth(db database.Database, jwtService *jwt.Service, logger *zap.Logger) *Auth {
	return &Auth{
		db:         db,
		jwtService: jwtService,
		logger:     logger.Named("handler.auth"),
	}
}

// Register handles user registration
func (h *Auth) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	user := &database.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashed),
		IsActive: true,
	}
	if err := h.db.CreateUser(c.Request.Context(), user); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username or email already taken"})
		return
	}

	h.logger.Info("user registered", zap.String("user", user.ID), zap.String("username", user.Username))
	c.JSON(http.StatusCreated, dto.UserInfo{ID: user.ID, Username: user.Username, Email: user.Email})
}

// Login handles user login and issues a JWT
func (h *Auth) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.db.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			h.logger.Error("failed to look up user", zap.Error(err))
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	if !user.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "user is disabled"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	token, err := h.jwtService.GenerateToken(user.ID, user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Token: token,
		User:  dto.UserInfo{ID: user.ID, Username: user.Username, Email: user.Email},
	})
}
