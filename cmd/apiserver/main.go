package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/taskwire/taskwire/internal/apiserver/database"
	"github.com/taskwire/taskwire/internal/apiserver/handler"
	"github.com/taskwire/taskwire/internal/apiserver/middleware"
	"github.com/taskwire/taskwire/internal/auth/jwt"
	"github.com/taskwire/taskwire/internal/common/config"
	"github.com/taskwire/taskwire/internal/realtime"
	"github.com/taskwire/taskwire/pkg/logger"
	"github.com/taskwire/taskwire/pkg/metrics"
	"github.com/taskwire/taskwire/pkg/version"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of apiserver",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("apiserver version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "apiserver",
		Short: "Taskwire API Server",
		Long:  `Taskwire API Server provides the project/task API and real-time updates`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "configs/apiserver.yaml", "path to configuration file")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	cfg, err := config.LoadConfig[config.APIServerConfig](configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %v", configPath, err)
	}

	zlog, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	zlog.Info("starting apiserver", zap.String("version", version.Get()))

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	if err := seedSuperAdmin(db, &cfg.SuperAdmin, zlog); err != nil {
		zlog.Fatal("failed to seed super admin", zap.Error(err))
	}

	jwtService, err := jwt.NewService(jwt.Config{
		SecretKey: cfg.JWT.SecretKey,
		Duration:  cfg.JWT.Duration,
	})
	if err != nil {
		zlog.Fatal("failed to create JWT service", zap.Error(err))
	}

	m := metrics.New("taskwire")
	registry := realtime.NewRegistry(zlog, m)

	var bridge realtime.Bridge
	if cfg.Notifier.Type == "redis" {
		rb, err := realtime.NewRedisBridge(zlog, &cfg.Notifier.Redis)
		if err != nil {
			zlog.Fatal("failed to connect event bridge", zap.Error(err))
		}
		defer func() { _ = rb.Close() }()
		bridge = rb
	}
	relay := realtime.NewRelay(zlog, registry, bridge, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := relay.Run(ctx); err != nil {
			zlog.Error("event relay stopped", zap.Error(err))
		}
	}()

	router := buildRouter(cfg, zlog, db, jwtService, registry, relay, m)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		zlog.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down")

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	// Close live websocket sessions first so each runs its normal
	// leave-and-release teardown before the listener goes away.
	registry.CloseAll()
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("http server shutdown failed", zap.Error(err))
	}
	zlog.Info("apiserver stopped")
}

func buildRouter(cfg *config.APIServerConfig, zlog *zap.Logger, db database.Database, jwtService *jwt.Service, registry *realtime.Registry, relay *realtime.Relay, m *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), m.Middleware())

	authHandler := handler.NewAuth(db, jwtService, zlog)
	projectHandler := handler.NewProject(db, zlog)
	taskHandler := handler.NewTask(db, relay, zlog)
	commentHandler := handler.NewComment(db, relay, zlog)
	wsHandler := handler.NewWebSocket(zlog, registry, jwtService, db, m, cfg.WebSocket)

	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api/v1")
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("", middleware.JWTAuthMiddleware(jwtService))
	authed.GET("/projects", projectHandler.List)
	authed.POST("/projects", projectHandler.Create)
	authed.GET("/projects/:project_id", projectHandler.Get)
	authed.POST("/projects/:project_id/invitations", projectHandler.Invite)
	authed.GET("/invitations", projectHandler.ListInvitations)
	authed.POST("/invitations/:invite_id/:action", projectHandler.RespondInvitation)

	authed.GET("/projects/:project_id/tasks", taskHandler.List)
	authed.POST("/projects/:project_id/tasks", taskHandler.Create)
	authed.GET("/projects/:project_id/tasks/:task_id", taskHandler.Get)
	authed.PATCH("/projects/:project_id/tasks/:task_id", taskHandler.Update)
	authed.DELETE("/projects/:project_id/tasks/:task_id", taskHandler.Delete)

	authed.GET("/projects/:project_id/tasks/:task_id/comments", commentHandler.List)
	authed.POST("/projects/:project_id/tasks/:task_id/comments", commentHandler.Create)

	// Websocket auth happens inside the handshake, not via middleware
	router.GET("/ws/projects/:project_id", wsHandler.HandleProjectSocket)

	return router
}

func seedSuperAdmin(db database.Database, cfg *config.SuperAdminConfig, zlog *zap.Logger) error {
	if cfg.Username == "" || cfg.Password == "" {
		return nil
	}

	ctx := context.Background()
	if _, err := db.GetUserByUsername(ctx, cfg.Username); err == nil {
		return nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	email := cfg.Email
	if email == "" {
		email = cfg.Username + "@localhost"
	}
	if err := db.CreateUser(ctx, &database.User{
		Username: cfg.Username,
		Email:    email,
		Password: string(hashed),
		IsActive: true,
	}); err != nil {
		return err
	}
	zlog.Info("super admin created", zap.String("username", cfg.Username))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
