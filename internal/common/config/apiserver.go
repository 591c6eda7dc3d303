package config

import (
	"fmt"
	"time"
)

type (
	// APIServerConfig represents the top-level apiserver configuration
	APIServerConfig struct {
		Server     ServerConfig     `yaml:"server"`
		Database   DatabaseConfig   `yaml:"database"`
		Logger     LoggerConfig     `yaml:"logger"`
		JWT        JWTConfig        `yaml:"jwt"`
		WebSocket  WebSocketConfig  `yaml:"websocket"`
		Notifier   NotifierConfig   `yaml:"notifier"`
		SuperAdmin SuperAdminConfig `yaml:"super_admin"`
	}

	// ServerConfig represents the HTTP server configuration
	ServerConfig struct {
		Port            int           `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	}

	// DatabaseConfig represents the relational store configuration
	DatabaseConfig struct {
		Type     string `yaml:"type"`     // mysql, postgres, sqlite
		Host     string `yaml:"host"`     // localhost
		Port     int    `yaml:"port"`     // 3306 (for mysql), 5432 (for postgres)
		User     string `yaml:"user"`     // root (for mysql), postgres (for postgres)
		Password string `yaml:"password"` // password
		DBName   string `yaml:"dbname"`   // database name, or file path for sqlite
		SSLMode  string `yaml:"sslmode"`  // disable (for postgres)
	}

	// JWTConfig represents the JWT signing configuration
	JWTConfig struct {
		SecretKey string        `yaml:"secret_key"`
		Duration  time.Duration `yaml:"duration"`
	}

	// WebSocketConfig tunes the real-time connection layer
	WebSocketConfig struct {
		// SendBufferSize is the per-connection outbound queue length.
		// A connection whose queue overflows is closed.
		SendBufferSize int `yaml:"send_buffer_size"`
		// PingInterval is the keepalive ping period.
		PingInterval time.Duration `yaml:"ping_interval"`
		// PongWait is how long to wait for a pong before the read fails.
		PongWait time.Duration `yaml:"pong_wait"`
		// WriteWait bounds a single websocket write.
		WriteWait time.Duration `yaml:"write_wait"`
	}
)

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case "postgres":
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	case "sqlite":
		return c.DBName // For SQLite, DBName is the file path
	default:
		return ""
	}
}

// SetDefaults fills in zero-valued websocket settings
func (c *WebSocketConfig) SetDefaults() {
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = 64
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
}
