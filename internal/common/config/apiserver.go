package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type (
	DatabaseConfig struct {
		Type     string `yaml:"type"`     // mysql, postgres, sqlite
		Host     string `yaml:"host"`     // localhost
		Port     int    `yaml:"port"`     // 3306 (for mysql), 5432 (for postgres)
		User     string `yaml:"user"`     // root (for mysql), postgres (for postgres)
		Password string `yaml:"password"` // password
		DBName   string `yaml:"dbname"`   // database name, or file path for sqlite
		SSLMode  string `yaml:"sslmode"`  // disable (for postgres)
		// MaxOpenConns caps the pool; zero keeps the driver default
		MaxOpenConns int `yaml:"max_open_conns"`
	}

	JWTConfig struct {
		SecretKey     string        `yaml:"secret_key"`
		Duration      time.Duration `yaml:"duration"`
		ResetDuration time.Duration `yaml:"reset_duration"`
	}
)

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case "postgres":
		return c.getPostgresDSN()
	case "mysql":
		return c.getMySQLDSN()
	case "sqlite":
		return c.getSQLiteDSN()
	default:
		return ""
	}
}

// IsInMemory reports whether the sqlite database lives only in process memory
func (c *DatabaseConfig) IsInMemory() bool {
	return c.Type == "sqlite" && strings.Contains(c.DBName, ":memory:")
}

func (c *DatabaseConfig) getSQLiteDSN() string {
	if c.IsInMemory() {
		return c.DBName
	}
	if err := os.MkdirAll(filepath.Dir(c.DBName), 0755); err != nil {
		panic(fmt.Errorf("failed to create directory for sqlite database: %w", err))
	}
	if strings.Contains(c.DBName, "?") {
		return c.DBName
	}
	// enforce ON DELETE CASCADE from regions to metric tables
	return c.DBName + "?_pragma=foreign_keys(1)"
}

// getPostgresDSN returns PostgreSQL connection string
func (c *DatabaseConfig) getPostgresDSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, sslMode)
}

// getMySQLDSN returns MySQL connection string
func (c *DatabaseConfig) getMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}
