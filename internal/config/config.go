// Package config loads application configuration from environment variables.
// A .env file in the working directory, when present, is read first; real
// environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/iliyamo/maallem-marketplace/internal/database"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env      string `envconfig:"APP_ENV" default:"dev"`   // application environment (dev/test/prod)
	Port     string `envconfig:"APP_PORT" default:"5000"` // HTTP port to listen on
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DBUser string `envconfig:"DB_USER" required:"true"`
	DBPass string `envconfig:"DB_PASS"` // empty allowed
	DBHost string `envconfig:"DB_HOST" default:"localhost"`
	DBPort string `envconfig:"DB_PORT" default:"3306"`
	DBName string `envconfig:"DB_NAME" default:"maallem"`

	JWTSecret    string `envconfig:"JWT_SECRET" required:"true"`
	AccessTTLMin int    `envconfig:"ACCESS_TOKEN_TTL_MIN" default:"60"`

	// AdminEmail is the reserved address bound to the admin role.
	AdminEmail string `envconfig:"ADMIN_EMAIL" default:"admin@maallem.com"`
	AdminName  string `envconfig:"ADMIN_NAME" default:"Admin"`
	// AdminPassword seeds the admin account on startup when it is missing.
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
	// TrustIdentityHeaders accepts X-User-* headers as identity when no
	// bearer token is sent.  Only enable it behind a gateway that sets them.
	TrustIdentityHeaders bool   `envconfig:"TRUST_IDENTITY_HEADERS" default:"false"`
	ImagesDir            string `envconfig:"IMAGES_DIR" default:"images"`
	ActivityLogDir       string `envconfig:"ACTIVITY_LOG_DIR" default:"logs"`

	RabbitURL      string `envconfig:"RABBITMQ_URL"` // empty disables events
	EventsExchange string `envconfig:"EVENTS_EXCHANGE" default:"marketplace.events"`

	MigrateOnStart bool `envconfig:"MIGRATE_ON_START" default:"true"`
}

// Load reads .env (if any) and the process environment into a Config.
// Missing required variables are reported as an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if c.JWTSecret == "" {
		return Config{}, errors.New("load config: JWT_SECRET must not be empty")
	}
	if c.AccessTTLMin <= 0 {
		return Config{}, fmt.Errorf("load config: ACCESS_TOKEN_TTL_MIN must be positive, got %d", c.AccessTTLMin)
	}
	return c, nil
}

// Database returns the connection settings for the MySQL pool.
func (c Config) Database() database.Options {
	return database.Options{
		User:     c.DBUser,
		Password: c.DBPass,
		Host:     c.DBHost,
		Port:     c.DBPort,
		Name:     c.DBName,
	}
}
