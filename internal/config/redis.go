package config

// Redis is used for distributed rate limiting and HTTP response caching.  If
// the server cannot be reached at startup, callers get a nil client and
// degrade gracefully by disabling both.

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings.  REDIS_HOST and REDIS_PORT take
// precedence over REDIS_ADDR when both are set.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     string `envconfig:"REDIS_PORT"`
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	TLS      bool   `envconfig:"REDIS_TLS" default:"false"`
}

// LoadRedisConfig reads the REDIS_* variables.
func LoadRedisConfig() (RedisConfig, error) {
	var c RedisConfig
	if err := envconfig.Process("", &c); err != nil {
		return RedisConfig{}, fmt.Errorf("load redis config: %w", err)
	}
	if c.Host != "" && c.Port != "" {
		c.Addr = net.JoinHostPort(c.Host, c.Port)
	}
	return c, nil
}

// NewRedisClient connects using c and pings the server with a short
// timeout.  It returns nil when the server is unreachable.
func NewRedisClient(c RedisConfig) *redis.Client {
	var tlsConf *tls.Config
	if c.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      c.Addr,
		Password:  c.Password,
		DB:        c.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
