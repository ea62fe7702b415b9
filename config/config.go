// Copyright 2025 QueryGate
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the QueryGate gateway.
// Values come from an optional YAML file plus environment overrides;
// the environment always wins.
type Config struct {
	Port      string `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`

	// Token lifetime for tokens issued by the login endpoint
	TokenTTLMinutes int `yaml:"token_ttl_minutes"`

	// Dispatch tuning. PoolSize caps concurrent tool calls per request;
	// it is a fixed constant, never derived from load.
	PoolSize       int `yaml:"pool_size"`
	MaxRetries     int `yaml:"max_retries"`
	RetryBackoffMs int `yaml:"retry_backoff_ms"`

	// External collaborators. RequestTimeoutMs bounds a whole query run,
	// planning included; zero disables the deadline.
	RequestTimeoutMs int    `yaml:"request_timeout_ms"`
	AuditDatabaseURL string `yaml:"audit_database_url"`
	RedisAddr        string `yaml:"redis_addr"`
	RedisPassword    string `yaml:"redis_password"`

	// Tool backends
	SQLDriver string `yaml:"sql_driver"` // postgres or mysql
	SQLDSN    string `yaml:"sql_dsn"`
	MongoURI  string `yaml:"mongo_uri"`

	// Planning model providers
	OpenAIKey     string `yaml:"openai_key"`
	AnthropicKey  string `yaml:"anthropic_key"`
	BedrockRegion string `yaml:"bedrock_region"`
	BedrockModel  string `yaml:"bedrock_model"`

	// Role grants: role name to the capabilities it may invoke.
	// Empty means compiled-in defaults.
	RoleGrants map[string][]string `yaml:"role_grants"`
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads configuration from the YAML file at path (if non-empty and
// present) and applies environment overrides on top of defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else {
			expanded := envVarPattern.ReplaceAllStringFunc(string(data), func(m string) string {
				return os.Getenv(envVarPattern.FindStringSubmatch(m)[1])
			})
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if cfg.PoolSize < 1 {
		return nil, fmt.Errorf("pool_size must be at least 1, got %d", cfg.PoolSize)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must not be negative, got %d", cfg.MaxRetries)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:             "8080",
		TokenTTLMinutes:  30,
		PoolSize:         4,
		MaxRetries:       2,
		RetryBackoffMs:   250,
		RequestTimeoutMs: 20000,
		SQLDriver:        "postgres",
	}
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.AuditDatabaseURL = getEnv("AUDIT_DATABASE_URL", c.AuditDatabaseURL)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.SQLDriver = getEnv("SQL_DRIVER", c.SQLDriver)
	c.SQLDSN = getEnv("SQL_DSN", c.SQLDSN)
	c.MongoURI = getEnv("MONGO_URI", c.MongoURI)
	c.OpenAIKey = getEnv("OPENAI_API_KEY", c.OpenAIKey)
	c.AnthropicKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicKey)
	c.BedrockRegion = getEnv("BEDROCK_REGION", c.BedrockRegion)
	c.BedrockModel = getEnv("BEDROCK_MODEL", c.BedrockModel)

	c.PoolSize = getEnvInt("POOL_SIZE", c.PoolSize)
	c.MaxRetries = getEnvInt("MAX_RETRIES", c.MaxRetries)
	c.RetryBackoffMs = getEnvInt("RETRY_BACKOFF_MS", c.RetryBackoffMs)
	c.RequestTimeoutMs = getEnvInt("REQUEST_TIMEOUT_MS", c.RequestTimeoutMs)
	c.TokenTTLMinutes = getEnvInt("TOKEN_TTL_MINUTES", c.TokenTTLMinutes)
}

// RetryBackoff returns the configured backoff as a duration
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}

// RequestTimeout returns the configured per-request deadline
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
