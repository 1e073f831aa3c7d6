package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/zerverless/versionindex/internal/registry"
	"github.com/zerverless/versionindex/internal/store"
)

type Config struct {
	NodeID   string `yaml:"nodeId"`
	HTTPPort int    `yaml:"httpPort"`
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"logLevel"`

	AppID        string           `yaml:"appId"`
	VersionCount int              `yaml:"versionCount"`
	Connection   store.Connection `yaml:"connection"`
	// RepoPath is where revision keys are read from.
	RepoPath string `yaml:"repoPath"`
}

func Default() *Config {
	return &Config{
		NodeID:       "node-" + uuid.NewString()[:8],
		HTTPPort:     8000,
		LogLevel:     "info",
		AppID:        registry.DefaultAppID,
		VersionCount: registry.DefaultVersionCount,
		Connection: store.Connection{
			Driver: store.DriverRedis,
			Host:   "localhost",
			Port:   6379,
		},
		RepoPath: ".",
	}
}

// Load reads the optional YAML file at path over the defaults, then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("yaml parse: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.NodeID = getEnv("NODE_ID", c.NodeID)
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.Debug = getEnvBool("DEBUG", c.Debug)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.AppID = getEnv("VERSIONINDEX_APP_ID", c.AppID)
	c.VersionCount = getEnvInt("VERSIONINDEX_VERSION_COUNT", c.VersionCount)
	c.Connection.Driver = getEnv("VERSIONINDEX_DRIVER", c.Connection.Driver)
	c.Connection.Host = getEnv("REDIS_HOST", c.Connection.Host)
	c.Connection.Port = getEnvInt("REDIS_PORT", c.Connection.Port)
	c.Connection.Password = getEnv("REDIS_PASSWORD", c.Connection.Password)
	c.Connection.DB = getEnvInt("REDIS_DB", c.Connection.DB)
	c.Connection.Path = getEnv("DATA_DIR", c.Connection.Path)
	c.RepoPath = getEnv("REPO_PATH", c.RepoPath)
}

func (c *Config) Validate() error {
	if c.VersionCount <= 0 {
		return fmt.Errorf("versionCount must be positive, got %d", c.VersionCount)
	}
	switch c.Connection.Driver {
	case store.DriverRedis, store.DriverMemory:
	case store.DriverBadger:
		if c.Connection.Path == "" {
			return fmt.Errorf("badger driver requires connection.path")
		}
	default:
		return fmt.Errorf("unknown driver: %s", c.Connection.Driver)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return fallback
}
