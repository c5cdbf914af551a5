// Package config loads process configuration from an optional .env file, an
// optional YAML file and ROOMIES_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dukerupert/roomies/internal/blob"
)

// FileEnv names the environment variable holding the YAML config path.
const FileEnv = "ROOMIES_CONFIG"

type Config struct {
	Port      string `yaml:"port"`
	DBPath    string `yaml:"db_path"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// TokenSecret verifies HS256 bearer tokens issued by the auth provider.
	TokenSecret string `yaml:"token_secret"`

	StoreTimeout time.Duration `yaml:"store_timeout"`
	// JoinRateLimit is the number of join attempts allowed per IP per minute.
	JoinRateLimit int `yaml:"join_rate_limit"`

	S3 blob.S3Config `yaml:"s3"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:          "8080",
		DBPath:        "roomies.db",
		LogLevel:      "info",
		LogFormat:     "text",
		StoreTimeout:  10 * time.Second,
		JoinRateLimit: 10,
	}
}

// Load reads envFiles (".env" when none are given; missing files are
// ignored), then the YAML file named by ROOMIES_CONFIG, then the environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	str := map[string]*string{
		"ROOMIES_PORT":          &c.Port,
		"ROOMIES_DB_PATH":       &c.DBPath,
		"ROOMIES_LOG_LEVEL":     &c.LogLevel,
		"ROOMIES_LOG_FORMAT":    &c.LogFormat,
		"ROOMIES_TOKEN_SECRET":  &c.TokenSecret,
		"ROOMIES_S3_ENDPOINT":   &c.S3.Endpoint,
		"ROOMIES_S3_BUCKET":     &c.S3.Bucket,
		"ROOMIES_S3_REGION":     &c.S3.Region,
		"ROOMIES_S3_ACCESS_KEY": &c.S3.AccessKey,
		"ROOMIES_S3_SECRET_KEY": &c.S3.SecretKey,
		"ROOMIES_S3_PUBLIC_URL": &c.S3.PublicURL,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	if v := os.Getenv("ROOMIES_STORE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ROOMIES_STORE_TIMEOUT: %w", err)
		}
		c.StoreTimeout = d
	}
	if v := os.Getenv("ROOMIES_JOIN_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ROOMIES_JOIN_RATE_LIMIT: %w", err)
		}
		c.JoinRateLimit = n
	}
	return nil
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.TokenSecret == "":
		return errors.New("ROOMIES_TOKEN_SECRET is required")
	case c.StoreTimeout <= 0:
		return fmt.Errorf("store timeout must be positive, got %s", c.StoreTimeout)
	case c.JoinRateLimit <= 0:
		return fmt.Errorf("join rate limit must be positive, got %d", c.JoinRateLimit)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.LogFormat)
	}
	return nil
}
