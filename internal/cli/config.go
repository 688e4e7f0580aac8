package cli

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/loom/internal/logging"
)

// DefaultConfigFile is read when no --config flag is given.
const DefaultConfigFile = "loom.yaml"

// Store backends accepted by Config.Store.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config holds the settings shared by the serve and mcp commands.
type Config struct {
	Store         string   `yaml:"store" json:"store"`
	DataDir       string   `yaml:"data_dir" json:"data_dir"`
	RedisAddr     string   `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string   `yaml:"redis_password" json:"redis_password"`
	RedisDB       int      `yaml:"redis_db" json:"redis_db"`
	RedisPrefix   string   `yaml:"redis_prefix" json:"redis_prefix"`
	LogLevel      string   `yaml:"log_level" json:"log_level"`
	EncryptionKey string   `yaml:"encryption_key" json:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys" json:"fallback_keys"`
	PIIKeys       []string `yaml:"pii_keys" json:"pii_keys"`
	Addr          string   `yaml:"addr" json:"addr"`
}

// DefaultConfig returns an in-memory configuration listening on :8080.
func DefaultConfig() Config {
	return Config{
		Store:       StoreMemory,
		DataDir:     ".loom",
		RedisAddr:   "localhost:6379",
		RedisPrefix: "loom:",
		LogLevel:    "info",
		Addr:        ":8080",
	}
}

// LoadConfig reads a configuration file (YAML or JSON) on top of the defaults.
// A missing file yields the defaults unless required is set.
func LoadConfig(path string, required bool) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// ApplyEnv overrides fields from LOOM_* environment variables.
func (c *Config) ApplyEnv() error {
	set := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	set("LOOM_STORE", &c.Store)
	set("LOOM_DATA_DIR", &c.DataDir)
	set("LOOM_REDIS_ADDR", &c.RedisAddr)
	set("LOOM_REDIS_PASSWORD", &c.RedisPassword)
	set("LOOM_REDIS_PREFIX", &c.RedisPrefix)
	set(logging.EnvLevel, &c.LogLevel)
	set("LOOM_ENCRYPTION_KEY", &c.EncryptionKey)
	set("LOOM_ADDR", &c.Addr)

	if v, ok := os.LookupEnv("LOOM_REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOOM_REDIS_DB: %w", err)
		}
		c.RedisDB = db
	}
	if v, ok := os.LookupEnv("LOOM_PII_KEYS"); ok {
		c.PIIKeys = splitList(v)
	}
	return nil
}

// Validate checks the backend name, the log level and the encryption keys.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q (want memory, file or redis)", c.Store)
	}
	if c.Store == StoreFile && c.DataDir == "" {
		return fmt.Errorf("data_dir is required for the file store")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, _, err := c.Keys(); err != nil {
		return err
	}
	return nil
}

// Level returns the parsed log level, defaulting to info.
func (c Config) Level() slog.Level {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// Keys decodes the base64 encryption keys. A nil active key disables encryption.
func (c Config) Keys() (active []byte, fallback [][]byte, err error) {
	if c.EncryptionKey == "" {
		if len(c.FallbackKeys) > 0 {
			return nil, nil, fmt.Errorf("fallback_keys require encryption_key")
		}
		return nil, nil, nil
	}
	active, err = decodeKey(c.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("encryption_key: %w", err)
	}
	for i, k := range c.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("want 32 bytes, got %d", len(key))
	}
	return key, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
