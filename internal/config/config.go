package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/recobatch/internal/domain/similarity"
)

// Config holds the recobatch pipeline configuration.
type Config struct {
	Admin          AdminConfig          `yaml:"admin"`
	Warehouse      WarehouseConfig      `yaml:"warehouse"`
	Embedding      EmbeddingConfig      `yaml:"embedding"`
	Cache          CacheConfig          `yaml:"cache"`
	Recommendation RecommendationConfig `yaml:"recommendation"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AdminConfig holds the admin HTTP server settings (/healthz, /metrics).
type AdminConfig struct {
	Port int `yaml:"port"`
}

// WarehouseConfig holds warehouse connection and table settings.
type WarehouseConfig struct {
	DSN                  string `yaml:"dsn"`
	UsersTable           string `yaml:"users_table"`
	MediaTable           string `yaml:"media_table"`
	RecommendationsTable string `yaml:"recommendations_table"`
	PersistVectors       bool   `yaml:"persist_vectors"`
	UserVectorsTable     string `yaml:"user_vectors_table"`
	MediaVectorsTable    string `yaml:"media_vectors_table"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	MaxRetries int    `yaml:"max_retries"`
}

// CacheConfig holds the optional embedding cache settings.
// Empty addrs disables the cache.
type CacheConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
}

// RecommendationConfig holds ranking settings.
type RecommendationConfig struct {
	SimilarityMetric string `yaml:"similarity_metric"`
	TopN             int    `yaml:"top_n"`
	Workers          int    `yaml:"workers"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Admin.Port <= 0 {
		c.Admin.Port = 9090
	}
	if c.Warehouse.UsersTable == "" {
		c.Warehouse.UsersTable = "users"
	}
	if c.Warehouse.MediaTable == "" {
		c.Warehouse.MediaTable = "media"
	}
	if c.Warehouse.RecommendationsTable == "" {
		c.Warehouse.RecommendationsTable = "recommendations"
	}
	if c.Warehouse.UserVectorsTable == "" {
		c.Warehouse.UserVectorsTable = "user_vectors"
	}
	if c.Warehouse.MediaVectorsTable == "" {
		c.Warehouse.MediaVectorsTable = "media_vectors"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Embedding.MaxRetries <= 0 {
		c.Embedding.MaxRetries = 3
	}
	if c.Recommendation.SimilarityMetric == "" {
		c.Recommendation.SimilarityMetric = string(similarity.Cosine)
	}
	if c.Recommendation.TopN <= 0 {
		c.Recommendation.TopN = 10
	}
	if c.Recommendation.Workers <= 0 {
		c.Recommendation.Workers = 4
	}
}

// Validate checks the configuration for correctness. All failures here abort
// the run before any remote call is made.
func (c *Config) Validate() error {
	if c.Admin.Port <= 0 || c.Admin.Port > 65535 {
		return fmt.Errorf("admin.port must be between 1 and 65535, got %d", c.Admin.Port)
	}
	if c.Warehouse.DSN == "" {
		return fmt.Errorf("warehouse.dsn is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required")
	}
	if _, err := similarity.ParseMetric(c.Recommendation.SimilarityMetric); err != nil {
		return fmt.Errorf("recommendation.similarity_metric: %w", err)
	}
	return nil
}

// Metric returns the validated similarity metric.
func (c *Config) Metric() similarity.Metric {
	return similarity.Metric(c.Recommendation.SimilarityMetric)
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
