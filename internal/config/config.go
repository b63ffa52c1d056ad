package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the full service configuration shared by the export service and
// the RAG gateway. Values come from defaults, an optional YAML file, and
// ISLAMAI_-prefixed environment variables, in increasing precedence.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Chunker   ChunkerConfig   `mapstructure:"chunker"`
}

// ServerConfig configures the export-service HTTP listener.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// GatewayConfig configures the RAG gateway HTTP listener.
type GatewayConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	// AskTimeoutSeconds bounds a single answer-LLM request.
	AskTimeoutSeconds int `mapstructure:"ask_timeout_seconds"`
}

// CatalogConfig points at the read-only catalogue sqlite file.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig configures the object store.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// PostgresConfig configures the operational relational store.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// VectorConfig configures the vector store.
type VectorConfig struct {
	DSN        string `mapstructure:"dsn"`
	Collection string `mapstructure:"collection"`
	Dim        int    `mapstructure:"dim"`
	Partition  string `mapstructure:"partition"`
	BatchSize  int    `mapstructure:"batch_size"`
}

// ExtractorConfig configures the out-of-process HTML extractor.
type ExtractorConfig struct {
	Script         string `mapstructure:"script"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// EmbeddingConfig selects and configures the dense embedding back-end.
type EmbeddingConfig struct {
	// Backend is "remote" or "local".
	Backend        string `mapstructure:"backend"`
	RemoteURL      string `mapstructure:"remote_url"`
	APIKey         string `mapstructure:"api_key"`
	BatchSize      int    `mapstructure:"batch_size"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	LocalBatchSize int    `mapstructure:"local_batch_size"`
}

// JobsConfig configures the export worker pool.
type JobsConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// LLMConfig configures the chat model used by the rewriter and the gateway.
type LLMConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ChunkerConfig carries the chunking constants.
type ChunkerConfig struct {
	MaxTokens int `mapstructure:"max_tokens"`
	// LookbackChars bounds the rescan for a sentence boundary before a ToC marker.
	LookbackChars int `mapstructure:"lookback_chars"`
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	for key, val := range defaultValues() {
		viper.SetDefault(key, val)
	}

	viper.SetEnvPrefix("ISLAMAI")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.islam-ai")
	}

	// Config file is optional; defaults plus env are enough to start.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Storage.AccessKey = ResolveEnvVars(cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = ResolveEnvVars(cfg.Storage.SecretKey)
	cfg.Embedding.APIKey = ResolveEnvVars(cfg.Embedding.APIKey)
	cfg.LLM.APIKey = ResolveEnvVars(cfg.LLM.APIKey)
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}
