// Package config holds semsearch's on-disk configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"semsearch/internal/logging"
)

// Config holds all semsearch configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Indexer     IndexerConfig     `yaml:"indexer"`
	Watcher     WatcherConfig     `yaml:"watcher"`
	Server      ServerConfig      `yaml:"server"`
	Sona        SonaConfig        `yaml:"sona"`
	Logging     LoggingConfig     `yaml:"logging"`

	// descriptionsAPIKey is read only from the environment (§6) and never
	// marshaled to the YAML file.
	descriptionsAPIKey string `yaml:"-"`
}

// EmbeddingConfig configures the embedding engine (provider, dims, batching).
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // local, ollama, genai
	LocalBinary    string `yaml:"local_binary"`
	Dims           int    `yaml:"dims"`
	BatchSize      int    `yaml:"batch_size"`
	SeqLen         int    `yaml:"seq_len"`
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
	TaskType       string `yaml:"task_type"`
}

// VectorStoreConfig configures the HNSW index and its persistence path.
type VectorStoreConfig struct {
	Path              string `yaml:"path"`
	M                 int    `yaml:"m"`
	MaxLayer          int    `yaml:"max_layer"`
	EfConstruction    int    `yaml:"ef_construction"`
	MinCapacity       int    `yaml:"min_capacity"`
	EfSearchMin       int    `yaml:"ef_search_min"`
	CompactThreshold  float64 `yaml:"compact_threshold"`
}

// IndexerConfig configures discovery: roots, excludes, size gate.
type IndexerConfig struct {
	Roots       []string `yaml:"roots"`
	Excludes    []string `yaml:"excludes"`
	MaxFileSize int64    `yaml:"max_file_size"`
}

// WatcherConfig configures the incremental-reindex poll loop.
type WatcherConfig struct {
	Enabled          bool   `yaml:"enabled"`
	IntervalSeconds  int    `yaml:"interval_seconds"`
	CompactThreshold float64 `yaml:"compact_threshold"`
	UseFsnotify      bool   `yaml:"use_fsnotify"`
}

// ServerConfig configures the line-delimited JSON protocol loop.
type ServerConfig struct {
	ReadBufferBytes int `yaml:"read_buffer_bytes"`
	DefaultLimit    int `yaml:"default_limit"`
}

// SonaConfig configures the online-learning subsystem's persistence and rates.
type SonaConfig struct {
	Path        string  `yaml:"path"`
	BaseLR      float64 `yaml:"base_lr"`
	LoraLR      float64 `yaml:"lora_lr"`
	EwcLambda   float64 `yaml:"ewc_lambda"`
	LoraGateCos float64 `yaml:"lora_gate_cos"`
}

// LoggingConfig mirrors logging's config-file shape.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "semsearch",
		Version: "0.1.0",

		Embedding: EmbeddingConfig{
			Provider:       "local",
			LocalBinary:    "semsearch-embed",
			Dims:           384,
			BatchSize:      32,
			SeqLen:         256,
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			TaskType:       "SEMANTIC_SIMILARITY",
		},

		VectorStore: VectorStoreConfig{
			Path:             ".semsearch/index.db",
			M:                32,
			MaxLayer:         16,
			EfConstruction:   200,
			MinCapacity:      1000,
			EfSearchMin:      50,
			CompactThreshold: 0.20,
		},

		Indexer: IndexerConfig{
			Roots: []string{"."},
			Excludes: []string{
				"vendor", "node_modules", ".git", ".svn", ".hg",
				"dev/tests", "tests/unit", "tests/integration", "Test/",
				"generated", "var/generation", "pub/static", "build", "dist",
				"fixtures", "_files",
			},
			MaxFileSize: 100_000,
		},

		Watcher: WatcherConfig{
			Enabled:          true,
			IntervalSeconds:  5,
			CompactThreshold: 0.20,
			UseFsnotify:      true,
		},

		Server: ServerConfig{
			ReadBufferBytes: 1 << 20,
			DefaultLimit:    10,
		},

		Sona: SonaConfig{
			Path:        ".semsearch/index.db.sona",
			BaseLR:      0.05,
			LoraLR:      0.01,
			EwcLambda:   2000,
			LoraGateCos: 0.90,
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// absent and applying environment overrides in either case.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	logging.BootDebug("Loading config from: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Boot("Config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		logging.BootError("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		logging.BootError("Failed to parse config file %s: %v", path, err)
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	logging.Boot("Config loaded: embedding_provider=%s vectorstore=%s", cfg.Embedding.Provider, cfg.VectorStore.Path)
	return cfg, nil
}

// Save writes configuration to a YAML file, creating parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. The description
// generator's API key is the only contractual environment variable (§6);
// the rest follow the teacher's convention of letting local dev override
// embedding endpoints without editing the YAML file.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GENAI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
	}
	if key := os.Getenv("SEMSEARCH_DESCRIPTIONS_API_KEY"); key != "" {
		c.descriptionsAPIKey = key
	}
	if endpoint := os.Getenv("OLLAMA_ENDPOINT"); endpoint != "" {
		c.Embedding.OllamaEndpoint = endpoint
	}
	if db := os.Getenv("SEMSEARCH_DB"); db != "" {
		c.VectorStore.Path = db
		c.Sona.Path = db + ".sona"
	}
}

// DescriptionsAPIKey returns the API key for the optional LLM description
// generator, read from SEMSEARCH_DESCRIPTIONS_API_KEY.
func (c *Config) DescriptionsAPIKey() string { return c.descriptionsAPIKey }

// GetWatcherInterval returns the watcher poll interval as a duration.
func (c *Config) GetWatcherInterval() time.Duration {
	if c.Watcher.IntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Watcher.IntervalSeconds) * time.Second
}
