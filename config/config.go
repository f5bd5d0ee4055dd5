package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the config file written by `docrag init`.
const ConfigFileName = "rag.yaml"

// indexDirName is the directory holding the persisted index.
const indexDirName = ".rag"

// Config holds all configuration for the docrag tool.
type Config struct {
	FolderPath string          `yaml:"folder_path"`
	Chunking   ChunkingConfig  `yaml:"chunking"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	Chat       ChatConfig      `yaml:"chat"`
	Retrieve   RetrieveConfig  `yaml:"retrieve"`
	IgnoreDirs []string        `yaml:"ignore_dirs"`
}

// ChunkingConfig holds chunking parameters. Sizes are in characters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig holds embedding-service configuration.
type EmbeddingConfig struct {
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	BatchSize   int    `yaml:"batch_size"`
	Workers     int    `yaml:"workers"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// ChatConfig holds generation-model configuration.
type ChatConfig struct {
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK int `yaml:"top_k"`
	// MaxDistance filters results whose cosine distance exceeds it
	// (0 = disabled).
	MaxDistance float64 `yaml:"max_distance"`
}

// DefaultConfig returns the default configuration for the given folder.
func DefaultConfig(folderPath string) *Config {
	return &Config{
		FolderPath: folderPath,
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Embedding: EmbeddingConfig{
			Model:       "nomic-embed-text",
			BaseURL:     "http://localhost:11434/v1",
			APIKeyEnv:   "DOCRAG_API_KEY",
			BatchSize:   32,
			Workers:     4,
			TimeoutSecs: 120,
			MaxRetries:  5,
		},
		Chat: ChatConfig{
			Model:       "deepseek-r1:1.5b",
			TimeoutSecs: 300,
		},
		Retrieve: RetrieveConfig{
			TopK:        5,
			MaxDistance: 0,
		},
		IgnoreDirs: []string{".git", "node_modules", "vendor", "venv", "__pycache__", indexDirName},
	}
}

// Load loads configuration from a YAML file. A missing file is an error:
// the tool refuses to run against a folder that has not been initialized.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads configuration from rag.yaml in the given directory.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, ConfigFileName))
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.FolderPath == "" {
		return fmt.Errorf("folder_path is required")
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be > 0, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must satisfy 0 <= overlap < size, got %d", c.Chunking.Overlap)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	return nil
}

// IndexDBPath returns the path to the persisted index for a directory.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, indexDirName, "index.db")
}

// EnsureIndexDir ensures the .rag directory exists.
func EnsureIndexDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, indexDirName), 0755)
}
