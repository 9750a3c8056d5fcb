package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "config.json"

// Embedder providers.
const (
	ProviderORT    = "ort"
	ProviderOllama = "ollama"
	ProviderNone   = "none"
)

// CatalogConfig selects the category catalog.
type CatalogConfig struct {
	Path       string `json:"path" yaml:"path"`
	UseBuiltin bool   `json:"useBuiltin" yaml:"useBuiltin"`
	Watch      bool   `json:"watch" yaml:"watch"`
}

// KeywordConfig tunes the keyword classifier.
type KeywordConfig struct {
	MaxPossibleScore float64 `json:"maxPossibleScore" yaml:"maxPossibleScore"`
}

// SemanticConfig tunes the embedding classifier.
type SemanticConfig struct {
	TopN        int    `json:"topN" yaml:"topN"`
	VectorStore string `json:"vectorStore" yaml:"vectorStore"`
	InPipeline  bool   `json:"inPipeline" yaml:"inPipeline"`
	Concurrency int    `json:"concurrency" yaml:"concurrency"`
}

// EmbedderConfig wraps the configuration for the text embedder and its cache.
type EmbedderConfig struct {
	Provider       string `json:"provider" yaml:"provider"`
	OrtDLL         string `json:"ortDll" yaml:"ortDll"`
	ModelPath      string `json:"modelPath" yaml:"modelPath"`
	TokenizerPath  string `json:"tokenizerPath" yaml:"tokenizerPath"`
	MaxSeqLen      int    `json:"maxSeqLen" yaml:"maxSeqLen"`
	CacheDir       string `json:"cacheDir" yaml:"cacheDir"`
	ModelID        string `json:"modelId" yaml:"modelId"`
	OllamaEndpoint string `json:"ollamaEndpoint" yaml:"ollamaEndpoint"`
	OllamaModel    string `json:"ollamaModel" yaml:"ollamaModel"`
}

// DetectorConfig configures the YOLO object detector.
type DetectorConfig struct {
	ModelPath     string  `json:"modelPath" yaml:"modelPath"`
	InputSize     int     `json:"inputSize" yaml:"inputSize"`
	MinConfidence float64 `json:"minConfidence" yaml:"minConfidence"`
	IOUThreshold  float64 `json:"iouThreshold" yaml:"iouThreshold"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr           string `json:"addr" yaml:"addr"`
	MaxUploadBytes int64  `json:"maxUploadBytes" yaml:"maxUploadBytes"`
}

// LoggingConfig selects the log level and encoding.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
	JSON  bool   `json:"json" yaml:"json"`
}

// Config aggregates runtime settings persisted to config.json or config.yaml.
type Config struct {
	Catalog  CatalogConfig  `json:"catalog" yaml:"catalog"`
	Keyword  KeywordConfig  `json:"keyword" yaml:"keyword"`
	Semantic SemanticConfig `json:"semantic" yaml:"semantic"`
	Embedder EmbedderConfig `json:"embedder" yaml:"embedder"`
	Detector DetectorConfig `json:"detector" yaml:"detector"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	var cfg Config
	cfg.Catalog.UseBuiltin = true
	cfg.ApplyDefaults()
	return cfg
}

// Clone creates a deep copy of the configuration so callers can mutate safely.
func (c Config) Clone() Config {
	buf, _ := json.Marshal(c)
	var out Config
	_ = json.Unmarshal(buf, &out)
	return out
}

// ApplyDefaults populates zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Keyword.MaxPossibleScore <= 0 {
		c.Keyword.MaxPossibleScore = DefaultMaxPossibleScore
	}
	if c.Semantic.TopN <= 0 {
		c.Semantic.TopN = DefaultTopN
	}
	if c.Semantic.Concurrency <= 0 {
		c.Semantic.Concurrency = 4
	}
	c.Embedder.Provider = strings.ToLower(strings.TrimSpace(c.Embedder.Provider))
	switch c.Embedder.Provider {
	case ProviderORT, ProviderOllama, ProviderNone:
	default:
		c.Embedder.Provider = ProviderNone
	}
	if c.Embedder.MaxSeqLen == 0 {
		c.Embedder.MaxSeqLen = 512
	}
	if c.Embedder.ModelID == "" {
		switch {
		case c.Embedder.Provider == ProviderOllama && c.Embedder.OllamaModel != "":
			c.Embedder.ModelID = "ollama:" + c.Embedder.OllamaModel
		case c.Embedder.ModelPath != "":
			c.Embedder.ModelID = filepath.Base(filepath.Dir(c.Embedder.ModelPath)) + "/" + filepath.Base(c.Embedder.ModelPath)
		}
	}
	if c.Embedder.OllamaEndpoint == "" {
		c.Embedder.OllamaEndpoint = "http://localhost:11434"
	}
	if c.Detector.InputSize <= 0 {
		c.Detector.InputSize = 640
	}
	if c.Detector.MinConfidence <= 0 {
		c.Detector.MinConfidence = 0.3
	}
	if c.Detector.IOUThreshold <= 0 {
		c.Detector.IOUThreshold = 0.45
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = 10 << 20
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// LoadConfig loads configuration from the given path or the default config.json.
// A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = defaultConfigFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	// Keys absent from the file keep their default values. JSON is a subset
	// of YAML, so one decoder serves both file types.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.ApplyDefaults()
	if cfg.Embedder.CacheDir != "" {
		if err := os.MkdirAll(cfg.Embedder.CacheDir, 0o755); err != nil {
			return cfg, fmt.Errorf("create cache dir: %w", err)
		}
	}
	return cfg, nil
}

// SaveConfig persists configuration to disk, as YAML for .yaml/.yml paths
// and as indented JSON otherwise.
func SaveConfig(path string, cfg Config) error {
	if path == "" {
		path = defaultConfigFile
	}
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	cfg.ApplyDefaults()
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
