package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig marks configuration that cannot be started with.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	RAG      RAGConfig      `yaml:"rag"`
	Store    StoreConfig    `yaml:"store"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	InferLLM LLMConfig      `yaml:"infer_llm"`
	Reranker RerankerConfig `yaml:"reranker"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RAGConfig holds the chunking and retrieval tunables. TopKSearch,
// TopKRerank and MinRerankScore are deliberately configuration, not
// constants, so evaluation runs can sweep them.
type RAGConfig struct {
	ChunkTokens    int     `yaml:"chunk_tokens"`
	OverlapTokens  int     `yaml:"overlap_tokens"`
	MinChunkTokens int     `yaml:"min_chunk_tokens"`
	TopKSearch     int     `yaml:"top_k_search"`
	TopKRerank     int     `yaml:"top_k_rerank"`
	MinRerankScore float64 `yaml:"min_rerank_score"`
}

// StoreConfig selects the vector index backend.
type StoreConfig struct {
	Backend    string `yaml:"backend"` // "chromem", "postgres" or "memory"
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	DSN        string `yaml:"dsn"`
	Password   string `yaml:"password"`
	Debug      bool   `yaml:"debug"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "ollama" or "openai"
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"key"`
	Model       string  `yaml:"model"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type RerankerConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// Keys stay out of the file itself; ${VAR} references resolve
	// against the environment (godotenv loads .env before this runs).
	// Only the braced form expands, so a bare $ in a DSN or password
	// passes through untouched.
	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvRefs(string(data))), &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnvRefs(s string) string {
	return envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

// Default returns a config with the stock chunking and retrieval values.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.RAG.ChunkTokens == 0 {
		cfg.RAG.ChunkTokens = 512
	}
	if cfg.RAG.OverlapTokens == 0 {
		cfg.RAG.OverlapTokens = 50
	}
	if cfg.RAG.MinChunkTokens == 0 {
		cfg.RAG.MinChunkTokens = 50
	}
	if cfg.RAG.TopKSearch == 0 {
		cfg.RAG.TopKSearch = 20
	}
	if cfg.RAG.TopKRerank == 0 {
		cfg.RAG.TopKRerank = 5
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "chromem"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "./data/index"
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = "pdf_chunks"
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = "ollama"
	}
	if cfg.InferLLM.Provider == "" {
		cfg.InferLLM.Provider = "openai"
	}
	if cfg.InferLLM.TimeoutSecs == 0 {
		cfg.InferLLM.TimeoutSecs = 60
	}
	if cfg.InferLLM.MaxTokens == 0 {
		cfg.InferLLM.MaxTokens = 500
	}
	if cfg.InferLLM.Temperature == 0 {
		cfg.InferLLM.Temperature = 0.3
	}
	if cfg.Reranker.TimeoutSecs == 0 {
		cfg.Reranker.TimeoutSecs = 30
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate fails fast on configuration the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.RAG.OverlapTokens >= c.RAG.ChunkTokens {
		return fmt.Errorf("%w: overlap_tokens (%d) must be smaller than chunk_tokens (%d)",
			ErrInvalidConfig, c.RAG.OverlapTokens, c.RAG.ChunkTokens)
	}
	if c.RAG.MinChunkTokens < 0 {
		return fmt.Errorf("%w: min_chunk_tokens must not be negative", ErrInvalidConfig)
	}
	if c.RAG.TopKRerank > c.RAG.TopKSearch {
		return fmt.Errorf("%w: top_k_rerank (%d) cannot exceed top_k_search (%d)",
			ErrInvalidConfig, c.RAG.TopKRerank, c.RAG.TopKSearch)
	}
	switch c.Store.Backend {
	case "chromem", "postgres", "memory":
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store.Backend)
	}
	return nil
}
