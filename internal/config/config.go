package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidConfig     = errors.New("invalid config")
)

// LLMConfig configures the generative model used to synthesise answers.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // langchain | openai
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// EmbedConfig configures the embedding model. Dimension must match the
// vector index collection exactly.
type EmbedConfig struct {
	Provider  string `yaml:"provider"` // ollama | openai
	BaseURL   string `yaml:"base_url"`
	Key       string `yaml:"key"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type ChromemConfig struct {
	Path          string `yaml:"path"`
	InMemory      bool   `yaml:"in_memory"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

// VectorIndexConfig selects the vector index backend and the collection it
// is bound to.
type VectorIndexConfig struct {
	Backend    string        `yaml:"backend"` // qdrant | chromem | pgvector
	Collection string        `yaml:"collection"`
	Metric     string        `yaml:"metric"` // cosine | dot | euclid
	Qdrant     QdrantConfig  `yaml:"qdrant"`
	Chromem    ChromemConfig `yaml:"chromem"`
}

// DatabaseConfig is the optional Postgres connection used for chat history
// and for the pgvector backend.
type DatabaseConfig struct {
	URL   string `yaml:"url"`
	Debug bool   `yaml:"debug"`
}

type CacheConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	TTLSecs   int    `yaml:"ttl_secs"`
}

type RAGConfig struct {
	TopK            int `yaml:"top_k"`
	MaxContextChars int `yaml:"max_context_chars"`
}

type IndexingConfig struct {
	DocsPath      string   `yaml:"docs_path"`
	Include       []string `yaml:"include"`
	ChunkSize     int      `yaml:"chunk_size"`
	MinLength     int      `yaml:"min_length"`
	StartID       uint64   `yaml:"start_id"`
	StripMarkdown bool     `yaml:"strip_markdown"`
}

type ServerConfig struct {
	Addr               string   `yaml:"addr"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs"`
}

type Config struct {
	LogLevel    string            `yaml:"log_level"`
	LLM         LLMConfig         `yaml:"llm"`
	EmbedLLM    EmbedConfig       `yaml:"embedding"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	Database    DatabaseConfig    `yaml:"database"`
	Cache       CacheConfig       `yaml:"cache"`
	RAG         RAGConfig         `yaml:"rag"`
	Indexing    IndexingConfig    `yaml:"indexing"`
	Server      ServerConfig      `yaml:"server"`
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// fills in defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if cfg.LLM.Key == "" {
			cfg.LLM.Key = v
		}
		if cfg.EmbedLLM.Provider == "openai" && cfg.EmbedLLM.Key == "" {
			cfg.EmbedLLM.Key = v
		}
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		cfg.VectorIndex.Qdrant.URL = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		cfg.VectorIndex.Qdrant.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "langchain"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 500
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 30
	}

	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = "ollama"
	}
	if cfg.EmbedLLM.BaseURL == "" {
		switch cfg.EmbedLLM.Provider {
		case "openai":
			cfg.EmbedLLM.BaseURL = "https://api.openai.com/v1"
		default:
			cfg.EmbedLLM.BaseURL = "http://localhost:11434"
		}
	}
	if cfg.EmbedLLM.Model == "" {
		switch cfg.EmbedLLM.Provider {
		case "openai":
			cfg.EmbedLLM.Model = "text-embedding-3-small"
		default:
			cfg.EmbedLLM.Model = "all-minilm"
		}
	}
	if cfg.EmbedLLM.Dimension == 0 {
		switch cfg.EmbedLLM.Provider {
		case "openai":
			cfg.EmbedLLM.Dimension = 1536
		default:
			cfg.EmbedLLM.Dimension = 384
		}
	}

	if cfg.VectorIndex.Backend == "" {
		cfg.VectorIndex.Backend = "qdrant"
	}
	if cfg.VectorIndex.Collection == "" {
		cfg.VectorIndex.Collection = "physical_ai_textbook"
	}
	if cfg.VectorIndex.Metric == "" {
		cfg.VectorIndex.Metric = "cosine"
	}
	if cfg.VectorIndex.Qdrant.URL == "" {
		cfg.VectorIndex.Qdrant.URL = "http://localhost:6333"
	}
	if cfg.VectorIndex.Qdrant.TimeoutSecs == 0 {
		cfg.VectorIndex.Qdrant.TimeoutSecs = 15
	}
	if cfg.VectorIndex.Chromem.Path == "" {
		cfg.VectorIndex.Chromem.Path = "./chromemdb"
	}

	if cfg.Cache.TTLSecs == 0 {
		cfg.Cache.TTLSecs = 7 * 24 * 3600
	}

	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 3
	}
	if cfg.RAG.MaxContextChars == 0 {
		cfg.RAG.MaxContextChars = 6000
	}

	if cfg.Indexing.DocsPath == "" {
		cfg.Indexing.DocsPath = "./docs"
	}
	if len(cfg.Indexing.Include) == 0 {
		cfg.Indexing.Include = []string{"**/*.md"}
	}
	if cfg.Indexing.ChunkSize == 0 {
		cfg.Indexing.ChunkSize = 1000
	}
	if cfg.Indexing.MinLength == 0 {
		cfg.Indexing.MinLength = 50
	}
	if cfg.Indexing.StartID == 0 {
		cfg.Indexing.StartID = 1
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Server.RequestTimeoutSecs == 0 {
		cfg.Server.RequestTimeoutSecs = 60
	}
}

// Validate reports configuration errors that make the index or the embedder
// unusable. They are fatal at startup.
func (c *Config) Validate() error {
	if c.EmbedLLM.Dimension <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive, got %d", ErrInvalidConfig, c.EmbedLLM.Dimension)
	}
	switch c.EmbedLLM.Provider {
	case "ollama":
	case "openai":
		if c.EmbedLLM.Key == "" {
			return fmt.Errorf("%w: embedding key for provider openai", ErrMissingCredential)
		}
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, c.EmbedLLM.Provider)
	}

	switch strings.ToLower(c.VectorIndex.Metric) {
	case "cosine", "dot", "euclid":
	default:
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidConfig, c.VectorIndex.Metric)
	}

	switch c.VectorIndex.Backend {
	case "qdrant":
		if c.VectorIndex.Qdrant.URL == "" {
			return fmt.Errorf("%w: qdrant url", ErrMissingCredential)
		}
	case "chromem":
		if !strings.EqualFold(c.VectorIndex.Metric, "cosine") {
			return fmt.Errorf("%w: chromem backend supports cosine only", ErrInvalidConfig)
		}
	case "pgvector":
		if c.Database.URL == "" {
			return fmt.Errorf("%w: database url for pgvector backend", ErrMissingCredential)
		}
	default:
		return fmt.Errorf("%w: unknown vector index backend %q", ErrInvalidConfig, c.VectorIndex.Backend)
	}
	return nil
}

// RequireLLM checks the generative model settings; only commands that answer
// questions need them.
func (c *Config) RequireLLM() error {
	switch c.LLM.Provider {
	case "langchain", "openai":
	default:
		return fmt.Errorf("%w: unknown llm provider %q", ErrInvalidConfig, c.LLM.Provider)
	}
	if c.LLM.Key == "" {
		return fmt.Errorf("%w: llm key (set OPENAI_API_KEY)", ErrMissingCredential)
	}
	return nil
}
