package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/docqa/internal/chunker"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Chat model (Ollama OpenAI-compatible API)
	OllamaBaseURL  string
	OllamaAPIKey   string
	OllamaModel    string
	LLMTemperature float64
	LLMTopP        float64
	LLMMaxTokens   int

	// Embeddings
	EmbeddingProvider  string
	EmbeddingModel     string
	EmbeddingDim       int
	EmbedBatchSize     int
	EmbedConcurrency   int
	EmbedCacheSize     int
	RetrievalK         int
	ContextTokenBudget int

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Chunking defaults
	DefaultStrategy     string
	DefaultChunkSize    int
	DefaultChunkOverlap int

	// State lifetimes
	SessionTTL time.Duration
	JobTTL     time.Duration

	// Chunk export; empty disables it.
	ExportDir string

	// PDF
	PDFFallbackPdftotext bool
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first if present. When DOCQA_CONFIG names a
// YAML file, its keys (same names as the environment variables) fill in
// anything the environment leaves unset.
func Load() (Config, error) {
	_ = godotenv.Load()

	src := source{}
	if path := os.Getenv("DOCQA_CONFIG"); path != "" {
		file, err := readYAML(path)
		if err != nil {
			return Config{}, err
		}
		src.file = file
	}
	return src.load(), nil
}

func (s source) load() Config {
	cfg := Config{
		Port: s.getStr("PORT", "8090"),

		APIKey: s.getStr("DOCQA_API_KEY", ""),

		OllamaBaseURL:  s.getStr("OLLAMA_BASE_URL", "http://localhost:11434/v1"),
		OllamaAPIKey:   s.getStr("OLLAMA_API_KEY", ""),
		OllamaModel:    s.getStr("OLLAMA_MODEL", "llama3"),
		LLMTemperature: s.getFloat("LLM_TEMPERATURE", 0.7),
		LLMTopP:        s.getFloat("LLM_TOP_P", 0.9),
		LLMMaxTokens:   s.getInt("LLM_MAX_TOKENS", 2000),

		EmbeddingProvider:  s.getStr("EMBEDDING_PROVIDER", "ollama"),
		EmbeddingModel:     s.getStr("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDim:       s.getInt("EMBEDDING_DIM", 0),
		EmbedBatchSize:     s.getInt("EMBED_BATCH_SIZE", 32),
		EmbedConcurrency:   s.getInt("EMBED_CONCURRENCY", 4),
		EmbedCacheSize:     s.getInt("EMBED_CACHE_SIZE", 4096),
		RetrievalK:         s.getInt("RETRIEVAL_K", 4),
		ContextTokenBudget: s.getInt("CONTEXT_TOKEN_BUDGET", 3000),

		WorkerCount:  s.getInt("WORKER_COUNT", 2),
		MaxQueueSize: s.getInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: s.getInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		DefaultStrategy:     s.getStr("DEFAULT_STRATEGY", string(chunker.StrategyWords)),
		DefaultChunkSize:    s.getInt("DEFAULT_CHUNK_SIZE", 800),
		DefaultChunkOverlap: s.getInt("DEFAULT_CHUNK_OVERLAP", 0),

		SessionTTL: s.getDuration("SESSION_TTL", 24*time.Hour),
		JobTTL:     s.getDuration("JOB_TTL", 1*time.Hour),

		ExportDir: s.getStr("EXPORT_DIR", ""),

		PDFFallbackPdftotext: s.getBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 32
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 4
	}
	if cfg.RetrievalK <= 0 {
		cfg.RetrievalK = 4
	}
	if cfg.LLMMaxTokens <= 0 {
		cfg.LLMMaxTokens = 2000
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// ChunkConfig returns the default chunking configuration.
func (c Config) ChunkConfig() chunker.Config {
	return chunker.Config{
		Strategy:  chunker.Strategy(strings.ToLower(c.DefaultStrategy)),
		ChunkSize: c.DefaultChunkSize,
		Overlap:   c.DefaultChunkOverlap,
	}
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOCQA_API_KEY is required")
	}
	if err := c.ChunkConfig().Validate(); err != nil {
		return fmt.Errorf("chunk defaults: %w", err)
	}
	switch c.EmbeddingProvider {
	case "ollama", "openai", "local", "none":
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER %q is not one of ollama, openai, local, none", c.EmbeddingProvider)
	}
	return nil
}

func readYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

// source resolves a key from the environment, then the YAML file.
type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s source) getStr(key, fallback string) string {
	if v := s.lookup(key); v != "" {
		return v
	}
	return fallback
}

func (s source) getInt(key string, fallback int) int {
	if v := s.lookup(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func (s source) getInt64(key string, fallback int64) int64 {
	if v := s.lookup(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func (s source) getFloat(key string, fallback float64) float64 {
	if v := s.lookup(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func (s source) getBool(key string, fallback bool) bool {
	if v := s.lookup(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func (s source) getDuration(key string, fallback time.Duration) time.Duration {
	if v := s.lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
