package embedder

import (
	"fmt"
	"log/slog"
	"strings"
)

const (
	ProviderOllama = "ollama"
	ProviderLocal  = "local"
	ProviderNone   = "none" // embeddings disabled; retrieval is lexical only
)

// Config selects and configures a backend.
type Config struct {
	Provider string
	OpenAIOptions
}

// New creates the embedder named by cfg.Provider. ProviderNone yields a
// nil Embedder and no error.
func New(cfg Config, log *slog.Logger) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama, "openai", "":
		return NewOpenAI(cfg.OpenAIOptions, log), nil
	case ProviderLocal:
		return NewLocal(cfg.Dimension), nil
	case ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}
