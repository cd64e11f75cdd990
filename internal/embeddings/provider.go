package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/kamusis/upksearch/internal/config"
)

// Provider embeds texts into fixed-length float vectors.
//
// Implementations must be deterministic for the same input text and model and
// must return exactly one vector per input, in input order.
type Provider interface {
	ModelID() string
	Dim() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewFromConfig returns the provider named by cfg.Provider.
func NewFromConfig(cfg config.Embeddings) (Provider, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("embeddings provider is not configured (set %s_EMBEDDINGS_PROVIDER)", config.EnvPrefix)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embeddings model is not configured (set %s_EMBEDDINGS_MODEL)", config.EnvPrefix)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.BaseURL, cfg.Model, cfg.APIKey, timeout), nil
	case "ollama":
		return NewOllama(cfg.BaseURL, cfg.Model, timeout), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}
