package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/adapters/openai"
	"github.com/mikey/onebox/internal/config"
	"github.com/mikey/onebox/internal/core"
)

// RetrievalFactory creates the context store used for reply grounding
type RetrievalFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRetrievalFactory creates a new retrieval factory
func NewRetrievalFactory(cfg *config.Config, logger *zap.Logger) *RetrievalFactory {
	return &RetrievalFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateContextStore builds the store in the configured retrieval mode.
// Embedding mode uses the OpenAI embedding client; keyword mode needs
// no external service.
func (f *RetrievalFactory) CreateContextStore() (*core.ContextStore, error) {
	retrievalCfg := f.cfg.GetRetrieval()

	switch retrievalCfg.Mode {
	case "embedding":
		embedder, err := openai.NewFactory(f.cfg, f.logger).CreateEmbeddingClient()
		if err != nil {
			return nil, fmt.Errorf("creating embedding client: %w", err)
		}
		return core.NewContextStore(embedder, f.logger), nil
	case "keyword":
		return core.NewContextStore(nil, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported retrieval mode: %s", retrievalCfg.Mode)
	}
}
