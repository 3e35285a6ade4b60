package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/adapters/bedrock"
	"github.com/mikey/onebox/internal/adapters/gemini"
	"github.com/mikey/onebox/internal/adapters/openai"
	"github.com/mikey/onebox/internal/config"
	"github.com/mikey/onebox/internal/core"
)

// CompletionFactory creates completion clients
type CompletionFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCompletionFactory creates a new completion client factory
func NewCompletionFactory(cfg *config.Config, logger *zap.Logger) *CompletionFactory {
	return &CompletionFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCompletionClient creates a completion client based on the configuration
func (f *CompletionFactory) CreateCompletionClient() (core.CompletionClient, error) {
	llmConfig := f.cfg.GetLLM()

	switch llmConfig.Provider {
	case "openai":
		factory := openai.NewFactory(f.cfg, f.logger)
		return factory.CreateCompletionClient()
	case "gemini":
		factory := gemini.NewFactory(f.cfg, f.logger)
		return factory.CreateCompletionClient()
	case "bedrock":
		factory := bedrock.NewFactory(f.cfg, f.logger)
		return factory.CreateCompletionClient()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}
