package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/config"
	"github.com/mikey/onebox/internal/core"
	"github.com/mikey/onebox/internal/utils"
)

// ClassifierFactory creates the classification service based on configuration
type ClassifierFactory struct {
	cfg          *config.Config
	logger       *zap.Logger
	cacheFactory *CacheFactory
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger, cacheFactory *CacheFactory) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:          cfg,
		logger:       logger,
		cacheFactory: cacheFactory,
	}
}

// CreateClassifierService builds the classification strategy selected by
// classifier.mode and wraps it in the total classification service.
// Only the delegated strategy gets a cache; rules are cheap to re-run.
func (f *ClassifierFactory) CreateClassifierService(
	llm core.CompletionClient,
	cache core.CacheRepository,
	textProcessor *utils.TextProcessor,
) (*core.ClassifierService, error) {
	classifierCfg := f.cfg.GetClassifier()

	var strategy core.Classifier
	switch classifierCfg.Mode {
	case "rules":
		strategy = core.NewRuleClassifier(classifierCfg.SpamDomains)
		return core.NewClassifierService(strategy, nil, f.logger, false, 0), nil
	case "llm":
		llmCfg := f.cfg.GetLLM()
		strategy = core.NewLLMClassifier(llm, textProcessor, llmCfg.MaxBodySize, f.logger)
	default:
		return nil, fmt.Errorf("unsupported classifier mode: %s", classifierCfg.Mode)
	}

	ttl, err := f.cacheFactory.GetCacheTTL()
	if err != nil {
		return nil, fmt.Errorf("invalid cache ttl: %w", err)
	}
	return core.NewClassifierService(strategy, cache, f.logger, f.cacheFactory.IsCacheEnabled(), ttl), nil
}
