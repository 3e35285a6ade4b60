package di

import (
	"fmt"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/adapters/elastic"
	"github.com/mikey/onebox/internal/adapters/imap"
	"github.com/mikey/onebox/internal/adapters/slackhook"
	"github.com/mikey/onebox/internal/adapters/webhook"
	"github.com/mikey/onebox/internal/config"
	"github.com/mikey/onebox/internal/core"
	"github.com/mikey/onebox/internal/factory"
	"github.com/mikey/onebox/internal/logging"
	"github.com/mikey/onebox/internal/mailparse"
	"github.com/mikey/onebox/internal/reply"
	"github.com/mikey/onebox/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewCompletionFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewRetrievalFactory); err != nil {
		return nil, err
	}

	// Register completion client
	if err := container.Provide(func(f *factory.CompletionFactory) (core.CompletionClient, error) {
		return f.CreateCompletionClient()
	}); err != nil {
		return nil, err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register classifier service
	if err := container.Provide(func(
		f *factory.ClassifierFactory,
		llm core.CompletionClient,
		cache core.CacheRepository,
		tp *utils.TextProcessor,
	) (*core.ClassifierService, error) {
		return f.CreateClassifierService(llm, cache, tp)
	}); err != nil {
		return nil, err
	}

	// Register context store
	if err := container.Provide(func(f *factory.RetrievalFactory) (*core.ContextStore, error) {
		return f.CreateContextStore()
	}); err != nil {
		return nil, err
	}

	// Register email indexer
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (core.EmailIndexer, error) {
		elasticCfg := cfg.GetElastic()
		return elastic.NewIndexer(elasticCfg.URL, elasticCfg.Index, logger)
	}); err != nil {
		return nil, err
	}

	// Register notifier, nil when Slack is not configured
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.Notifier {
		slackCfg := cfg.GetSlack()
		if slackCfg.Token == "" || slackCfg.Channel == "" {
			logger.Warn("Slack not configured, lead notifications disabled")
			return nil
		}
		return slackhook.NewNotifier(slackCfg.Token, slackCfg.Channel, logger)
	}); err != nil {
		return nil, err
	}

	// Register webhook sink, nil when no URL is configured
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.WebhookSink {
		webhookCfg := cfg.GetWebhook()
		if webhookCfg.URL == "" {
			logger.Warn("Webhook not configured, lead webhooks disabled")
			return nil
		}
		return webhook.NewSink(webhookCfg.URL, logger)
	}); err != nil {
		return nil, err
	}

	// Register normalizer
	if err := container.Provide(func() core.Normalizer {
		return mailparse.New()
	}); err != nil {
		return nil, err
	}

	// Register dispatcher
	if err := container.Provide(core.NewDispatcher); err != nil {
		return nil, err
	}

	// Register pipeline
	if err := container.Provide(func(
		cfg *config.Config,
		normalizer core.Normalizer,
		classifier *core.ClassifierService,
		dispatcher *core.Dispatcher,
		logger *zap.Logger,
	) *core.Pipeline {
		pipelineCfg := cfg.GetPipeline()
		return core.NewPipeline(normalizer, classifier, dispatcher, logger, pipelineCfg.Workers, pipelineCfg.Buffer)
	}); err != nil {
		return nil, err
	}

	// Register mailbox transport
	if err := container.Provide(func(logger *zap.Logger) core.MailboxTransport {
		return imap.NewTransport(logger)
	}); err != nil {
		return nil, err
	}

	// Register supervisor group
	if err := container.Provide(func(
		cfg *config.Config,
		transport core.MailboxTransport,
		pipeline *core.Pipeline,
		logger *zap.Logger,
	) (*core.SupervisorGroup, error) {
		imapCfg, err := cfg.GetIMAP()
		if err != nil {
			return nil, err
		}
		reconnectDelay, err := time.ParseDuration(imapCfg.ReconnectDelay)
		if err != nil {
			return nil, fmt.Errorf("invalid imap.reconnect_delay: %w", err)
		}

		accounts := make([]core.Account, 0, len(imapCfg.Accounts))
		for _, a := range imapCfg.Accounts {
			accounts = append(accounts, core.Account{
				Name:     a.Name,
				Host:     a.Host,
				Port:     a.Port,
				Username: a.Username,
				Password: a.Password,
				Folder:   a.Folder,
				TLS:      a.TLS,
			})
		}

		supervisorCfg := core.SupervisorConfig{
			BackfillWindow: time.Duration(imapCfg.BackfillWindowDays) * 24 * time.Hour,
			ReconnectDelay: reconnectDelay,
			MaxReconnects:  imapCfg.MaxReconnects,
		}
		return core.NewSupervisorGroup(accounts, transport, pipeline.In(), supervisorCfg, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register reply service
	if err := container.Provide(reply.NewService); err != nil {
		return nil, err
	}

	return container, nil
}
