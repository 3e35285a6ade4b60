package config

import "fmt"

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider    string
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey         string
	ModelName      string
	EmbeddingModel string
	MaxTokens      int
	Temperature    float32
	TopP           float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// IMAPAccountConfig represents one monitored mailbox
type IMAPAccountConfig struct {
	Name     string `mapstructure:"name"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Folder   string `mapstructure:"folder"`
	TLS      bool   `mapstructure:"tls"`
}

// IMAPConfig represents the mailbox ingestion configuration
type IMAPConfig struct {
	BackfillWindowDays int
	ReconnectDelay     string
	MaxReconnects      int
	Accounts           []IMAPAccountConfig
}

// ElasticConfig represents the search index configuration
type ElasticConfig struct {
	URL   string
	Index string
}

// SlackConfig represents the chat notification configuration
type SlackConfig struct {
	Token   string
	Channel string
}

// WebhookConfig represents the webhook sink configuration
type WebhookConfig struct {
	URL string
}

// ClassifierConfig represents classification strategy selection
type ClassifierConfig struct {
	Mode        string
	SpamDomains []string
}

// RetrievalConfig represents the reply-context retrieval configuration
type RetrievalConfig struct {
	Mode        string
	ContextPath string
}

// CacheConfig represents the classification cache configuration
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              string
	CleanupFrequency string
	SQLitePath       string
	MySQLDSN         string
}

// PipelineConfig represents the worker pool configuration
type PipelineConfig struct {
	Workers int
	Buffer  int
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider:    c.GetString("llm.provider"),
		MaxBodySize: c.GetInt("llm.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:         c.GetString("openai.api_key"),
		ModelName:      c.GetString("openai.model_name"),
		EmbeddingModel: c.GetString("openai.embedding_model"),
		MaxTokens:      c.GetInt("openai.max_tokens"),
		Temperature:    float32(c.GetFloat64("openai.temperature")),
		TopP:           float32(c.GetFloat64("openai.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetIMAP returns the IMAP configuration with per-account defaults applied
func (c *Config) GetIMAP() (IMAPConfig, error) {
	var accounts []IMAPAccountConfig
	if err := c.v.UnmarshalKey("imap.accounts", &accounts); err != nil {
		return IMAPConfig{}, fmt.Errorf("parsing imap.accounts: %w", err)
	}

	for i := range accounts {
		if accounts[i].Port == 0 {
			accounts[i].Port = 993
		}
		if accounts[i].Folder == "" {
			accounts[i].Folder = "INBOX"
		}
	}

	return IMAPConfig{
		BackfillWindowDays: c.GetInt("imap.backfill_window_days"),
		ReconnectDelay:     c.GetString("imap.reconnect_delay"),
		MaxReconnects:      c.GetInt("imap.max_reconnects"),
		Accounts:           accounts,
	}, nil
}

// GetElastic returns the search index configuration
func (c *Config) GetElastic() ElasticConfig {
	return ElasticConfig{
		URL:   c.GetString("elastic.url"),
		Index: c.GetString("elastic.index"),
	}
}

// GetSlack returns the chat notification configuration
func (c *Config) GetSlack() SlackConfig {
	return SlackConfig{
		Token:   c.GetString("slack.token"),
		Channel: c.GetString("slack.channel"),
	}
}

// GetWebhook returns the webhook sink configuration
func (c *Config) GetWebhook() WebhookConfig {
	return WebhookConfig{
		URL: c.GetString("webhook.url"),
	}
}

// GetClassifier returns the classification strategy configuration
func (c *Config) GetClassifier() ClassifierConfig {
	return ClassifierConfig{
		Mode:        c.GetString("classifier.mode"),
		SpamDomains: c.GetStringSlice("classifier.spam_domains"),
	}
}

// GetRetrieval returns the reply-context retrieval configuration
func (c *Config) GetRetrieval() RetrievalConfig {
	return RetrievalConfig{
		Mode:        c.GetString("retrieval.mode"),
		ContextPath: c.GetString("retrieval.context_path"),
	}
}

// GetCache returns the classification cache configuration
func (c *Config) GetCache() CacheConfig {
	return CacheConfig{
		Type:             c.GetString("cache.type"),
		Enabled:          c.GetBool("cache.enabled"),
		TTL:              c.GetString("cache.ttl"),
		CleanupFrequency: c.GetString("cache.cleanup_frequency"),
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
	}
}

// GetPipeline returns the worker pool configuration
func (c *Config) GetPipeline() PipelineConfig {
	return PipelineConfig{
		Workers: c.GetInt("pipeline.workers"),
		Buffer:  c.GetInt("pipeline.buffer"),
	}
}
