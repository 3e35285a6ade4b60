package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/utils"
)

// Rule keyword tables for the local classification strategy. Rules are
// evaluated in priority order: meeting and out-of-office signals are
// higher precision than the generic interest signal, so they win ties.
var (
	meetingKeywords = []string{
		"interview",
		"meeting booked",
		"meeting confirmed",
		"calendar invite",
		"call scheduled",
		"see you at",
		"appointment",
	}
	outOfOfficeKeywords = []string{
		"out of office",
		"out of the office",
		"on vacation",
		"annual leave",
		"automatic reply",
		"auto-reply",
	}
	interestKeywords = []string{
		"interested",
		"sounds good",
		"tell me more",
		"book a demo",
		"pricing",
		"send me a quote",
		"schedule a call",
	}
	spamKeywords = []string{
		"unsubscribe",
		"lottery",
		"you have won",
		"act now",
		"claim your prize",
		"limited time offer",
	}
)

// RuleClassifier is the deterministic local strategy: a case-insensitive
// keyword scan over subject, body and sender. First matching rule wins.
type RuleClassifier struct {
	spamDomains []string
}

// NewRuleClassifier creates a rule classifier. spamDomains are sender
// domains always classified as spam, checked after the content rules.
func NewRuleClassifier(spamDomains []string) *RuleClassifier {
	normalized := make([]string, 0, len(spamDomains))
	for _, d := range spamDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	return &RuleClassifier{spamDomains: normalized}
}

func (c *RuleClassifier) Classify(_ context.Context, email *Email) (Category, error) {
	haystack := strings.ToLower(email.Subject + " " + email.Text)
	switch {
	case containsAny(haystack, meetingKeywords):
		return CategoryMeetingBooked, nil
	case containsAny(haystack, outOfOfficeKeywords):
		return CategoryOutOfOffice, nil
	case containsAny(haystack, interestKeywords):
		return CategoryInterested, nil
	case containsAny(haystack, spamKeywords), c.spamSender(email.From):
		return CategorySpam, nil
	}
	return CategoryNotInterested, nil
}

func (c *RuleClassifier) spamSender(from string) bool {
	parts := strings.Split(strings.ToLower(from), "@")
	if len(parts) != 2 {
		return false
	}
	domain := strings.Trim(parts[1], "> ")
	for _, d := range c.spamDomains {
		if domain == d {
			return true
		}
	}
	return false
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

const classifyPromptFormat = `You are an intelligent email classifier.
Given the following email content, classify it into one of these categories:
- Interested
- Meeting Booked
- Not Interested
- Spam
- Out of Office

Respond with only one of the above categories. No explanation.

---

From: %s
Subject: %s
Body:
%s`

// LLMClassifier delegates classification to a text-generation
// collaborator and matches the free-text answer against the category
// enumeration.
type LLMClassifier struct {
	llm           CompletionClient
	textProcessor *utils.TextProcessor
	maxBodySize   int
	logger        *zap.Logger
}

// NewLLMClassifier creates a delegated classifier. maxBodySize bounds
// the body text sent to the model.
func NewLLMClassifier(llm CompletionClient, textProcessor *utils.TextProcessor, maxBodySize int, logger *zap.Logger) *LLMClassifier {
	return &LLMClassifier{
		llm:           llm,
		textProcessor: textProcessor,
		maxBodySize:   maxBodySize,
		logger:        logger,
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, email *Email) (Category, error) {
	body := c.textProcessor.ProcessText(email.Text, c.maxBodySize)
	prompt := fmt.Sprintf(classifyPromptFormat, email.From, email.Subject, body)

	response, err := c.llm.Complete(ctx, []ChatMessage{
		{Role: RoleSystem, Content: "You are an email classification assistant."},
		{Role: RoleUser, Content: prompt},
	})
	if err != nil {
		return CategoryUncategorized, fmt.Errorf("delegated classification: %w", err)
	}

	category, ok := MatchCategory(response)
	if !ok {
		c.logger.Warn("Model response named no known category",
			zap.String("response", response),
			zap.String("from", email.From))
		return CategoryUncategorized, nil
	}
	return category, nil
}

// ClassifierService makes classification total: any strategy failure
// degrades to Uncategorized instead of propagating. Delegated results
// are cached so a message re-fetched after a reconnect does not cost a
// second model call.
type ClassifierService struct {
	strategy     Classifier
	cache        CacheRepository
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
}

// NewClassifierService creates the classification service. cache may be
// nil when caching is disabled or the strategy is cheap to re-run.
func NewClassifierService(
	strategy Classifier,
	cache CacheRepository,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
) *ClassifierService {
	return &ClassifierService{
		strategy:     strategy,
		cache:        cache,
		logger:       logger,
		cacheEnabled: cacheEnabled && cache != nil,
		cacheTTL:     cacheTTL,
	}
}

// Classify assigns a category to the email. It never fails.
func (s *ClassifierService) Classify(ctx context.Context, email *Email) Category {
	key := email.CacheKey()
	if s.cacheEnabled {
		if category, err := s.cache.Get(ctx, key); err == nil {
			s.logger.Debug("Classification cache hit", zap.String("key", key))
			return category
		}
	}

	category, err := s.strategy.Classify(ctx, email)
	if err != nil {
		s.logger.Warn("Classification failed, degrading to Uncategorized",
			zap.Error(err),
			zap.String("from", email.From),
			zap.String("subject", email.Subject))
		return CategoryUncategorized
	}

	if s.cacheEnabled && category != CategoryUncategorized {
		if err := s.cache.Set(ctx, key, category, s.cacheTTL); err != nil {
			s.logger.Error("Failed to update classification cache", zap.Error(err))
		}
	}

	s.logger.Info("Email classified",
		zap.String("from", email.From),
		zap.String("category", string(category)))
	return category
}
