// Package reply generates context-grounded reply suggestions.
package reply

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
)

// ErrNoContext is returned when no stored context is relevant enough to
// ground a reply. Callers treat it as "cannot suggest", not a failure.
var ErrNoContext = errors.New("no relevant context for reply")

const promptFormat = `
You are a helpful, polite assistant writing email replies.

Incoming email:
"%s"

Use the following context:
"%s"

Write a short, professional response to the sender: %s.
`

// Service suggests replies by retrieving the best context match and
// conditioning the completion model on it.
type Service struct {
	store  *core.ContextStore
	llm    core.CompletionClient
	logger *zap.Logger
}

// NewService creates a reply suggestion service.
func NewService(store *core.ContextStore, llm core.CompletionClient, logger *zap.Logger) *Service {
	return &Service{store: store, llm: llm, logger: logger}
}

// Suggest returns a generated reply for the email, grounded on the most
// relevant stored context fragment. ErrNoContext means no fragment was
// usable; other errors are retrieval or model failures.
func (s *Service) Suggest(ctx context.Context, email *core.Email) (string, error) {
	match, err := s.store.FindBestMatch(ctx, email.Text)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}
	if match == nil {
		return "", ErrNoContext
	}
	if match.Fallback {
		s.logger.Warn("No topical context matched, using fallback fragment")
	}

	prompt := fmt.Sprintf(promptFormat, email.Text, match.Item.Text, email.From)
	messages := []core.ChatMessage{
		{Role: core.RoleSystem, Content: "You are a polite email assistant."},
		{Role: core.RoleUser, Content: prompt},
	}

	suggestion, err := s.llm.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generating reply: %w", err)
	}

	s.logger.Info("Reply generated",
		zap.String("from", email.From),
		zap.String("subject", email.Subject))
	return suggestion, nil
}
