// Package slackhook posts interested-lead notifications to Slack.
package slackhook

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
	"github.com/mikey/onebox/internal/utils"
)

// snippetLimit caps the body excerpt shown in the channel.
const snippetLimit = 200

// Notifier implements the Notifier port with the Slack Web API.
type Notifier struct {
	client  *slack.Client
	channel string
	logger  *zap.Logger
}

// NewNotifier creates a notifier posting to the given channel.
func NewNotifier(token, channel string, logger *zap.Logger) *Notifier {
	return &Notifier{
		client:  slack.New(token),
		channel: channel,
		logger:  logger,
	}
}

// Notify posts the lead notification message.
func (n *Notifier) Notify(ctx context.Context, email *core.ClassifiedEmail) error {
	snippet := utils.Snippet(email.Text, snippetLimit)
	if snippet == "" {
		snippet = "[No text]"
	}

	msg := fmt.Sprintf("🚀 *New Interested Lead!*\n*From:* %s\n*Subject:* %s\n*Snippet:* %s",
		email.From, email.Subject, snippet)

	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(msg, false))
	if err != nil {
		return fmt.Errorf("posting Slack message: %w", err)
	}

	n.logger.Info("Slack notification sent", zap.String("subject", email.Subject))
	return nil
}
