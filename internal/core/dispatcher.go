package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Dispatcher fans a classified email out to the search index and,
// for Interested leads, to the notification channels. Sinks fail
// independently: an index-write failure never suppresses the
// notification for the same message. Delivery is at-least-once;
// downstream idempotency handles re-deliveries, the dispatcher does
// not deduplicate.
type Dispatcher struct {
	indexer  EmailIndexer
	notifier Notifier
	webhook  WebhookSink
	logger   *zap.Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. notifier and webhook may be nil
// when the corresponding channel is not configured.
func NewDispatcher(indexer EmailIndexer, notifier Notifier, webhook WebhookSink, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		indexer:  indexer,
		notifier: notifier,
		webhook:  webhook,
		logger:   logger,
		now:      time.Now,
	}
}

// Dispatch persists the classified email and raises lead notifications.
// The notification steps run regardless of the index-write outcome
// since the category is computed before any sink is attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, email *Email, category Category) DispatchResult {
	classified := &ClassifiedEmail{
		Email:     *email,
		Category:  category,
		IndexedAt: d.now(),
	}

	var res DispatchResult
	if err := d.indexer.Put(ctx, classified); err != nil {
		d.logger.Error("Failed to index email",
			zap.Error(err),
			zap.String("from", email.From),
			zap.String("subject", email.Subject))
		res.Err = multierr.Append(res.Err, fmt.Errorf("index: %w", err))
	} else {
		res.Indexed = true
	}

	if category != CategoryInterested {
		return res
	}

	if d.notifier != nil {
		if err := d.notifier.Notify(ctx, classified); err != nil {
			d.logger.Error("Failed to send lead notification",
				zap.Error(err),
				zap.String("from", email.From))
			res.Err = multierr.Append(res.Err, fmt.Errorf("notify: %w", err))
		} else {
			res.Notified = true
		}
	}

	if d.webhook != nil {
		if err := d.webhook.Send(ctx, classified); err != nil {
			d.logger.Error("Failed to trigger lead webhook",
				zap.Error(err),
				zap.String("from", email.From))
			res.Err = multierr.Append(res.Err, fmt.Errorf("webhook: %w", err))
		} else {
			res.WebhookSent = true
		}
	}

	return res
}
