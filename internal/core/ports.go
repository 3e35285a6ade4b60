package core

import (
	"context"
	"time"
)

// Normalizer turns a raw transport payload into a canonical Email. A
// payload that cannot be parsed as a structured message at all is an
// error; the caller drops the record. It never returns a partially
// populated Email.
type Normalizer interface {
	Normalize(raw RawMessage, account, folder string) (*Email, error)
}

// Classifier is one classification strategy. Strategies may fail; the
// ClassifierService guarantees a total result on top of them.
type Classifier interface {
	Classify(ctx context.Context, email *Email) (Category, error)
}

// CompletionClient is the delegated text-generation collaborator.
// Treated as fallible and slow; never awaited without a fallback.
type CompletionClient interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// EmbeddingClient produces a fixed-length vector for a piece of text.
// An empty vector with a nil error signals "unavailable"; callers treat
// that as "no match".
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmailIndexer persists classified emails into the search index. Only
// the persistence side lives in this core; querying is a separate
// collaborator.
type EmailIndexer interface {
	EnsureSchema(ctx context.Context) error
	Put(ctx context.Context, email *ClassifiedEmail) error
}

// Notifier posts a chat notification for a classified email.
type Notifier interface {
	Notify(ctx context.Context, email *ClassifiedEmail) error
}

// WebhookSink delivers a webhook payload for a classified email.
type WebhookSink interface {
	Send(ctx context.Context, email *ClassifiedEmail) error
}

// CacheRepository stores delegated classification results so that
// re-deliveries after a reconnect do not trigger a second model call.
type CacheRepository interface {
	Get(ctx context.Context, key string) (Category, error)
	Set(ctx context.Context, key string, category Category, ttl time.Duration) error
	Cleanup(ctx context.Context) error
}

// MailboxTransport opens sessions against one account's mailbox.
// Connect returns an AuthError for credential failures, which are
// terminal for that account.
type MailboxTransport interface {
	Connect(ctx context.Context, account Account) (MailboxSession, error)
}

// MailboxSession is one live connection to a mailbox folder.
type MailboxSession interface {
	// Search returns refs of messages no older than since.
	Search(ctx context.Context, since time.Time) ([]MessageRef, error)
	// Fetch retrieves the raw messages for the given refs.
	Fetch(ctx context.Context, refs []MessageRef) ([]RawMessage, error)
	// Total reports the number of messages currently in the folder.
	Total() uint32
	// WaitNew blocks until the server signals new mail and returns the
	// new total message count.
	WaitNew(ctx context.Context) (uint32, error)
	Close() error
}
