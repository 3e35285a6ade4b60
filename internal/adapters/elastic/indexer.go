// Package elastic persists classified emails into Elasticsearch.
package elastic

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
)

// emailMapping pins the field types queries depend on: exact-match
// keywords for the filterable fields, analyzed text for search.
const emailMapping = `{
  "mappings": {
    "properties": {
      "folder":    { "type": "keyword" },
      "account":   { "type": "keyword" },
      "category":  { "type": "keyword" },
      "subject":   { "type": "text" },
      "from":      { "type": "text" },
      "to":        { "type": "text" },
      "text":      { "type": "text" },
      "date":      { "type": "date" },
      "indexedAt": { "type": "date" }
    }
  }
}`

// Indexer implements the EmailIndexer port on go-elasticsearch.
type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger *zap.Logger
}

// NewIndexer creates an indexer against the given cluster URL.
func NewIndexer(url, index string, logger *zap.Logger) (*Indexer, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  []string{url},
		MaxRetries: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Elasticsearch client: %w", err)
	}
	return &Indexer{client: client, index: index, logger: logger}, nil
}

// EnsureSchema creates the index with its mapping when it does not
// exist yet. Called once at startup; failure is fatal for the daemon.
func (i *Indexer) EnsureSchema(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.index},
		i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("checking index %q: %w", i.index, err)
	}
	defer drain(res.Body)

	switch res.StatusCode {
	case 200:
		i.logger.Debug("Index already exists", zap.String("index", i.index))
		return nil
	case 404:
	default:
		return fmt.Errorf("checking index %q: unexpected status %d", i.index, res.StatusCode)
	}

	createRes, err := i.client.Indices.Create(i.index,
		i.client.Indices.Create.WithContext(ctx),
		i.client.Indices.Create.WithBody(strings.NewReader(emailMapping)))
	if err != nil {
		return fmt.Errorf("creating index %q: %w", i.index, err)
	}
	defer drain(createRes.Body)

	if createRes.IsError() {
		return fmt.Errorf("creating index %q: %s", i.index, createRes.String())
	}

	i.logger.Info("Index created", zap.String("index", i.index))
	return nil
}

// Put indexes one classified email. The message ID doubles as the
// document ID when present so re-deliveries overwrite rather than
// duplicate.
func (i *Indexer) Put(ctx context.Context, email *core.ClassifiedEmail) error {
	opts := []func(*esapi.IndexRequest){
		i.client.Index.WithContext(ctx),
	}
	if email.MessageID != "" {
		opts = append(opts, i.client.Index.WithDocumentID(email.MessageID))
	}

	res, err := i.client.Index(i.index, esutil.NewJSONReader(email), opts...)
	if err != nil {
		return fmt.Errorf("indexing email: %w", err)
	}
	defer drain(res.Body)

	if res.IsError() {
		return fmt.Errorf("indexing email: %s", res.String())
	}

	i.logger.Debug("Email indexed",
		zap.String("subject", email.Subject),
		zap.String("category", string(email.Category)))
	return nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
