// Package webhook delivers interested-lead events to an external URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
	"github.com/mikey/onebox/internal/utils"
)

// previewLimit caps the body excerpt carried in the payload.
const previewLimit = 250

type payload struct {
	Event string      `json:"event"`
	Data  payloadData `json:"data"`
}

type payloadData struct {
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Account  string `json:"account"`
	Folder   string `json:"folder"`
	Category string `json:"category"`
	Date     string `json:"date"`
	Preview  string `json:"preview"`
}

// Sink implements the WebhookSink port with a plain JSON POST.
type Sink struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewSink creates a webhook sink for the given URL.
func NewSink(url string, logger *zap.Logger) *Sink {
	return &Sink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Send posts the interested_lead event.
func (s *Sink) Send(ctx context.Context, email *core.ClassifiedEmail) error {
	body, err := json.Marshal(payload{
		Event: "interested_lead",
		Data: payloadData{
			From:     email.From,
			Subject:  email.Subject,
			Account:  email.Account,
			Folder:   email.Folder,
			Category: string(email.Category),
			Date:     email.Date.Format(time.RFC3339),
			Preview:  utils.Snippet(email.Text, previewLimit),
		},
	})
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	s.logger.Info("Webhook delivered", zap.String("subject", email.Subject))
	return nil
}
