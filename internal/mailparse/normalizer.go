// Package mailparse turns raw RFC 5322 payloads into canonical emails.
package mailparse

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/mikey/onebox/internal/core"
)

// Normalizer implements core.Normalizer on top of go-message. It has no
// state beyond the clock used for the receipt-time default.
type Normalizer struct {
	clock func() time.Time
}

// New creates a normalizer.
func New() *Normalizer {
	return &Normalizer{clock: time.Now}
}

// Normalize parses the raw message into a canonical Email. Optional
// fields come back as empty strings or zero values so later stages
// never branch on missing fields. A payload that cannot be parsed as a
// structured message at all is an error; the caller drops the record.
func (n *Normalizer) Normalize(raw core.RawMessage, account, folder string) (*core.Email, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}
	defer mr.Close()

	header := mr.Header
	subject, _ := header.Subject()
	messageID, _ := header.MessageID()

	email := &core.Email{
		Account:   account,
		Folder:    folder,
		Subject:   subject,
		From:      addressField(header, "From"),
		To:        addressField(header, "To"),
		CC:        addressField(header, "Cc"),
		BCC:       addressField(header, "Bcc"),
		ReplyTo:   addressField(header, "Reply-To"),
		MessageID: messageID,
	}

	switch date, err := header.Date(); {
	case err == nil && !date.IsZero():
		email.Date = date
	case !raw.Date.IsZero():
		email.Date = raw.Date
	default:
		email.Date = n.clock()
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Body decode problems are not fatal; keep what parsed.
			break
		}
		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				if email.Text == "" {
					email.Text = string(body)
				}
			case strings.HasPrefix(contentType, "text/html"):
				if email.HTML == "" {
					email.HTML = string(body)
				}
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			size, _ := io.Copy(io.Discard, part.Body)
			email.Attachments = append(email.Attachments, core.Attachment{
				Filename:    filename,
				ContentType: contentType,
				Size:        size,
			})
		}
	}

	return email, nil
}

// addressField renders an address header the way the index stores it:
// a comma-joined list of "Name <addr>" entries, empty when absent.
func addressField(header mail.Header, key string) string {
	addrs, err := header.AddressList(key)
	if err != nil || len(addrs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.Name, a.Address))
		} else {
			parts = append(parts, a.Address)
		}
	}
	return strings.Join(parts, ", ")
}
