package core

import (
	"fmt"
	"strings"
	"time"
)

// Category is one of the fixed classification outcomes applied to every
// processed email.
type Category string

const (
	CategoryInterested    Category = "Interested"
	CategoryMeetingBooked Category = "Meeting Booked"
	CategoryNotInterested Category = "Not Interested"
	CategorySpam          Category = "Spam"
	CategoryOutOfOffice   Category = "Out of Office"
	CategoryUncategorized Category = "Uncategorized"
)

// matchOrder lists category names longest-first so that free-form model
// output saying "Not Interested" is never claimed by the substring
// "Interested".
var matchOrder = []Category{
	CategoryMeetingBooked,
	CategoryNotInterested,
	CategoryOutOfOffice,
	CategoryInterested,
	CategorySpam,
}

// MatchCategory finds a category name inside free-form text, case
// insensitively. It returns CategoryUncategorized and false when no
// category name appears.
func MatchCategory(s string) (Category, bool) {
	lowered := strings.ToLower(s)
	for _, c := range matchOrder {
		if strings.Contains(lowered, strings.ToLower(string(c))) {
			return c, true
		}
	}
	return CategoryUncategorized, false
}

// Attachment describes one attachment without carrying its content.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Email is the canonical message record produced by the normalizer.
// It is immutable after creation. Optional fields are normalized to
// empty values, never left unset, so later stages can assume total
// fields.
type Email struct {
	Account     string       `json:"account"`
	Folder      string       `json:"folder"`
	Subject     string       `json:"subject"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	CC          string       `json:"cc"`
	BCC         string       `json:"bcc"`
	ReplyTo     string       `json:"replyTo"`
	Date        time.Time    `json:"date"`
	Text        string       `json:"text"`
	HTML        string       `json:"html"`
	MessageID   string       `json:"messageId"`
	Attachments []Attachment `json:"attachments"`
}

// CacheKey identifies the email for classification caching. The
// collaborator-assigned message id is stable across re-fetches after a
// reconnect, which is exactly the case the cache exists for.
func (e *Email) CacheKey() string {
	if e.MessageID != "" {
		return e.MessageID
	}
	return e.From + "|" + e.Subject
}

// ClassifiedEmail is an Email plus its category, persisted once into
// the search index and never mutated afterwards.
type ClassifiedEmail struct {
	Email
	Category  Category  `json:"category"`
	IndexedAt time.Time `json:"indexedAt"`
}

// MessageRef is a transport-level reference (sequence position) to a
// message within a mailbox session.
type MessageRef uint32

// RawMessage is a message as fetched from the mailbox transport, before
// normalization.
type RawMessage struct {
	Ref  MessageRef
	Date time.Time // server-reported receipt time, zero when unknown
	Body []byte
}

// InboundMessage is what an account supervisor emits onto the shared
// pipeline stream.
type InboundMessage struct {
	Account string
	Folder  string
	Raw     RawMessage
}

// ContextItem is one reference passage used to ground generated replies.
type ContextItem struct {
	Text      string
	Embedding []float32
}

// ContextMatch is the outcome of a retrieval call. Fallback marks the
// keyword mode's documented default (first stored item, no topical
// overlap) so callers can tell it apart from a real match.
type ContextMatch struct {
	Item     ContextItem
	Score    float64
	Fallback bool
}

// DispatchResult reports the per-sink outcome of one dispatch. Err
// aggregates sink failures; a non-nil Err with Indexed or Notified set
// means the other sinks were still attempted.
type DispatchResult struct {
	Indexed     bool
	Notified    bool
	WebhookSent bool
	Err         error
}

// Chat roles understood by the completion collaborators.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ChatMessage is one turn of a completion prompt.
type ChatMessage struct {
	Role    string
	Content string
}

// Account identifies one configured mailbox synchronized independently.
type Account struct {
	Name     string
	Host     string
	Port     int
	Username string
	Password string
	Folder   string
	TLS      bool
}

// Label returns the identity used for logging and the Email.Account
// field.
func (a Account) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Username
}

// Addr returns the host:port dial target.
func (a Account) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// AuthError reports an authentication failure against a mailbox. It is
// terminal for the affected account; the supervisor will not reconnect.
type AuthError struct {
	Account string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Account, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
