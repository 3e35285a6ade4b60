// Package imap implements the mailbox transport port with go-imap v2.
package imap

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
)

// idleRestart bounds the lifetime of a single IDLE command. Servers are
// allowed to drop connections idling past 30 minutes (RFC 2177), so the
// command is reissued before that.
const idleRestart = 25 * time.Minute

// Transport dials IMAP servers and yields live sessions.
type Transport struct {
	logger *zap.Logger
}

// NewTransport creates an IMAP transport.
func NewTransport(logger *zap.Logger) *Transport {
	return &Transport{logger: logger}
}

// Connect dials, authenticates, and selects the account's folder. A
// login rejection comes back as core.AuthError so the supervisor can
// stop retrying that account.
func (t *Transport) Connect(ctx context.Context, account core.Account) (core.MailboxSession, error) {
	s := &session{
		newMail: make(chan uint32, 1),
		logger:  t.logger.With(zap.String("account", account.Label())),
	}

	options := &imapclient.Options{
		UnilateralDataHandler: &imapclient.UnilateralDataHandler{
			Mailbox: s.handleMailboxUpdate,
		},
	}

	addr := account.Addr()
	var client *imapclient.Client
	var err error
	if account.TLS {
		client, err = imapclient.DialTLS(addr, options)
	} else {
		client, err = imapclient.DialStartTLS(addr, options)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(account.Username, account.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, &core.AuthError{Account: account.Label(), Err: err}
	}
	s.client = client

	folder := account.Folder
	if folder == "" {
		folder = "INBOX"
	}
	selectData, err := client.Select(folder, nil).Wait()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("selecting %s: %w", folder, err)
	}
	s.total.Store(selectData.NumMessages)

	s.logger.Info("Mailbox selected",
		zap.String("folder", folder),
		zap.Uint32("messages", selectData.NumMessages))
	return s, nil
}

type session struct {
	client  *imapclient.Client
	total   atomic.Uint32
	newMail chan uint32
	logger  *zap.Logger
}

// handleMailboxUpdate runs on the client's goroutine whenever the
// server pushes a status update (EXISTS during IDLE). The signal is
// coalesced: one pending notification is enough.
func (s *session) handleMailboxUpdate(data *imapclient.UnilateralDataMailbox) {
	if data.NumMessages == nil {
		return
	}
	s.total.Store(*data.NumMessages)
	select {
	case s.newMail <- *data.NumMessages:
	default:
	}
}

// Search returns sequence numbers of messages received since the given
// time, per the server's SINCE semantics (whole-day granularity).
func (s *session) Search(ctx context.Context, since time.Time) ([]core.MessageRef, error) {
	criteria := &imap.SearchCriteria{Since: since}
	searchData, err := s.client.Search(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	seqNums := searchData.AllSeqNums()
	refs := make([]core.MessageRef, 0, len(seqNums))
	for _, n := range seqNums {
		refs = append(refs, core.MessageRef(n))
	}
	return refs, nil
}

// Fetch retrieves full raw messages for the given sequence numbers.
// Messages that fail to collect are skipped with a warning; the rest of
// the batch still comes back.
func (s *session) Fetch(ctx context.Context, refs []core.MessageRef) ([]core.RawMessage, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	var seqSet imap.SeqSet
	for _, ref := range refs {
		seqSet.AddNum(uint32(ref))
	}

	section := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		InternalDate: true,
		UID:          true,
		BodySection:  []*imap.FetchItemBodySection{section},
	}

	fetchCmd := s.client.Fetch(seqSet, fetchOpts)
	defer fetchCmd.Close()

	var raws []core.RawMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			s.logger.Warn("Failed to collect message", zap.Error(err))
			continue
		}
		body := buf.FindBodySection(section)
		if body == nil {
			s.logger.Warn("Message had no body section", zap.Uint32("seq", buf.SeqNum))
			continue
		}
		raws = append(raws, core.RawMessage{
			Ref:  core.MessageRef(buf.SeqNum),
			Date: buf.InternalDate,
			Body: body,
		})
	}

	if err := fetchCmd.Close(); err != nil {
		return raws, fmt.Errorf("fetching messages: %w", err)
	}
	return raws, nil
}

// Total reports the last message count pushed by the server.
func (s *session) Total() uint32 {
	return s.total.Load()
}

// WaitNew idles until the server announces new mail, restarting the
// IDLE command periodically to stay within server limits.
func (s *session) WaitNew(ctx context.Context) (uint32, error) {
	for {
		idleCmd, err := s.client.Idle()
		if err != nil {
			return 0, fmt.Errorf("starting idle: %w", err)
		}

		timer := time.NewTimer(idleRestart)
		select {
		case total := <-s.newMail:
			timer.Stop()
			if err := idleCmd.Close(); err != nil {
				return 0, fmt.Errorf("stopping idle: %w", err)
			}
			if err := idleCmd.Wait(); err != nil {
				return 0, fmt.Errorf("awaiting idle completion: %w", err)
			}
			return total, nil
		case <-timer.C:
			if err := idleCmd.Close(); err != nil {
				return 0, fmt.Errorf("stopping idle: %w", err)
			}
			if err := idleCmd.Wait(); err != nil {
				return 0, fmt.Errorf("awaiting idle completion: %w", err)
			}
			s.logger.Debug("Restarting idle")
		case <-ctx.Done():
			timer.Stop()
			_ = idleCmd.Close()
			_ = idleCmd.Wait()
			return 0, ctx.Err()
		}
	}
}

// Close logs out cleanly; the server side drops the connection.
func (s *session) Close() error {
	if err := s.client.Logout().Wait(); err != nil {
		// Fall back to a hard close when logout fails mid-drop.
		if closeErr := s.client.Close(); closeErr != nil && closeErr != io.ErrClosedPipe {
			return closeErr
		}
	}
	return nil
}
