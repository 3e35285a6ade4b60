package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// SessionState tracks where an account's supervisor is in its
// lifecycle.
type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateSyncing
	StateListening
	StateReconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSyncing:
		return "syncing"
	case StateListening:
		return "listening"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// SupervisorConfig bounds the backfill and reconnect behavior shared by
// every account supervisor.
type SupervisorConfig struct {
	BackfillWindow time.Duration
	ReconnectDelay time.Duration
	MaxReconnects  int
}

// InBackfillWindow reports whether a message dated t falls inside the
// sync window starting at cutoff. The boundary itself is included; a
// zero date (server reported none) is let through.
func InBackfillWindow(t, cutoff time.Time) bool {
	if t.IsZero() {
		return true
	}
	return !t.Before(cutoff)
}

// AccountSupervisor owns one account's mailbox session: an initial
// bounded backfill, then live listening, with reconnects isolated to
// this account. Session state is owned exclusively by the supervisor's
// own goroutine.
type AccountSupervisor struct {
	account   Account
	transport MailboxTransport
	out       chan<- InboundMessage
	cfg       SupervisorConfig
	logger    *zap.Logger

	state  atomic.Int32
	cursor MessageRef

	mu      sync.Mutex
	lastErr string
}

// NewAccountSupervisor creates a supervisor for one account publishing
// onto the shared pipeline channel.
func NewAccountSupervisor(
	account Account,
	transport MailboxTransport,
	out chan<- InboundMessage,
	cfg SupervisorConfig,
	logger *zap.Logger,
) *AccountSupervisor {
	return &AccountSupervisor{
		account:   account,
		transport: transport,
		out:       out,
		cfg:       cfg,
		logger:    logger.With(zap.String("account", account.Label())),
	}
}

// State returns the current session state.
func (s *AccountSupervisor) State() SessionState {
	return SessionState(s.state.Load())
}

// LastError returns the most recent session-level failure, empty when
// none occurred.
func (s *AccountSupervisor) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *AccountSupervisor) setState(st SessionState) {
	s.state.Store(int32(st))
	s.logger.Debug("Session state changed", zap.String("state", st.String()))
}

func (s *AccountSupervisor) fail(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}

// Run drives the account session until the context is cancelled or the
// account fails terminally. A failure on the very first connect stops
// this supervisor without retrying; restarting it is the caller's
// decision.
func (s *AccountSupervisor) Run(ctx context.Context) {
	defer s.setState(StateDisconnected)

	s.setState(StateConnecting)
	sess, err := s.transport.Connect(ctx, s.account)
	if err != nil {
		s.fail(err)
		s.logger.Error("Failed to connect mailbox", zap.Error(err))
		return
	}

	for {
		err := s.runSession(ctx, sess)
		_ = sess.Close()
		if err == nil || ctx.Err() != nil {
			return
		}

		s.fail(err)
		var authErr *AuthError
		if errors.As(err, &authErr) {
			s.logger.Error("Authentication rejected, giving up on account", zap.Error(err))
			return
		}
		s.logger.Warn("Session failed", zap.Error(err))

		sess = s.reconnect(ctx)
		if sess == nil {
			return
		}
	}
}

// runSession performs the bounded backfill and then listens for new
// mail. It returns nil on clean shutdown and an error on any session
// level failure, which the caller turns into a reconnect.
func (s *AccountSupervisor) runSession(ctx context.Context, sess MailboxSession) error {
	s.setState(StateSyncing)
	cutoff := time.Now().Add(-s.cfg.BackfillWindow)

	refs, err := sess.Search(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("backfill search: %w", err)
	}
	if len(refs) == 0 {
		s.logger.Info("No recent messages to backfill")
	} else {
		raws, err := sess.Fetch(ctx, refs)
		if err != nil {
			return fmt.Errorf("backfill fetch: %w", err)
		}
		emitted := 0
		for _, raw := range raws {
			if !InBackfillWindow(raw.Date, cutoff) {
				continue
			}
			if !s.emit(ctx, raw) {
				return nil
			}
			emitted++
		}
		s.logger.Info("Backfill complete", zap.Int("messages", emitted))
	}

	s.cursor = MessageRef(sess.Total())
	s.setState(StateListening)
	s.logger.Info("Listening for new mail", zap.Uint32("cursor", uint32(s.cursor)))

	for {
		total, err := sess.WaitNew(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("waiting for new mail: %w", err)
		}
		if MessageRef(total) <= s.cursor {
			continue
		}

		refs := make([]MessageRef, 0, MessageRef(total)-s.cursor)
		for ref := s.cursor + 1; ref <= MessageRef(total); ref++ {
			refs = append(refs, ref)
		}
		raws, err := sess.Fetch(ctx, refs)
		if err != nil {
			return fmt.Errorf("incremental fetch: %w", err)
		}
		for _, raw := range raws {
			if !s.emit(ctx, raw) {
				return nil
			}
		}
		s.cursor = MessageRef(total)
	}
}

// emit publishes one raw message onto the shared stream. It returns
// false when the context ended before the pipeline accepted it.
func (s *AccountSupervisor) emit(ctx context.Context, raw RawMessage) bool {
	msg := InboundMessage{
		Account: s.account.Label(),
		Folder:  s.folder(),
		Raw:     raw,
	}
	select {
	case s.out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *AccountSupervisor) folder() string {
	if s.account.Folder != "" {
		return s.account.Folder
	}
	return "INBOX"
}

// reconnect rebuilds the session with a bounded number of delayed
// attempts. It returns nil when the supervisor should give up.
func (s *AccountSupervisor) reconnect(ctx context.Context) MailboxSession {
	s.setState(StateReconnecting)
	for attempt := 1; attempt <= s.cfg.MaxReconnects; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.ReconnectDelay):
		}

		sess, err := s.transport.Connect(ctx, s.account)
		if err == nil {
			s.logger.Info("Reconnected", zap.Int("attempt", attempt))
			return sess
		}
		s.fail(err)

		var authErr *AuthError
		if errors.As(err, &authErr) {
			s.logger.Error("Authentication rejected during reconnect, giving up", zap.Error(err))
			return nil
		}
		s.logger.Warn("Reconnect attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	s.logger.Error("Giving up on account after repeated reconnect failures",
		zap.Int("attempts", s.cfg.MaxReconnects))
	return nil
}

// AccountStatus is a point-in-time snapshot of one supervisor.
type AccountStatus struct {
	State     SessionState
	LastError string
}

// SupervisorGroup runs one supervisor per configured account. Accounts
// are isolated: one account reconnecting or failing never blocks or
// delays another account's traffic.
type SupervisorGroup struct {
	supervisors map[string]*AccountSupervisor
	logger      *zap.Logger
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewSupervisorGroup creates supervisors for every account, all
// publishing onto the same pipeline channel.
func NewSupervisorGroup(
	accounts []Account,
	transport MailboxTransport,
	out chan<- InboundMessage,
	cfg SupervisorConfig,
	logger *zap.Logger,
) *SupervisorGroup {
	g := &SupervisorGroup{
		supervisors: make(map[string]*AccountSupervisor, len(accounts)),
		logger:      logger,
	}
	for _, account := range accounts {
		g.supervisors[account.Label()] = NewAccountSupervisor(account, transport, out, cfg, logger)
	}
	return g
}

// Start launches one goroutine per account.
func (g *SupervisorGroup) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	for _, sup := range g.supervisors {
		sup := sup
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			sup.Run(runCtx)
		}()
	}
	g.logger.Info("Account supervisors started", zap.Int("accounts", len(g.supervisors)))
}

// Stop cancels every supervisor and waits for them to finish.
func (g *SupervisorGroup) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()
}

// Status reports each account's session state and last error.
func (g *SupervisorGroup) Status() map[string]AccountStatus {
	status := make(map[string]AccountStatus, len(g.supervisors))
	for label, sup := range g.supervisors {
		status[label] = AccountStatus{
			State:     sup.State(),
			LastError: sup.LastError(),
		}
	}
	return status
}
