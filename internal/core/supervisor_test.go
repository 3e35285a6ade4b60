package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSession serves a fixed backlog and then blocks in WaitNew until
// either new mail is injected or it is told to fail.
type fakeSession struct {
	mu      sync.Mutex
	backlog []RawMessage
	total   uint32
	waitErr error
	newMail chan uint32
	closed  bool
}

func newFakeSession(backlog ...RawMessage) *fakeSession {
	return &fakeSession{
		backlog: backlog,
		total:   uint32(len(backlog)),
		newMail: make(chan uint32, 4),
	}
}

func (s *fakeSession) Search(ctx context.Context, since time.Time) ([]MessageRef, error) {
	refs := make([]MessageRef, 0, len(s.backlog))
	for _, raw := range s.backlog {
		refs = append(refs, raw.Ref)
	}
	return refs, nil
}

func (s *fakeSession) Fetch(ctx context.Context, refs []MessageRef) ([]RawMessage, error) {
	want := make(map[MessageRef]bool, len(refs))
	for _, r := range refs {
		want[r] = true
	}
	var out []RawMessage
	for _, raw := range s.backlog {
		if want[raw.Ref] {
			out = append(out, raw)
		}
	}
	return out, nil
}

func (s *fakeSession) Total() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *fakeSession) WaitNew(ctx context.Context) (uint32, error) {
	s.mu.Lock()
	err := s.waitErr
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	select {
	case total := <-s.newMail:
		return total, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// inject adds a new message and signals the waiting supervisor.
func (s *fakeSession) inject(raw RawMessage) {
	s.mu.Lock()
	s.backlog = append(s.backlog, raw)
	s.total = uint32(len(s.backlog))
	total := s.total
	s.mu.Unlock()
	s.newMail <- total
}

type fakeTransport struct {
	mu       sync.Mutex
	sessions map[string][]*fakeSession
	errs     map[string]error
	connects map[string]int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		sessions: make(map[string][]*fakeSession),
		errs:     make(map[string]error),
		connects: make(map[string]int),
	}
}

func (t *fakeTransport) Connect(ctx context.Context, account Account) (MailboxSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	label := account.Label()
	t.connects[label]++
	if err := t.errs[label]; err != nil {
		return nil, err
	}
	queue := t.sessions[label]
	if len(queue) == 0 {
		return nil, errors.New("no session scripted")
	}
	sess := queue[0]
	if len(queue) > 1 {
		t.sessions[label] = queue[1:]
	}
	return sess, nil
}

func supervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		BackfillWindow: 30 * 24 * time.Hour,
		ReconnectDelay: 5 * time.Millisecond,
		MaxReconnects:  3,
	}
}

func collect(out chan InboundMessage, n int, timeout time.Duration) []InboundMessage {
	var got []InboundMessage
	deadline := time.After(timeout)
	for len(got) < n {
		select {
		case msg := <-out:
			got = append(got, msg)
		case <-deadline:
			return got
		}
	}
	return got
}

func TestInBackfillWindowBoundary(t *testing.T) {
	cutoff := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, InBackfillWindow(cutoff, cutoff), "exact boundary is included")
	assert.True(t, InBackfillWindow(cutoff.Add(time.Second), cutoff))
	assert.False(t, InBackfillWindow(cutoff.AddDate(0, 0, -1), cutoff))
	assert.True(t, InBackfillWindow(time.Time{}, cutoff), "zero date passes")
}

func TestSupervisorBackfillsThenListens(t *testing.T) {
	now := time.Now()
	sess := newFakeSession(
		RawMessage{Ref: 1, Date: now.Add(-time.Hour), Body: []byte("a")},
		RawMessage{Ref: 2, Date: now.AddDate(0, 0, -60), Body: []byte("too old")},
	)
	transport := newFakeTransport()
	transport.sessions["work"] = []*fakeSession{sess}

	out := make(chan InboundMessage, 16)
	sup := NewAccountSupervisor(Account{Name: "work", Host: "h"}, transport, out, supervisorConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { sup.Run(ctx); close(done) }()

	// Backfill emits only the in-window message.
	got := collect(out, 1, time.Second)
	require.Len(t, got, 1)
	assert.Equal(t, MessageRef(1), got[0].Raw.Ref)
	assert.Equal(t, "work", got[0].Account)

	// A live message arrives past the cursor.
	sess.inject(RawMessage{Ref: 3, Date: now, Body: []byte("new")})
	got = collect(out, 1, time.Second)
	require.Len(t, got, 1)
	assert.Equal(t, MessageRef(3), got[0].Raw.Ref)

	cancel()
	<-done
	assert.Equal(t, StateDisconnected, sup.State())
}

func TestSupervisorFirstConnectFailureDoesNotRetry(t *testing.T) {
	transport := newFakeTransport()
	transport.errs["work"] = errors.New("connection refused")

	out := make(chan InboundMessage, 1)
	sup := NewAccountSupervisor(Account{Name: "work"}, transport, out, supervisorConfig(), zap.NewNop())

	sup.Run(context.Background())

	assert.Equal(t, 1, transport.connects["work"])
	assert.Equal(t, StateDisconnected, sup.State())
	assert.Contains(t, sup.LastError(), "connection refused")
}

func TestSupervisorAuthFailureDuringReconnectIsTerminal(t *testing.T) {
	sess := newFakeSession()
	sess.waitErr = errors.New("connection reset")

	transport := newFakeTransport()
	transport.sessions["work"] = []*fakeSession{sess}

	out := make(chan InboundMessage, 1)
	sup := NewAccountSupervisor(Account{Name: "work"}, transport, out, supervisorConfig(), zap.NewNop())

	done := make(chan struct{})
	go func() { sup.Run(context.Background()); close(done) }()

	// First reconnect attempt hits an auth rejection: terminal.
	transport.mu.Lock()
	transport.errs["work"] = &AuthError{Account: "work", Err: errors.New("bad password")}
	transport.mu.Unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop after auth rejection")
	}
	assert.Contains(t, sup.LastError(), "authentication failed")
}

func TestSupervisorGroupIsolatesAccounts(t *testing.T) {
	now := time.Now()
	healthy := newFakeSession(RawMessage{Ref: 1, Date: now, Body: []byte("ok")})

	transport := newFakeTransport()
	transport.sessions["good"] = []*fakeSession{healthy}
	transport.errs["bad"] = errors.New("host unreachable")

	out := make(chan InboundMessage, 16)
	group := NewSupervisorGroup(
		[]Account{{Name: "good", Host: "h"}, {Name: "bad", Host: "h"}},
		transport, out, supervisorConfig(), zap.NewNop())

	group.Start(context.Background())

	// The failing account must not delay the healthy account's traffic.
	got := collect(out, 1, time.Second)
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].Account)

	group.Stop()

	status := group.Status()
	assert.Equal(t, StateDisconnected, status["bad"].State)
	assert.Contains(t, status["bad"].LastError, "host unreachable")
	assert.Empty(t, status["good"].LastError)
}
