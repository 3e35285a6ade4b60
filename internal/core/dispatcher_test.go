package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeIndexer struct {
	err  error
	docs []*ClassifiedEmail
}

func (f *fakeIndexer) EnsureSchema(ctx context.Context) error { return nil }

func (f *fakeIndexer) Put(ctx context.Context, email *ClassifiedEmail) error {
	if f.err != nil {
		return f.err
	}
	f.docs = append(f.docs, email)
	return nil
}

type fakeNotifier struct {
	err   error
	calls int
}

func (f *fakeNotifier) Notify(ctx context.Context, email *ClassifiedEmail) error {
	f.calls++
	return f.err
}

type fakeSink struct {
	err   error
	calls int
}

func (f *fakeSink) Send(ctx context.Context, email *ClassifiedEmail) error {
	f.calls++
	return f.err
}

func TestDispatchInterestedFansOutToAllSinks(t *testing.T) {
	indexer := &fakeIndexer{}
	notifier := &fakeNotifier{}
	sink := &fakeSink{}
	d := NewDispatcher(indexer, notifier, sink, zap.NewNop())
	d.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	res := d.Dispatch(context.Background(), &Email{From: "a@b.c"}, CategoryInterested)

	require.NoError(t, res.Err)
	assert.True(t, res.Indexed)
	assert.True(t, res.Notified)
	assert.True(t, res.WebhookSent)
	require.Len(t, indexer.docs, 1)
	assert.Equal(t, CategoryInterested, indexer.docs[0].Category)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), indexer.docs[0].IndexedAt)
}

func TestDispatchNonInterestedSkipsNotifications(t *testing.T) {
	notifier := &fakeNotifier{}
	sink := &fakeSink{}
	d := NewDispatcher(&fakeIndexer{}, notifier, sink, zap.NewNop())

	res := d.Dispatch(context.Background(), &Email{}, CategorySpam)

	require.NoError(t, res.Err)
	assert.True(t, res.Indexed)
	assert.Zero(t, notifier.calls)
	assert.Zero(t, sink.calls)
}

func TestDispatchIndexFailureDoesNotSuppressNotification(t *testing.T) {
	notifier := &fakeNotifier{}
	sink := &fakeSink{}
	d := NewDispatcher(&fakeIndexer{err: errors.New("cluster red")}, notifier, sink, zap.NewNop())

	res := d.Dispatch(context.Background(), &Email{}, CategoryInterested)

	require.Error(t, res.Err)
	assert.False(t, res.Indexed)
	assert.True(t, res.Notified)
	assert.True(t, res.WebhookSent)
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, 1, sink.calls)
}

func TestDispatchNotifierFailureDoesNotBlockWebhook(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("slack down")}
	sink := &fakeSink{}
	d := NewDispatcher(&fakeIndexer{}, notifier, sink, zap.NewNop())

	res := d.Dispatch(context.Background(), &Email{}, CategoryInterested)

	require.Error(t, res.Err)
	assert.True(t, res.Indexed)
	assert.False(t, res.Notified)
	assert.True(t, res.WebhookSent)
}

func TestDispatchNilSinksAreSkipped(t *testing.T) {
	d := NewDispatcher(&fakeIndexer{}, nil, nil, zap.NewNop())

	res := d.Dispatch(context.Background(), &Email{}, CategoryInterested)

	require.NoError(t, res.Err)
	assert.True(t, res.Indexed)
	assert.False(t, res.Notified)
	assert.False(t, res.WebhookSent)
}
