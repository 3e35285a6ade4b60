package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeNormalizer struct {
	mu    sync.Mutex
	fail  bool
	count int
}

func (f *fakeNormalizer) Normalize(raw RawMessage, account, folder string) (*Email, error) {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()
	if f.fail {
		return nil, errors.New("bad payload")
	}
	return &Email{Account: account, Folder: folder, Subject: "s", From: "a@b.c"}, nil
}

func newTestPipeline(normalizer Normalizer, indexer *fakeIndexer) *Pipeline {
	classifier := NewClassifierService(NewRuleClassifier(nil), nil, zap.NewNop(), false, 0)
	dispatcher := NewDispatcher(indexer, nil, nil, zap.NewNop())
	// One worker keeps the unsynchronized fakes race-free.
	return NewPipeline(normalizer, classifier, dispatcher, zap.NewNop(), 1, 8)
}

func TestPipelineProcessesMessages(t *testing.T) {
	indexer := &fakeIndexer{}
	p := newTestPipeline(&fakeNormalizer{}, indexer)
	p.Start(context.Background())

	for i := 0; i < 5; i++ {
		p.In() <- InboundMessage{Account: "work", Folder: "INBOX", Raw: RawMessage{Ref: MessageRef(i + 1)}}
	}
	p.Stop()

	assert.Equal(t, int64(5), p.Stats().Received.Load())
	assert.Equal(t, int64(5), p.Stats().Dispatched.Load())
	assert.Zero(t, p.Stats().NormalizeFailures.Load())
}

func TestPipelineDropsUnparseableMessages(t *testing.T) {
	indexer := &fakeIndexer{}
	p := newTestPipeline(&fakeNormalizer{fail: true}, indexer)
	p.Start(context.Background())

	p.In() <- InboundMessage{Account: "work", Raw: RawMessage{Ref: 1}}
	p.Stop()

	assert.Equal(t, int64(1), p.Stats().Received.Load())
	assert.Equal(t, int64(1), p.Stats().NormalizeFailures.Load())
	assert.Zero(t, p.Stats().Dispatched.Load())
	assert.Empty(t, indexer.docs)
}
