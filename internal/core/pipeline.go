package core

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// PipelineStats counts pipeline outcomes. All fields are safe for
// concurrent reads while the pipeline runs.
type PipelineStats struct {
	Received          atomic.Int64
	NormalizeFailures atomic.Int64
	Dispatched        atomic.Int64
	Notified          atomic.Int64
}

// Pipeline consumes the shared inbound stream fed by every account
// supervisor and runs each message through normalize, classify,
// dispatch. One instance serves all accounts; messages are processed
// as independent units of work with no cross-account ordering.
type Pipeline struct {
	in         chan InboundMessage
	normalizer Normalizer
	classifier *ClassifierService
	dispatcher *Dispatcher
	logger     *zap.Logger
	workers    int
	wg         sync.WaitGroup
	stats      PipelineStats
}

// NewPipeline creates a pipeline with the given worker pool size.
func NewPipeline(
	normalizer Normalizer,
	classifier *ClassifierService,
	dispatcher *Dispatcher,
	logger *zap.Logger,
	workers int,
	buffer int,
) *Pipeline {
	if workers <= 0 {
		workers = 4
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Pipeline{
		in:         make(chan InboundMessage, buffer),
		normalizer: normalizer,
		classifier: classifier,
		dispatcher: dispatcher,
		logger:     logger,
		workers:    workers,
	}
}

// In returns the shared inbound channel the supervisors publish onto.
func (p *Pipeline) In() chan<- InboundMessage {
	return p.in
}

// Stats exposes the pipeline counters.
func (p *Pipeline) Stats() *PipelineStats {
	return &p.stats
}

// Start launches the worker pool. Workers run until Stop closes the
// inbound channel; ctx bounds the downstream calls they make.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for msg := range p.in {
				p.process(ctx, msg)
			}
		}()
	}
	p.logger.Info("Ingestion pipeline started", zap.Int("workers", p.workers))
}

// Stop closes the inbound channel and waits for in-flight work to
// drain. All supervisors must have stopped emitting first.
func (p *Pipeline) Stop() {
	close(p.in)
	p.wg.Wait()
}

func (p *Pipeline) process(ctx context.Context, msg InboundMessage) {
	p.stats.Received.Add(1)

	email, err := p.normalizer.Normalize(msg.Raw, msg.Account, msg.Folder)
	if err != nil {
		p.stats.NormalizeFailures.Add(1)
		p.logger.Warn("Dropping unparseable message",
			zap.Error(err),
			zap.String("account", msg.Account),
			zap.Uint32("ref", uint32(msg.Raw.Ref)))
		return
	}

	category := p.classifier.Classify(ctx, email)
	res := p.dispatcher.Dispatch(ctx, email, category)
	p.stats.Dispatched.Add(1)
	if res.Notified {
		p.stats.Notified.Add(1)
	}
	if res.Err != nil {
		p.logger.Error("Dispatch finished with sink failures",
			zap.Error(res.Err),
			zap.String("account", msg.Account),
			zap.String("from", email.From))
	}
}
