package orchestrator

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/decoder"
	"github.com/wnt/tada/internal/dispatcher"
	"github.com/wnt/tada/internal/filterengine"
	"github.com/wnt/tada/internal/logger"
	"github.com/wnt/tada/internal/metrics"
	"github.com/wnt/tada/internal/pipeline"
	"github.com/wnt/tada/internal/pipelineindex"
	"github.com/wnt/tada/internal/transformengine"
)

// Worker pulls transaction envelopes off the shared inbox and runs them
// through decode -> enrich -> pipeline match -> filter -> transform ->
// deliver, per spec.md §4.6. One envelope at a time, per spec.md §5's
// "filter/transform for a single (event, pipeline) pair is pure and
// synchronous" — concurrency across envelopes comes from running many
// workers; within one envelope, pipelines are processed in turn and only
// the dispatcher's per-destination fan-out runs concurrently.
type Worker struct {
	id       string
	inbox    <-chan *chain.TransactionEnvelope
	registry *decoder.Registry
	index    *pipelineindex.Index
	dispatch *dispatcher.Dispatcher
	dedup    Deduper
	logger   zerolog.Logger
	stopped  bool
}

// Deduper is the subset of *dedupe.Client the orchestrator depends on, so
// it can run with dedupe disabled (nil) in single-process deployments.
type Deduper interface {
	Seen(ctx context.Context, key string) bool
}

func NewWorker(id string, inbox <-chan *chain.TransactionEnvelope, registry *decoder.Registry, index *pipelineindex.Index, dispatch *dispatcher.Dispatcher, dedup Deduper, baseLogger zerolog.Logger) *Worker {
	return &Worker{
		id:       id,
		inbox:    inbox,
		registry: registry,
		index:    index,
		dispatch: dispatch,
		dedup:    dedup,
		logger:   logger.WithWorker(baseLogger, id),
	}
}

// Start runs the worker's receive loop until ctx is cancelled or Stop is
// called between envelopes.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().Msg("decode worker starting")
	for {
		if w.stopped {
			w.logger.Info().Msg("decode worker stopped")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case envelope, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.process(ctx, envelope)
		}
	}
}

// Stop signals the worker to exit at the top of its next loop iteration:
// after the envelope it is processing, or, if it is waiting on the inbox,
// after it has received and processed one more envelope.
func (w *Worker) Stop() { w.stopped = true }

func (w *Worker) process(ctx context.Context, envelope *chain.TransactionEnvelope) {
	envLogger := w.logger.With().Str("signature", envelope.Signature).Logger()

	events, results := w.registry.Decode(envelope)
	for _, r := range results {
		if r.Err != nil {
			envLogger.Warn().Str("program", r.Program.ID).Err(r.Err).Msg("program decode reported errors")
		}
	}
	decoder.EnrichAll(envelope, events)

	for _, ev := range events {
		w.routeEvent(ctx, envelope, ev, envLogger)
	}
}

func (w *Worker) routeEvent(ctx context.Context, envelope *chain.TransactionEnvelope, ev chain.Event, envLogger zerolog.Logger) {
	pipelines := w.index.PipelinesFor(ev.ProgramID)
	for _, p := range pipelines {
		w.processPipeline(ctx, envelope, ev, p, envLogger)
	}
}

// processPipeline runs one pipeline's dedupe/filter/transform/deliver
// chain for a single event, recovering from any panic inside it so a bug
// in one pipeline's filter or transform config never drops the rest of
// this event's pipelines, let alone the worker itself, per spec.md §7's
// "no single pipeline's failure affects other pipelines".
func (w *Worker) processPipeline(ctx context.Context, envelope *chain.TransactionEnvelope, ev chain.Event, p pipeline.Pipeline, envLogger zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			l := logger.WithPipeline(envLogger, p.ID)
			l.Warn().Interface("panic", r).Msg("pipeline processing panicked, event skipped")
		}
	}()

	if w.dedup != nil && w.dedup.Seen(ctx, ev.ID+":"+p.ID) {
		return
	}

	matched := filterengine.Evaluate(p.Filter, envelope, ev)
	metrics.RecordPipelineMatch(p.ID, matched)
	if !matched {
		return
	}

	rec, err := transformengine.Apply(p.Transform, p.ID, ev)
	if err != nil {
		pl := logger.WithPipeline(envLogger, p.ID)
		pl.Warn().Err(err).Msg("transform failed, event dropped")
		return
	}

	results := w.dispatch.Deliver(ctx, rec, p.Destinations)
	for _, res := range results {
		if !res.Success {
			dl := logger.WithDestination(logger.WithPipeline(envLogger, p.ID), res.Destination)
			dl.Warn().Err(res.Error).Msg("delivery failed")
		}
	}
}
