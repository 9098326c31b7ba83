// Package orchestrator wires the decoder registry, pipeline index, filter
// engine, transform engine, and dispatcher into the end-to-end pipeline
// named in spec.md §4.6: decode a transaction envelope, look up the
// pipelines watching each decoded event's program, filter, transform, and
// deliver — with per-pipeline and per-destination failure isolation.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/config"
	"github.com/wnt/tada/internal/decoder"
	"github.com/wnt/tada/internal/dispatcher"
	"github.com/wnt/tada/internal/metrics"
	"github.com/wnt/tada/internal/pipelineindex"
)

// inboxCapacity bounds how many envelopes may queue ahead of the decode
// worker pool before Submit blocks. Per spec.md §5, buffering past this
// point is the upstream stream's responsibility, not the orchestrator's.
const inboxCapacity = 4096

// Manager owns the dynamic decode worker pool, adapted from the teacher's
// wallet-queue worker manager: the scaling signal is the inbox channel's
// backlog instead of a Redis queue length, and each worker runs the full
// decode-filter-transform-deliver chain instead of a wallet scrape.
type Manager struct {
	config   config.Config
	inbox    chan *chain.TransactionEnvelope
	registry *decoder.Registry
	index    *pipelineindex.Index
	dispatch *dispatcher.Dispatcher
	dedup    Deduper
	workers  []*Worker
	logger   zerolog.Logger
	mutex    sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	eg       *errgroup.Group
	stopped  bool
}

func NewManager(cfg config.Config, registry *decoder.Registry, index *pipelineindex.Index, dispatch *dispatcher.Dispatcher, dedup Deduper, logger zerolog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	eg, egCtx := errgroup.WithContext(ctx)

	return &Manager{
		config:   cfg,
		inbox:    make(chan *chain.TransactionEnvelope, inboxCapacity),
		registry: registry,
		index:    index,
		dispatch: dispatch,
		dedup:    dedup,
		workers:  make([]*Worker, 0),
		logger:   logger.With().Str("component", "orchestrator").Logger(),
		ctx:      egCtx,
		cancel:   cancel,
		eg:       eg,
	}
}

// Submit hands an envelope to the decode worker pool, blocking if the
// inbox is full rather than dropping it.
func (m *Manager) Submit(ctx context.Context, envelope *chain.TransactionEnvelope) error {
	select {
	case m.inbox <- envelope:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return fmt.Errorf("orchestrator: manager stopped")
	}
}

// Start launches the initial worker set and the background scaling loop.
func (m *Manager) Start() error {
	m.logger.Info().
		Int("min_workers", m.config.MinWorkers).
		Int("max_workers", m.config.MaxWorkers).
		Msg("starting orchestrator")

	if err := m.adjustWorkerCount(); err != nil {
		return fmt.Errorf("failed to start initial decode workers: %w", err)
	}

	m.eg.Go(func() error {
		return m.runScalingLoop()
	})

	m.logger.Info().Msg("orchestrator started")
	return nil
}

// Stop cancels the worker context and waits (with a timeout) for every
// worker to exit.
func (m *Manager) Stop() error {
	m.mutex.Lock()
	if m.stopped {
		m.mutex.Unlock()
		return nil
	}
	m.stopped = true
	m.mutex.Unlock()

	m.logger.Info().Msg("stopping orchestrator...")
	m.cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.eg.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			m.logger.Error().Err(err).Msg("error during decode worker shutdown")
		}
	case <-time.After(30 * time.Second):
		m.logger.Warn().Msg("decode worker shutdown timed out")
	}

	m.mutex.Lock()
	m.workers = nil
	m.mutex.Unlock()

	metrics.SetWorkersActive(0)
	m.logger.Info().Msg("orchestrator stopped")
	return nil
}

// runScalingLoop reassesses the desired worker count every 30 seconds
// against the inbox's current backlog.
func (m *Manager) runScalingLoop() error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()
		case <-ticker.C:
			if err := m.adjustWorkerCount(); err != nil {
				m.logger.Error().Err(err).Msg("failed to adjust decode worker count")
			}
		}
	}
}

func (m *Manager) adjustWorkerCount() error {
	backlog := len(m.inbox)

	desired := m.calculateDesiredWorkers(backlog)

	m.mutex.Lock()
	current := len(m.workers)
	m.mutex.Unlock()

	if desired == current {
		return nil
	}

	m.logger.Info().
		Int("current_workers", current).
		Int("desired_workers", desired).
		Int("inbox_backlog", backlog).
		Msg("adjusting decode worker count")

	if desired > current {
		return m.addWorkers(desired - current)
	}
	return m.removeWorkers(current - desired)
}

// calculateDesiredWorkers scales roughly one worker per 10 queued
// envelopes, clamped to [MinWorkers, MaxWorkers].
func (m *Manager) calculateDesiredWorkers(backlog int) int {
	desired := backlog / 10
	if desired < m.config.MinWorkers {
		desired = m.config.MinWorkers
	}
	if desired > m.config.MaxWorkers {
		desired = m.config.MaxWorkers
	}
	return desired
}

func (m *Manager) addWorkers(count int) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i := 0; i < count; i++ {
		workerID := fmt.Sprintf("decode-worker-%d", len(m.workers)+1)
		w := NewWorker(workerID, m.inbox, m.registry, m.index, m.dispatch, m.dedup, m.logger)

		m.eg.Go(func() error {
			return w.Start(m.ctx)
		})

		m.workers = append(m.workers, w)
	}

	metrics.SetWorkersActive(len(m.workers))

	m.logger.Info().Int("added", count).Int("total_workers", len(m.workers)).Msg("decode workers added")
	return nil
}

func (m *Manager) removeWorkers(count int) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if count > len(m.workers) {
		count = len(m.workers)
	}

	toRemove := m.workers[len(m.workers)-count:]
	for _, w := range toRemove {
		w.Stop()
	}
	m.workers = m.workers[:len(m.workers)-count]

	metrics.SetWorkersActive(len(m.workers))

	m.logger.Info().Int("removed", count).Int("remaining_workers", len(m.workers)).Msg("decode workers removed")
	return nil
}

// Stats reports the manager's current pool size, inbox backlog and worker
// bounds.
func (m *Manager) Stats() map[string]any {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return map[string]any{
		"active_workers": len(m.workers),
		"inbox_backlog":  len(m.inbox),
		"min_workers":    m.config.MinWorkers,
		"max_workers":    m.config.MaxWorkers,
	}
}
