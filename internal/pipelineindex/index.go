// Package pipelineindex maintains the program-id -> pipeline-set mapping
// the orchestrator consults for every decoded event, per spec.md §4.2.
package pipelineindex

import (
	"sync"

	"github.com/wnt/tada/internal/pipeline"
	"github.com/wnt/tada/internal/utils"
)

// Index gives atomic-snapshot reads of "which pipelines watch this
// program" under concurrent upserts, via a reader-writer lock rather than
// a full copy-on-write swap — matched to a read-heavy, moderate-write
// workload where a pipeline's definition changes far less often than
// events are routed against it.
type Index struct {
	mu       sync.RWMutex
	byProgram map[string][]pipeline.Pipeline
	byID      map[string]pipeline.Pipeline
}

func New() *Index {
	return &Index{
		byProgram: make(map[string][]pipeline.Pipeline),
		byID:      make(map[string]pipeline.Pipeline),
	}
}

// Upsert inserts or replaces a pipeline definition and re-derives its
// program-id bucket membership. A previously-indexed pipeline under a
// program id it no longer lists is removed from that bucket.
func (idx *Index) Upsert(p pipeline.Pipeline) error {
	if err := p.Validate(); err != nil {
		return err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if old, exists := idx.byID[p.ID]; exists {
		idx.removeFromBuckets(old)
	}
	idx.byID[p.ID] = p
	if p.Active() {
		for _, programID := range p.ProgramIDs {
			idx.byProgram[programID] = append(idx.byProgram[programID], p)
		}
	}
	return nil
}

// Remove deletes a pipeline from the index entirely.
func (idx *Index) Remove(pipelineID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	old, exists := idx.byID[pipelineID]
	if !exists {
		return
	}
	idx.removeFromBuckets(old)
	delete(idx.byID, pipelineID)
}

func (idx *Index) removeFromBuckets(p pipeline.Pipeline) {
	for _, programID := range p.ProgramIDs {
		bucket := idx.byProgram[programID]
		filtered := utils.Filter(bucket, func(candidate pipeline.Pipeline) bool {
			return candidate.ID != p.ID
		})
		if len(filtered) == 0 {
			delete(idx.byProgram, programID)
		} else {
			idx.byProgram[programID] = filtered
		}
	}
}

// PipelinesFor returns a snapshot copy of the active pipelines watching a
// given program id. The returned slice is safe to range over without
// holding the lock, and safe to mutate without affecting the index.
func (idx *Index) PipelinesFor(programID string) []pipeline.Pipeline {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	bucket := idx.byProgram[programID]
	out := make([]pipeline.Pipeline, len(bucket))
	copy(out, bucket)
	return out
}

// Get returns a pipeline by id regardless of its lifecycle status.
func (idx *Index) Get(pipelineID string) (pipeline.Pipeline, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	p, ok := idx.byID[pipelineID]
	return p, ok
}

// All returns a snapshot of every indexed pipeline, active or not, in no
// particular order.
func (idx *Index) All() []pipeline.Pipeline {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]pipeline.Pipeline, 0, len(idx.byID))
	for _, p := range idx.byID {
		out = append(out, p)
	}
	return out
}
