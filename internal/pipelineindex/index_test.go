package pipelineindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnt/tada/internal/pipeline"
)

func validPipeline(id string, programIDs []string, status pipeline.Status) pipeline.Pipeline {
	return pipeline.Pipeline{
		ID:         id,
		ProgramIDs: programIDs,
		Status:     status,
		Transform:  pipeline.Transform{Mode: pipeline.ModeTemplate, Template: pipeline.TemplateRaw},
		Destinations: []pipeline.Destination{
			{Type: pipeline.DestinationRealtimePush, Topic: "topic-1"},
		},
	}
}

func TestUpsertAndPipelinesFor(t *testing.T) {
	idx := New()
	p := validPipeline("p1", []string{"pump"}, pipeline.StatusActive)
	require.NoError(t, idx.Upsert(p))

	found := idx.PipelinesFor("pump")
	require.Len(t, found, 1)
	assert.Equal(t, "p1", found[0].ID)

	assert.Empty(t, idx.PipelinesFor("other"))
}

func TestUpsertPausedPipelineNotIndexedByProgram(t *testing.T) {
	idx := New()
	p := validPipeline("p1", []string{"pump"}, pipeline.StatusPaused)
	require.NoError(t, idx.Upsert(p))

	assert.Empty(t, idx.PipelinesFor("pump"))
	got, ok := idx.Get("p1")
	require.True(t, ok)
	assert.Equal(t, pipeline.StatusPaused, got.Status)
}

func TestUpsertRejectsInvalidPipeline(t *testing.T) {
	idx := New()
	bad := pipeline.Pipeline{ID: "bad"} // no program ids, no destinations
	assert.Error(t, idx.Upsert(bad))
}

func TestUpsertReplacesProgramBucketMembership(t *testing.T) {
	idx := New()
	p := validPipeline("p1", []string{"pump"}, pipeline.StatusActive)
	require.NoError(t, idx.Upsert(p))

	updated := validPipeline("p1", []string{"pump_amm"}, pipeline.StatusActive)
	require.NoError(t, idx.Upsert(updated))

	assert.Empty(t, idx.PipelinesFor("pump"))
	found := idx.PipelinesFor("pump_amm")
	require.Len(t, found, 1)
}

func TestRemove(t *testing.T) {
	idx := New()
	p := validPipeline("p1", []string{"pump"}, pipeline.StatusActive)
	require.NoError(t, idx.Upsert(p))

	idx.Remove("p1")
	assert.Empty(t, idx.PipelinesFor("pump"))
	_, ok := idx.Get("p1")
	assert.False(t, ok)
}

func TestAll(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(validPipeline("p1", []string{"pump"}, pipeline.StatusActive)))
	require.NoError(t, idx.Upsert(validPipeline("p2", []string{"pump_amm"}, pipeline.StatusPaused)))

	all := idx.All()
	assert.Len(t, all, 2)
}

func TestPipelinesForReturnsIndependentSnapshot(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(validPipeline("p1", []string{"pump"}, pipeline.StatusActive)))

	snapshot := idx.PipelinesFor("pump")
	snapshot[0].ID = "mutated"

	fresh := idx.PipelinesFor("pump")
	assert.Equal(t, "p1", fresh[0].ID)
}
