package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() Event {
	return Event{
		ID:             "sig:prog:0",
		Signature:      "sig",
		Slot:           100,
		BlockTime:      1700000000,
		ProgramID:      "pump",
		ProgramAddress: "6EF8rrec...",
		Category:       CategoryPreMigration,
		Name:           "TradeEvent",
		Signer:         "payer",
		Source:         Source{Type: SourceType("jupiter"), OuterProgram: "jup-addr"},
		Data: map[string]Value{
			"sol_amount": Number(5),
			"is_buy":     Bool(true),
		},
	}
}

func TestEventGetTopLevelFields(t *testing.T) {
	ev := sampleEvent()

	v, ok := ev.Get([]string{"id"})
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "sig:prog:0", s)

	v, ok = ev.Get([]string{"slot"})
	require.True(t, ok)
	n, _ := v.AsNumber()
	assert.Equal(t, float64(100), n)

	v, ok = ev.Get([]string{"name"})
	require.True(t, ok)
	s, _ = v.AsString()
	assert.Equal(t, "TradeEvent", s)

	v, ok = ev.Get([]string{"instruction"})
	require.True(t, ok)
	s, _ = v.AsString()
	assert.Equal(t, "TradeEvent", s)
}

func TestEventGetSource(t *testing.T) {
	ev := sampleEvent()

	v, ok := ev.Get([]string{"source", "type"})
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "jupiter", s)

	v, ok = ev.Get([]string{"source", "outerProgram"})
	require.True(t, ok)
	s, _ = v.AsString()
	assert.Equal(t, "jup-addr", s)

	_, ok = ev.Get([]string{"source", "bogus"})
	assert.False(t, ok)
}

func TestEventGetDataFallback(t *testing.T) {
	ev := sampleEvent()

	// Explicit "data." prefix.
	v, ok := ev.Get([]string{"data", "sol_amount"})
	require.True(t, ok)
	n, _ := v.AsNumber()
	assert.Equal(t, float64(5), n)

	// Bare field name falls back into Data.
	v, ok = ev.Get([]string{"is_buy"})
	require.True(t, ok)
	b, _ := v.AsBool()
	assert.True(t, b)

	_, ok = ev.Get([]string{"nonexistent"})
	assert.False(t, ok)
}

func TestEventGetEmptyPath(t *testing.T) {
	ev := sampleEvent()
	_, ok := ev.Get(nil)
	assert.False(t, ok)
}

func TestAttributeSourceDirectAndMatched(t *testing.T) {
	envelope := &TransactionEnvelope{
		AccountKeys: []AccountKey{
			{Address: "user"},
			{Address: "jup-addr"},
			{Address: "pump-addr"},
		},
	}

	direct := AttributeSource(envelope, nil)
	assert.Equal(t, SourceDirect, direct.Type)

	aggregators := NewAggregatorCatalog(map[string]string{"jup-addr": "jupiter"})
	attributed := AttributeSource(envelope, aggregators)
	assert.Equal(t, SourceType("jupiter"), attributed.Type)
	assert.Equal(t, "jup-addr", attributed.OuterProgram)
}
