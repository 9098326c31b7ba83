package transformengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/pipeline"
)

func tradeEvent() chain.Event {
	return chain.Event{
		ID:        "sig:prog:0",
		Name:      "TradeEvent",
		ProgramID: "pump",
		Signature: "sig",
		BlockTime: 1700000000,
		Signer:    "trader-address",
		Data: map[string]chain.Value{
			"mint":                   chain.String("mint-address"),
			"is_buy":                 chain.Bool(true),
			"sol_amount":             chain.Number(1_000_000_000),
			"token_amount":           chain.Number(500),
			"virtual_sol_reserves":   chain.Number(30_000_000_000),
			"virtual_token_reserves": chain.Number(1_000_000_000),
		},
	}
}

func TestApplyRawTemplate(t *testing.T) {
	rec, err := Apply(pipeline.Transform{Mode: pipeline.ModeTemplate, Template: pipeline.TemplateRaw}, "p1", tradeEvent())
	require.NoError(t, err)
	assert.Equal(t, "sig:prog:0", rec.ID)
	assert.Equal(t, "p1", rec.PipelineID)
	assert.Equal(t, int64(1700000000000), rec.Timestamp)
	name, ok := rec.Data["name"].AsString()
	require.True(t, ok)
	assert.Equal(t, "TradeEvent", name)
}

func TestApplyTradeTemplate(t *testing.T) {
	rec, err := Apply(pipeline.Transform{Mode: pipeline.ModeTemplate, Template: pipeline.TemplateTrade}, "p1", tradeEvent())
	require.NoError(t, err)

	typ, _ := rec.Data["type"].AsString()
	assert.Equal(t, "trade", typ)

	dir, _ := rec.Data["direction"].AsString()
	assert.Equal(t, "buy", dir)

	sol, ok := rec.Data["solAmount"].AsNumber()
	require.True(t, ok)
	assert.Equal(t, 1.0, sol)

	price, ok := rec.Data["price"].AsNumber()
	require.True(t, ok)
	assert.Equal(t, 30.0, price)
}

func TestApplyFieldsMode(t *testing.T) {
	transform := pipeline.Transform{
		Mode: pipeline.ModeFields,
		Fields: []pipeline.FieldSpec{
			{Name: "amount", Path: "sol_amount", Pipes: []string{"lamportsToSol"}},
			{Name: "trader", Path: "signer"},
			{Name: "missing", Path: "nonexistent"},
		},
	}
	rec, err := Apply(transform, "p1", tradeEvent())
	require.NoError(t, err)

	amount, ok := rec.Data["amount"].AsNumber()
	require.True(t, ok)
	assert.Equal(t, 1.0, amount)

	trader, ok := rec.Data["trader"].AsString()
	require.True(t, ok)
	assert.Equal(t, "trader-address", trader)

	_, present := rec.Data["missing"]
	assert.False(t, present)
}

func TestApplyFieldsModeUnknownPipeIsTreatedAsIdentity(t *testing.T) {
	transform := pipeline.Transform{
		Mode: pipeline.ModeFields,
		Fields: []pipeline.FieldSpec{
			{Name: "x", Path: "sol_amount", Pipes: []string{"doesNotExist"}},
		},
	}
	rec, err := Apply(transform, "p1", tradeEvent())
	require.NoError(t, err)
	n, ok := rec.Data["x"].AsNumber()
	require.True(t, ok)
	assert.Equal(t, float64(1_000_000_000), n)
}

func TestApplyCodeModeFallsBackToRaw(t *testing.T) {
	rec, err := Apply(pipeline.Transform{Mode: pipeline.ModeCode}, "p1", tradeEvent())
	require.NoError(t, err)
	_, ok := rec.Data["mint"]
	assert.True(t, ok)
}

func TestApplyTransferTemplate(t *testing.T) {
	ev := chain.Event{
		ID:   "sig:prog:1",
		Name: "TransferEvent",
		Data: map[string]chain.Value{
			"from":   chain.String("from-addr"),
			"to":     chain.String("to-addr"),
			"amount": chain.Number(100),
			"mint":   chain.String("mint-addr"),
		},
	}
	rec, err := Apply(pipeline.Transform{Mode: pipeline.ModeTemplate, Template: pipeline.TemplateTransfer}, "p1", ev)
	require.NoError(t, err)
	from, _ := rec.Data["from"].AsString()
	assert.Equal(t, "from-addr", from)
}
