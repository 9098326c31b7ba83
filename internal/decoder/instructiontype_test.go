package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/schema"
)

func initPoolPayload(t *testing.T, disc []byte, name, symbol, uri string) []byte {
	t.Helper()
	buf := append([]byte{}, disc...)
	buf = appendLenPrefixed(buf, name)
	buf = appendLenPrefixed(buf, symbol)
	buf = appendLenPrefixed(buf, uri)
	return buf
}

func appendLenPrefixed(buf []byte, s string) []byte {
	n := uint32(len(s))
	for i := 0; i < 4; i++ {
		buf = append(buf, byte(n>>(8*i)))
	}
	return append(buf, []byte(s)...)
}

func TestInstructionTypeDecoderSynthesizesInitializePool(t *testing.T) {
	disc := []byte{1, 1, 1, 1, 1, 1, 1, 1}
	sch := schema.NewProgramSchema(schema.ProgramMeteoraDBC, nil, []schema.EventSchemaOrInstruction{
		schema.AsInstruction(schema.InstructionSchema{
			Name:          schema.InsInitializeVirtualPoolSPL,
			Discriminator: disc,
		}),
	})

	program := chain.Program{ID: schema.ProgramMeteoraDBC, Address: "DBCAddr"}
	payload := initPoolPayload(t, disc, "Token", "TKN", "https://example.com")

	envelope := &chain.TransactionEnvelope{
		Signature: "sig1",
		AccountKeys: []chain.AccountKey{
			{Address: "payer"}, {Address: "global-acct"}, {Address: "creator-acct"},
			{Address: "mint-acct"}, {Address: "curve-acct"}, {Address: "metadata-acct"},
		},
		Instructions: []chain.CompiledInstruction{
			{ProgramIDIndex: 0, AccountIndexes: []int{1, 2, 3, 4, 5}, Data: payload},
		},
	}
	// point program at account 0 to keep ProgramAt matching trivial
	envelope.AccountKeys[0] = chain.AccountKey{Address: "DBCAddr"}

	dec := NewInstructionTypeDecoder()
	events, err := dec.Decode(envelope, program, sch)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "EvtInitializePool", events[0].Name)

	name, ok := events[0].Data["name"].AsString()
	require.True(t, ok)
	assert.Equal(t, "Token", name)
}

func TestInstructionTypeDecoderIgnoresUnknownDiscriminator(t *testing.T) {
	sch := schema.NewProgramSchema(schema.ProgramMeteoraDBC, nil, nil)
	program := chain.Program{ID: schema.ProgramMeteoraDBC, Address: "DBCAddr"}
	envelope := &chain.TransactionEnvelope{
		AccountKeys:  []chain.AccountKey{{Address: "DBCAddr"}},
		Instructions: []chain.CompiledInstruction{{ProgramIDIndex: 0, Data: []byte{9, 9, 9, 9, 9, 9, 9, 9}}},
	}

	dec := NewInstructionTypeDecoder()
	events, err := dec.Decode(envelope, program, sch)
	require.NoError(t, err)
	assert.Empty(t, events)
}
