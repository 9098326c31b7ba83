package decoder

import (
	"fmt"

	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/schema"
)

// cpiMinLength is the minimum inner-instruction data length the decoder
// will attempt a CPI-event decode against, per spec.md §4.1.2.
const cpiMinLength = 16

// CPIEventDecoder extracts events from inner instructions where a program
// self-invokes with a data blob carrying [discriminator(8)][payload], per
// spec.md §4.1.2's CPI-emitted decoding path. It does not gate on the
// inner instruction's declared program index: the self-invocation may
// arrive under a different account index, so discriminator match alone is
// authoritative.
type CPIEventDecoder struct{}

func NewCPIEventDecoder() *CPIEventDecoder { return &CPIEventDecoder{} }

func (d *CPIEventDecoder) Decode(envelope *chain.TransactionEnvelope, program chain.Program, sch schema.ProgramSchema) ([]chain.Event, error) {
	var events []chain.Event
	var firstErr error

	for _, group := range envelope.InnerInstructionGroups {
		for _, ins := range group.Instructions {
			if len(ins.Data) < cpiMinLength {
				continue
			}

			evSchema, rest, ok := resolveCPIEvent(ins.Data, sch)
			if !ok {
				continue
			}

			fields, err := schema.DecodeFields(schema.NewReader(rest), evSchema.Fields)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("decode %s: %w", evSchema.Name, err)
				}
				continue
			}
			events = append(events, chain.Event{
				Name:           evSchema.Name,
				ProgramID:      program.ID,
				ProgramAddress: program.Address,
				Category:       program.Category,
				Signature:      envelope.Signature,
				Slot:           envelope.Slot,
				BlockTime:      envelope.BlockTime,
				Signer:         envelope.AccountAt(0),
				Data:           fields,
			})
		}
	}

	return events, firstErr
}

// resolveCPIEvent implements spec.md §4.1.2's three-step lookup: a known
// wrapper discriminator is checked first when the program's schema
// declares one, then the raw bytes are tried as [discriminator][payload],
// and finally the first 8 bytes are stripped as an unlabeled CPI wrapper
// prefix and the lookup retried.
func resolveCPIEvent(data []byte, sch schema.ProgramSchema) (schema.EventSchema, []byte, bool) {
	if n := len(sch.CPIWrapperDiscriminator); n > 0 {
		if len(data) >= n && string(data[:n]) == sch.CPIWrapperDiscriminator.Key() {
			if ev, rest, ok := sch.EventByDiscriminator(data[n:]); ok {
				return ev, rest, true
			}
		}
	}
	if ev, rest, ok := sch.EventByDiscriminator(data); ok {
		return ev, rest, true
	}
	if len(data) >= 8 {
		if ev, rest, ok := sch.EventByDiscriminator(data[8:]); ok {
			return ev, rest, true
		}
	}
	return schema.EventSchema{}, nil, false
}
