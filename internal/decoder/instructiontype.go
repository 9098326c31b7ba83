package decoder

import (
	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/schema"
)

const (
	maxNameLen   = 200
	maxSymbolLen = 50
	maxURILen    = 500
)

// initAccountRoles names the accounts[] positions a pool-initialization
// instruction carries, used to fill the synthesized event's data.
var initAccountRoles = []string{"global", "creator", "mint", "bonding_curve", "mint_metadata", "payer"}

// InstructionTypeDecoder synthesizes lifecycle events (pool init,
// migration) directly from an instruction's own payload for the
// bonding-curve program, which does not separately log every lifecycle
// transition, per spec.md §4.1.4. Trade instructions are covered by the
// log-emitted/CPI-emitted decoders already and are deliberately excluded
// here to avoid double-counting the same occurrence from two paths: the
// three instruction discriminators this decoder matches are distinct from
// every event discriminator in the program's schema, so no instruction it
// fires on can also have been decoded as an event.
type InstructionTypeDecoder struct{}

func NewInstructionTypeDecoder() *InstructionTypeDecoder { return &InstructionTypeDecoder{} }

func (d *InstructionTypeDecoder) Decode(envelope *chain.TransactionEnvelope, program chain.Program, sch schema.ProgramSchema) ([]chain.Event, error) {
	var events []chain.Event
	var firstErr error

	for _, ins := range envelope.Instructions {
		if envelope.ProgramAt(ins) != program.Address {
			continue
		}
		insSchema, rest, ok := sch.InstructionByDiscriminator(ins.Data)
		if !ok {
			continue
		}

		switch insSchema.Name {
		case schema.InsInitializeVirtualPoolSPL, schema.InsInitializeVirtualPoolToken2022:
			events = append(events, d.synthesizeInitializePool(envelope, program, ins, rest))
		case schema.InsMigrateToDAMMv2:
			events = append(events, d.synthesizeMigration(envelope, program, ins))
		default:
			continue
		}
	}

	return events, firstErr
}

// synthesizeInitializePool builds an EvtInitializePool event, filling in
// the inferred accounts and attempting to parse UTF-8 length-prefixed
// name/symbol/uri fields from the instruction payload. A bad length on
// any of the three silently abandons just the string-field parse; the
// event itself is still emitted with whichever accounts resolved.
func (d *InstructionTypeDecoder) synthesizeInitializePool(envelope *chain.TransactionEnvelope, program chain.Program, ins chain.CompiledInstruction, payload []byte) chain.Event {
	data := accountRoleData(envelope, ins, initAccountRoles)

	r := schema.NewReader(payload)
	if name, ok := r.BoundedString(maxNameLen); ok {
		if symbol, ok := r.BoundedString(maxSymbolLen); ok {
			if uri, ok := r.BoundedString(maxURILen); ok {
				data["name"] = chain.String(name)
				data["symbol"] = chain.String(symbol)
				data["uri"] = chain.String(uri)
			}
		}
	}

	return chain.Event{
		Name:           "EvtInitializePool",
		ProgramID:      program.ID,
		ProgramAddress: program.Address,
		Category:       program.Category,
		Signature:      envelope.Signature,
		Slot:           envelope.Slot,
		BlockTime:      envelope.BlockTime,
		Signer:         envelope.AccountAt(0),
		Data:           data,
	}
}

// InstructionTypeDecoder is only ever registered against
// schema.ProgramMeteoraDBC (see default.go), so its migration role list
// is that program's own accountRoleTables entry rather than a
// package-level fallback that would silently apply to any program.
func (d *InstructionTypeDecoder) synthesizeMigration(envelope *chain.TransactionEnvelope, program chain.Program, ins chain.CompiledInstruction) chain.Event {
	return chain.Event{
		Name:           "EvtMigrationDAMMV2",
		ProgramID:      program.ID,
		ProgramAddress: program.Address,
		Category:       program.Category,
		Signature:      envelope.Signature,
		Slot:           envelope.Slot,
		BlockTime:      envelope.BlockTime,
		Signer:         envelope.AccountAt(0),
		Data:           accountRoleData(envelope, ins, accountRoleTables[program.ID][roleClassMigration]),
	}
}

// accountRoleData resolves an instruction's accounts against a fixed role
// list, omitting any role whose index is out of range.
func accountRoleData(envelope *chain.TransactionEnvelope, ins chain.CompiledInstruction, roles []string) map[string]chain.Value {
	out := make(map[string]chain.Value, len(roles))
	for i, role := range roles {
		if i >= len(ins.AccountIndexes) {
			break
		}
		addr := envelope.AccountAt(ins.AccountIndexes[i])
		if addr == "" {
			continue
		}
		out[role] = chain.String(addr)
	}
	return out
}
