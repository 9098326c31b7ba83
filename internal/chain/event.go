package chain

import "fmt"

// SourceType distinguishes a transaction sent straight to a program from
// one routed through a known aggregator/router.
type SourceType string

// SourceDirect is the Type value for a transaction sent straight to the
// program. Aggregator-routed transactions use the matched aggregator's
// tag (e.g. "jupiter", "raydium") as Type instead, per spec.md §3.3.
const SourceDirect SourceType = "direct"

// Source records how a transaction reached the program that emitted an
// event, per spec.md §3.2/§3.3.
type Source struct {
	Type         SourceType
	OuterProgram string // the matched aggregator's on-chain address, empty when Type == SourceDirect
}

// Event is a single decoded occurrence produced by the decoder registry,
// per spec.md §3.3. ID is deterministic and stable across re-decodes of
// the same transaction: "<signature>:<programAddress>:<n>" where n is the
// event's position among all events decoded from that program within the
// transaction.
type Event struct {
	ID             string
	Signature      string
	Slot           uint64
	BlockTime      int64
	ProgramID      string
	ProgramAddress string
	Category       Category
	Name           string
	Signer         string // fee-payer address, per spec.md §3.3
	Source         Source
	Data           map[string]Value
}

// NewEvent constructs an Event and derives its deterministic ID.
func NewEvent(envelope *TransactionEnvelope, program Program, n int, name string, data map[string]Value, source Source) Event {
	return Event{
		ID:             fmt.Sprintf("%s:%s:%d", envelope.Signature, program.Address, n),
		Signature:      envelope.Signature,
		Slot:           envelope.Slot,
		BlockTime:      envelope.BlockTime,
		ProgramID:      program.ID,
		ProgramAddress: program.Address,
		Category:       program.Category,
		Name:           name,
		Signer:         envelope.AccountAt(0),
		Source:         source,
		Data:           data,
	}
}

// AttributeSource scans a transaction's full account-key set, in
// account-key list order, against the aggregator catalog and returns the
// resulting Source, per spec.md §4.1: a transaction is attributed to the
// first known router address found anywhere in its account keys, not
// only as the direct invoker; absent a match it is attributed direct.
func AttributeSource(envelope *TransactionEnvelope, aggregators *AggregatorCatalog) Source {
	if aggregators == nil {
		return Source{Type: SourceDirect}
	}
	if addr, tag, ok := aggregators.Match(envelope.AccountAddresses()); ok {
		return Source{Type: SourceType(tag), OuterProgram: addr}
	}
	return Source{Type: SourceDirect}
}

// Get resolves a dotted field path against the full event, per spec.md
// §4.4's fields-mode root ("root = full event, including data sub-tree")
// and §4.3.10's condition paths. The first segment may name a top-level
// event field (id, signature, slot, blockTime, program, programAddress,
// signer, name, source.type/source.outerProgram, or the "instruction"
// alias for name); "data" descends explicitly into the data sub-tree.
// Anything else falls back to a direct lookup in Data, so a condition or
// field spec can name a data field without the "data." prefix.
func (e Event) Get(path []string) (Value, bool) {
	if len(path) == 0 {
		return Value{}, false
	}
	switch path[0] {
	case "id":
		return String(e.ID), len(path) == 1
	case "signature":
		return String(e.Signature), len(path) == 1
	case "slot":
		return Number(float64(e.Slot)), len(path) == 1
	case "blockTime":
		return Number(float64(e.BlockTime)), len(path) == 1
	case "program":
		return String(e.ProgramID), len(path) == 1
	case "programAddress":
		return String(e.ProgramAddress), len(path) == 1
	case "signer":
		return String(e.Signer), len(path) == 1
	case "name", "instruction":
		return String(e.Name), len(path) == 1
	case "source":
		return e.getSource(path[1:])
	case "data":
		return Map(e.Data).Get(path[1:])
	default:
		return Map(e.Data).Get(path)
	}
}

func (e Event) getSource(rest []string) (Value, bool) {
	if len(rest) != 1 {
		return Value{}, false
	}
	switch rest[0] {
	case "type":
		return String(string(e.Source.Type)), true
	case "outerProgram":
		return String(e.Source.OuterProgram), true
	default:
		return Value{}, false
	}
}
