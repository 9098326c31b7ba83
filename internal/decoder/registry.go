// Package decoder turns a chain.TransactionEnvelope into the chain.Event
// list the rest of the pipeline operates on. Each program is handled by a
// decoder registered against its program id — dispatch is a map lookup,
// never a type switch or an inheritance chain, so adding a program never
// touches existing decoders.
package decoder

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/metrics"
	"github.com/wnt/tada/internal/schema"
)

// Decoder extracts zero or more events for the given program out of a
// transaction envelope. A Decoder must never mutate the envelope and must
// never panic; the registry recovers anyway, but a well-behaved decoder
// returns an error instead.
type Decoder interface {
	Decode(envelope *chain.TransactionEnvelope, program chain.Program, sch schema.ProgramSchema) ([]chain.Event, error)
}

// Registry dispatches decoding across every program a transaction touches.
type Registry struct {
	catalog     *chain.Catalog
	schemas     map[string]schema.ProgramSchema
	decoders    map[string][]Decoder
	aggregators *chain.AggregatorCatalog
	log         zerolog.Logger
}

func NewRegistry(catalog *chain.Catalog, schemas map[string]schema.ProgramSchema, aggregators *chain.AggregatorCatalog, log zerolog.Logger) *Registry {
	return &Registry{
		catalog:     catalog,
		schemas:     schemas,
		decoders:    make(map[string][]Decoder),
		aggregators: aggregators,
		log:         log,
	}
}

// Register attaches a decoder to a program id. A program may have more
// than one decoder (e.g. the bonding-curve program carries both a
// CPI-emitted event decoder and an instruction-type decoder for lifecycle
// transitions that are not separately logged).
func (r *Registry) Register(programID string, d Decoder) {
	r.decoders[programID] = append(r.decoders[programID], d)
}

// touchedPrograms returns, in program-id order, every program from the catalog
// that appears anywhere in the transaction's account-key set — cheaper
// than scanning every instruction when most transactions touch only a
// handful of the programs the registry knows about.
func (r *Registry) touchedPrograms(envelope *chain.TransactionEnvelope) []chain.Program {
	addrs := envelope.AccountAddressSet()
	var out []chain.Program
	for _, p := range r.catalog.All() {
		if _, ok := addrs[p.Address]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DecodeResult carries the events produced for one program plus any
// decode failure, so a single broken decoder never drops every other
// program's events for the same transaction.
type DecodeResult struct {
	Program chain.Program
	Events  []chain.Event
	Err     error
}

// Decode runs every registered decoder against the programs a transaction
// touches and returns the combined, source-attributed event list plus any
// per-program decode errors — degraded output, never a hard failure for
// the whole transaction (spec.md §7's per-unit isolation requirement).
func (r *Registry) Decode(envelope *chain.TransactionEnvelope) ([]chain.Event, []DecodeResult) {
	source := chain.AttributeSource(envelope, r.aggregators)
	var events []chain.Event
	var results []DecodeResult

	for _, program := range r.touchedPrograms(envelope) {
		sch, ok := r.schemas[program.ID]
		if !ok {
			continue
		}
		decoders := r.decoders[program.ID]
		if len(decoders) == 0 {
			continue
		}

		var programEvents []chain.Event
		var firstErr error
		for _, d := range decoders {
			path := decoderPath(d)
			evs, err := r.safeDecode(d, envelope, program, sch)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				metrics.RecordDecodeError(program.ID, path)
				r.log.Warn().Str("program", program.ID).Str("signature", envelope.Signature).Err(err).Msg("decoder failed")
				continue
			}
			metrics.EventsDecoded.WithLabelValues(program.ID, path).Add(float64(len(evs)))
			programEvents = append(programEvents, evs...)
		}

		for i := range programEvents {
			programEvents[i].ID = fmt.Sprintf("%s:%s:%d", envelope.Signature, program.Address, i)
			programEvents[i].Source = source
		}

		results = append(results, DecodeResult{Program: program, Events: programEvents, Err: firstErr})
		events = append(events, programEvents...)
	}

	return events, results
}

// decoderPath maps a decoder to the metric label naming its decode path.
func decoderPath(d Decoder) string {
	switch d.(type) {
	case *LogEventDecoder:
		return "log"
	case *CPIEventDecoder:
		return "cpi"
	case *InstructionTypeDecoder:
		return "instruction_type"
	default:
		return "unknown"
	}
}

func (r *Registry) safeDecode(d Decoder, envelope *chain.TransactionEnvelope, program chain.Program, sch schema.ProgramSchema) (evs []chain.Event, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("decoder panic: %v", rec)
		}
	}()
	return d.Decode(envelope, program, sch)
}
