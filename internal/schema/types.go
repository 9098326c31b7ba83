// Package schema holds the static, program-specific binary layouts the
// decoder registry uses to turn raw instruction/log payloads into
// chain.Value trees. Layouts are data, not code: adding a program means
// adding an entry to the catalog, never a new decoding function.
package schema

// FieldKind enumerates the primitive and composite shapes a field's bytes
// can take, modeled on Anchor's IDL type vocabulary.
type FieldKind int

const (
	KindU8 FieldKind = iota
	KindU16
	KindU32
	KindU64
	KindU128
	KindI8
	KindI16
	KindI32
	KindI64
	KindBool
	KindPublicKey
	KindString // u32 length-prefixed UTF-8
	KindBytes  // u32 length-prefixed raw bytes
	KindVec    // u32 length-prefixed sequence of Elem
	KindArray  // fixed-length sequence of Elem, length Len
	KindOption // one presence byte, then Elem if present
	KindStruct // ordered Fields
	KindUnion  // one u8 discriminant, then the matching Variant's payload
)

// Field describes one member of a struct layout.
type Field struct {
	Name   string
	Kind   FieldKind
	Elem   *Field  // for KindVec/KindArray/KindOption
	Len    int     // for KindArray
	Fields []Field // for KindStruct

	// Variants holds the tagged union's arms, in declaration order, for
	// KindUnion: the leading u8 selects Variants[i] by index, Anchor's
	// default enum discriminant width. A variant with Unit set carries no
	// payload bytes of its own; otherwise it is decoded like any other
	// Field (commonly KindStruct, for a variant with named sub-fields).
	Variants []Field
	Unit     bool
}

// Discriminator is the fixed byte prefix identifying which event or
// instruction a payload encodes.
type Discriminator []byte

func (d Discriminator) Key() string { return string(d) }

// EventSchema is one log-emitted or CPI-emitted event layout.
type EventSchema struct {
	Name          string
	Discriminator Discriminator
	Fields        []Field
}

// InstructionSchema is one instruction layout, used by the instruction-type
// decoder for programs where a lifecycle transition (pool init, migration)
// is not separately log-emitted and must be inferred from the instruction
// itself.
type InstructionSchema struct {
	Name          string
	Discriminator Discriminator
	Fields        []Field
}

// ProgramSchema bundles everything the decoder registry needs to decode
// one program's events and instructions.
type ProgramSchema struct {
	ProgramID string
	// CPIWrapperDiscriminator, when non-nil, is an outer 8-byte marker some
	// programs prefix CPI event payloads with before the event's own
	// discriminator (spec.md §4.1's "known wrapper discriminator" case).
	CPIWrapperDiscriminator Discriminator
	Events                  map[string]EventSchema
	Instructions            map[string]InstructionSchema
}

func NewProgramSchema(programID string, wrapper Discriminator, items []EventSchemaOrInstruction) ProgramSchema {
	s := ProgramSchema{
		ProgramID:               programID,
		CPIWrapperDiscriminator: wrapper,
		Events:                  map[string]EventSchema{},
		Instructions:            map[string]InstructionSchema{},
	}
	for _, e := range items {
		if e.event != nil {
			s.Events[e.event.Discriminator.Key()] = *e.event
		}
		if e.instruction != nil {
			s.Instructions[e.instruction.Discriminator.Key()] = *e.instruction
		}
	}
	return s
}

// EventSchemaOrInstruction is a tiny sum type used only to keep catalog.go's
// registration calls compact; it is not part of the public decoding API.
type EventSchemaOrInstruction struct {
	event       *EventSchema
	instruction *InstructionSchema
}

func AsEvent(s EventSchema) EventSchemaOrInstruction { return EventSchemaOrInstruction{event: &s} }
func AsInstruction(s InstructionSchema) EventSchemaOrInstruction {
	return EventSchemaOrInstruction{instruction: &s}
}

// EventByDiscriminator looks up an event schema by its leading bytes.
func (s ProgramSchema) EventByDiscriminator(data []byte) (EventSchema, []byte, bool) {
	for _, candidate := range s.Events {
		n := len(candidate.Discriminator)
		if len(data) >= n && string(data[:n]) == candidate.Discriminator.Key() {
			return candidate, data[n:], true
		}
	}
	return EventSchema{}, nil, false
}

// InstructionByDiscriminator looks up an instruction schema by its leading
// bytes.
func (s ProgramSchema) InstructionByDiscriminator(data []byte) (InstructionSchema, []byte, bool) {
	for _, candidate := range s.Instructions {
		n := len(candidate.Discriminator)
		if len(data) >= n && string(data[:n]) == candidate.Discriminator.Key() {
			return candidate, data[n:], true
		}
	}
	return InstructionSchema{}, nil, false
}
