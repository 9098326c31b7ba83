package decoder

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/schema"
)

var (
	invokeRe  = regexp.MustCompile(`^Program (\w+) invoke \[(\d+)\]$`)
	successRe = regexp.MustCompile(`^Program (\w+) success$`)
	failedRe  = regexp.MustCompile(`^Program (\w+) failed`)
	dataRe    = regexp.MustCompile(`^Program data: (.+)$`)
)

// LogEventDecoder extracts events from base64-encoded "Program data:" log
// lines emitted while the target program is the active frame on the log
// stack, per spec.md §4.1's log-emitted decoding path.
type LogEventDecoder struct{}

func NewLogEventDecoder() *LogEventDecoder { return &LogEventDecoder{} }

// frame is one entry of the invoke-stack maintained while scanning a
// transaction's log lines.
type frame struct {
	address string
}

func (d *LogEventDecoder) Decode(envelope *chain.TransactionEnvelope, program chain.Program, sch schema.ProgramSchema) ([]chain.Event, error) {
	var events []chain.Event
	var stack []frame
	var firstErr error

	for _, line := range envelope.LogMessages {
		line = strings.TrimSpace(line)

		if m := invokeRe.FindStringSubmatch(line); m != nil {
			stack = append(stack, frame{address: m[1]})
			continue
		}
		if m := successRe.FindStringSubmatch(line); m != nil {
			stack = popFrame(stack, m[1])
			continue
		}
		if m := failedRe.FindStringSubmatch(line); m != nil {
			stack = popFrame(stack, m[1])
			continue
		}
		m := dataRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if len(stack) == 0 || stack[len(stack)-1].address != program.Address {
			continue // data line emitted by a different program in the call stack
		}

		raw, err := base64.StdEncoding.DecodeString(m[1])
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("decode base64 program data: %w", err)
			}
			continue
		}

		evSchema, rest, ok := sch.EventByDiscriminator(raw)
		if !ok {
			continue // unrecognized discriminator: not every log line is an event we model
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

	return events, firstErr
}

// popFrame pops the stack down to and including the innermost frame whose
// address matches. Logs are well-formed in the overwhelming majority of
// transactions; if no frame on the stack matches (a malformed or truncated
// log set) the top frame is popped regardless, so a single mismatch cannot wedge
// every subsequent invocation's attribution for the rest of the scan.
func popFrame(stack []frame, address string) []frame {
	if len(stack) == 0 {
		return stack
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].address == address {
			return stack[:i]
		}
	}
	return stack[:len(stack)-1]
}
