package pipeline

import "github.com/wnt/tada/internal/chain"

// OutputRecord is what the transform engine hands to the delivery
// dispatcher: the reshaped payload plus enough provenance to log, retry,
// and route it without re-touching the original event, per spec.md §3.5.
type OutputRecord struct {
	ID         string
	PipelineID string
	Program    string
	Signature  string
	Timestamp  int64 // event blockTime in milliseconds
	Data       map[string]chain.Value
}
