// Package chain holds the wire-level Solana transaction shapes the decoder
// registry consumes and the Event/Value model it produces.
package chain

// AccountKey is one entry of a transaction's resolved account-key list,
// including keys pulled in from address lookup tables.
type AccountKey struct {
	Address        string
	Signer         bool
	Writable       bool
	FromLookupTable bool
}

// CompiledInstruction is a single instruction as it appears on either the
// top-level instruction list or inside an inner-instruction group.
type CompiledInstruction struct {
	ProgramIDIndex int
	AccountIndexes []int
	Data           []byte
}

// InnerInstructionGroup collects the inner instructions produced by CPI
// calls made from the top-level instruction at Index.
type InnerInstructionGroup struct {
	Index        int
	Instructions []CompiledInstruction
}

// TokenBalance is one row of a transaction's pre/post SPL token balance
// snapshot, used for token-identity inference when an instruction payload
// does not carry a mint directly.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       string
	Decimals     int
}

// TransactionEnvelope is the normalized shape the decoder registry operates
// on, independent of whichever upstream ingestion transport produced it.
type TransactionEnvelope struct {
	Signature              string
	Slot                   uint64
	BlockTime               int64
	AccountKeys             []AccountKey
	Instructions            []CompiledInstruction
	InnerInstructionGroups  []InnerInstructionGroup
	LogMessages             []string
	PreTokenBalances        []TokenBalance
	PostTokenBalances       []TokenBalance
	Failed                  bool
}

// AccountAt returns the resolved address for an account index, or "" if the
// index is out of range. Account indexes arrive untrusted from chain data,
// so every caller that indexes into AccountKeys should go through this.
func (e *TransactionEnvelope) AccountAt(i int) string {
	if i < 0 || i >= len(e.AccountKeys) {
		return ""
	}
	return e.AccountKeys[i].Address
}

// ProgramAt resolves the program address invoked by a compiled instruction.
func (e *TransactionEnvelope) ProgramAt(ins CompiledInstruction) string {
	return e.AccountAt(ins.ProgramIDIndex)
}

// AccountAddressSet returns the full set of account addresses touched by
// the transaction, used to find which catalog programs it touches.
func (e *TransactionEnvelope) AccountAddressSet() map[string]struct{} {
	set := make(map[string]struct{}, len(e.AccountKeys))
	for _, k := range e.AccountKeys {
		set[k.Address] = struct{}{}
	}
	return set
}

// AccountAddresses returns every account address touched by the
// transaction in account-key list order (including addresses resolved
// from lookup tables), used for deterministic first-match aggregator
// attribution per spec.md §4.1.
func (e *TransactionEnvelope) AccountAddresses() []string {
	out := make([]string, len(e.AccountKeys))
	for i, k := range e.AccountKeys {
		out[i] = k.Address
	}
	return out
}

// InnerInstructionsFor returns the inner instructions emitted by the
// top-level instruction at index idx, or nil if it produced none.
func (e *TransactionEnvelope) InnerInstructionsFor(idx int) []CompiledInstruction {
	for _, g := range e.InnerInstructionGroups {
		if g.Index == idx {
			return g.Instructions
		}
	}
	return nil
}

// TokenBalanceByAccountIndex looks up a post-balance row by account index,
// falling back to the pre-balance row when no post row exists (account
// closed during the transaction).
func (e *TransactionEnvelope) TokenBalanceByAccountIndex(idx int) (TokenBalance, bool) {
	for _, b := range e.PostTokenBalances {
		if b.AccountIndex == idx {
			return b, true
		}
	}
	for _, b := range e.PreTokenBalances {
		if b.AccountIndex == idx {
			return b, true
		}
	}
	return TokenBalance{}, false
}
