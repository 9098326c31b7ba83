package transformengine

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/schema"
)

// Pipe transforms a single resolved value into another chain.Value. Pipes
// are named, stateless, and composed left to right in a field's pipe
// list, per spec.md §4.4.
type Pipe func(chain.Value) (chain.Value, error)

var lamportsPerSOL = big.NewFloat(1_000_000_000)

// pipeCatalog is the named pipe catalog the fields-mode transform can chain.
var pipeCatalog = map[string]Pipe{
	"lamportsToSol":         lamportsToSol,
	"base58":                toBase58,
	"timestamp":             toTimestamp,
	"shorten":               shorten,
	"bondingCurveProgress":  bondingCurveProgress,
}

func Lookup(name string) (Pipe, bool) {
	p, ok := pipeCatalog[name]
	return p, ok
}

// lamportsToSol converts a lamports integer (number or big-int string)
// into a SOL-denominated number.
func lamportsToSol(v chain.Value) (chain.Value, error) {
	f, err := asBigFloat(v)
	if err != nil {
		return chain.Value{}, fmt.Errorf("lamportsToSol: %w", err)
	}
	sol := new(big.Float).Quo(f, lamportsPerSOL)
	out, _ := sol.Float64()
	return chain.Number(out), nil
}

// toBase58 is identity string coercion: byte blobs and addresses are
// already base58-encoded by the decoder layer (spec.md §4.1's value
// normalization), so this pipe exists purely so a field spec can name it
// explicitly without special-casing "already the right shape" upstream.
func toBase58(v chain.Value) (chain.Value, error) {
	s, ok := v.AsString()
	if !ok {
		return chain.Value{}, fmt.Errorf("base58: value is not a string")
	}
	return chain.String(s), nil
}

// toTimestamp renders a unix-seconds number/big-int as RFC3339.
func toTimestamp(v chain.Value) (chain.Value, error) {
	f, err := asBigFloat(v)
	if err != nil {
		return chain.Value{}, fmt.Errorf("timestamp: %w", err)
	}
	secs, _ := f.Int64()
	return chain.String(time.Unix(secs, 0).UTC().Format(time.RFC3339)), nil
}

// shorten renders a base58 address as "first4...last4" for display
// destinations (chat/bot messages), identity when len(s) <= 12 per
// spec.md §4.4/P7.
func shorten(v chain.Value) (chain.Value, error) {
	s, ok := v.AsString()
	if !ok {
		return chain.Value{}, fmt.Errorf("shorten: value is not a string")
	}
	if len(s) <= 12 {
		return chain.String(s), nil
	}
	return chain.String(s[:4] + "..." + s[len(s)-4:]), nil
}

// bondingCurveProgress renders how far a pre-migration pool's virtual
// token reserves have fallen from their initial value, as a percentage:
// ((INITIAL - current) / INITIAL) * 100, clamped to [0,100] and rounded
// to two decimals, per spec.md §4.4/P7. INITIAL is the bonding-curve
// program's documented starting reserve (schema.InitialVirtualTokenReserves).
func bondingCurveProgress(v chain.Value) (chain.Value, error) {
	f, err := asBigFloat(v)
	if err != nil {
		return chain.Value{}, fmt.Errorf("bondingCurveProgress: %w", err)
	}
	current, _ := f.Float64()
	initial := float64(schema.InitialVirtualTokenReserves)
	progress := ((initial - current) / initial) * 100
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	progress = math.Round(progress*100) / 100
	return chain.Number(progress), nil
}

func asBigFloat(v chain.Value) (*big.Float, error) {
	if n, ok := v.AsNumber(); ok {
		return big.NewFloat(n), nil
	}
	if s, ok := v.AsBigInt(); ok {
		f, ok := new(big.Float).SetString(s)
		if !ok {
			return nil, fmt.Errorf("not numeric: %q", s)
		}
		return f, nil
	}
	if s, ok := v.AsString(); ok {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("not numeric: %q", s)
		}
		return big.NewFloat(n), nil
	}
	return nil, fmt.Errorf("value is not numeric")
}
