// Package transformengine reshapes a matched chain.Event into the
// pipeline.OutputRecord a destination actually receives, per spec.md §4.4.
package transformengine

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/pipeline"
)

// Apply renders an event through a pipeline's transform configuration.
// The base output fields (id, pipelineId, program, signature, timestamp)
// are always present; only data varies by mode, per spec.md §4.4.
func Apply(t pipeline.Transform, pipelineID string, ev chain.Event) (pipeline.OutputRecord, error) {
	var data map[string]chain.Value
	var err error

	switch t.Mode {
	case pipeline.ModeTemplate:
		data, err = applyTemplate(t.Template, ev)
	case pipeline.ModeFields:
		data, err = applyFields(t.Fields, ev)
	case pipeline.ModeCode:
		// Reserved escape hatch; treated as raw and logged once per
		// evaluation, per spec.md §4.4.
		log.Warn().Str("pipeline", pipelineID).Str("event", ev.ID).Msg("transform mode=code is not executed, falling back to raw")
		data = renderRaw(ev)
	default:
		err = fmt.Errorf("transformengine: unknown mode %q", t.Mode)
	}
	if err != nil {
		return pipeline.OutputRecord{}, err
	}

	return pipeline.OutputRecord{
		ID:         ev.ID,
		PipelineID: pipelineID,
		Program:    ev.ProgramID,
		Signature:  ev.Signature,
		Timestamp:  ev.BlockTime * 1000,
		Data:       data,
	}, nil
}

func applyFields(specs []pipeline.FieldSpec, ev chain.Event) (map[string]chain.Value, error) {
	out := make(map[string]chain.Value, len(specs))
	for _, spec := range specs {
		v, ok := ev.Get(strings.Split(spec.Path, "."))
		if !ok {
			continue // missing source path yields no output field, a legitimate result
		}
		for _, name := range spec.Pipes {
			pipe, found := Lookup(name)
			if !found {
				// Unknown pipe name: treated as identity, per spec.md §7's
				// TransformError taxonomy, rather than dropping the event.
				continue
			}
			var err error
			v, err = pipe(v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", spec.Name, err)
			}
		}
		out[spec.Name] = v
	}
	return out, nil
}

func applyTemplate(t pipeline.Template, ev chain.Event) (map[string]chain.Value, error) {
	switch t {
	case pipeline.TemplateTrade:
		return renderTrade(ev), nil
	case pipeline.TemplateTransfer:
		return renderTransfer(ev), nil
	case pipeline.TemplateMigration:
		return renderMigration(ev), nil
	case pipeline.TemplateRaw, "":
		return renderRaw(ev), nil
	default:
		return nil, fmt.Errorf("transformengine: unknown template %q", t)
	}
}

// renderRaw implements the default raw template: data = {name, program,
// signer, ...event.data}, per spec.md §4.4/P6.
func renderRaw(ev chain.Event) map[string]chain.Value {
	out := make(map[string]chain.Value, len(ev.Data)+3)
	for k, v := range ev.Data {
		out[k] = v
	}
	out["name"] = chain.String(ev.Name)
	out["program"] = chain.String(ev.ProgramID)
	out["signer"] = chain.String(ev.Signer)
	return out
}

// tokenFields/solFields/tokenAmountFields mirror the filter engine's
// field-probe lists (spec.md §4.3.5/§4.3.8), reused here for the trade
// template's fallback chains.
var tokenFields = []string{"mint", "token_mint", "base_mint", "input_mint", "pool"}
var solFields = []string{"sol_amount", "solAmount", "quote_amount", "quoteAmount", "lamports"}
var tokenAmountFields = []string{"token_amount", "tokenAmount", "base_amount", "baseAmount"}

func renderTrade(ev chain.Event) map[string]chain.Value {
	out := map[string]chain.Value{
		"type":      chain.String("trade"),
		"eventName": chain.String(ev.Name),
		"trader":    chain.String(ev.Signer),
	}

	out["direction"] = chain.String(tradeDirection(ev))

	if tok, ok := firstPresent(ev, tokenFields); ok {
		out["token"] = tok
	}
	if sol, ok := firstNumericSOL(ev, solFields); ok {
		out["solAmount"] = sol
	}
	if amt, ok := firstPresent(ev, tokenAmountFields); ok {
		out["tokenAmount"] = amt
	}

	swapResult, hasSwapResult := ev.Data["swap_result"]
	var swapResultMap map[string]chain.Value
	if hasSwapResult {
		swapResultMap, _ = swapResult.AsMap()
	}
	if v, ok := lookupFlatOrNested(ev, "input_amount", swapResultMap, "input_amount"); ok {
		out["inputAmount"] = v
	}
	if v, ok := lookupFlatOrNested(ev, "output_amount", swapResultMap, "output_amount"); ok {
		out["outputAmount"] = v
	}
	if v, ok := lookupFlatOrNested(ev, "trading_fee", swapResultMap, "trading_fee"); ok {
		out["tradingFee"] = v
	}

	if price, ok := tradePrice(ev); ok {
		out["price"] = price
	}
	if pool, ok := ev.Data["pool"]; ok {
		out["pool"] = pool
	}

	return out
}

// tradeDirection derives buy/sell the same way the filter engine does
// (spec.md §4.3.7), falling back to "swap" when undecidable.
func tradeDirection(ev chain.Event) string {
	if v, ok := firstPresent(ev, []string{"is_buy", "isBuy"}); ok {
		if b, ok := v.AsBool(); ok {
			if b {
				return "buy"
			}
			return "sell"
		}
	}
	if v, ok := firstPresent(ev, []string{"trade_direction", "tradeDirection"}); ok {
		if n, ok := v.AsNumber(); ok {
			if n == 0 {
				return "buy"
			}
			return "sell"
		}
	}
	lower := strings.ToLower(ev.Name)
	if strings.Contains(lower, "buy") {
		return "buy"
	}
	if strings.Contains(lower, "sell") {
		return "sell"
	}
	return "swap"
}

func firstPresent(ev chain.Event, fields []string) (chain.Value, bool) {
	for _, f := range fields {
		if v, ok := ev.Data[f]; ok {
			return v, true
		}
	}
	return chain.Value{}, false
}

func firstNumericSOL(ev chain.Event, fields []string) (chain.Value, bool) {
	v, ok := firstPresent(ev, fields)
	if !ok {
		return chain.Value{}, false
	}
	out, err := lamportsToSol(v)
	if err != nil {
		return chain.Value{}, false
	}
	return out, true
}

func lookupFlatOrNested(ev chain.Event, flatKey string, nested map[string]chain.Value, nestedKey string) (chain.Value, bool) {
	if v, ok := ev.Data[flatKey]; ok {
		return v, true
	}
	if nested != nil {
		if v, ok := nested[nestedKey]; ok {
			return v, true
		}
	}
	return chain.Value{}, false
}

// tradePrice computes virtual_sol_reserves / virtual_token_reserves when
// both are present and the denominator is positive, per spec.md §4.4.
func tradePrice(ev chain.Event) (chain.Value, bool) {
	solRes, ok1 := ev.Data["virtual_sol_reserves"]
	tokRes, ok2 := ev.Data["virtual_token_reserves"]
	if !ok1 {
		solRes, ok1 = ev.Data["virtualSolReserves"]
	}
	if !ok2 {
		tokRes, ok2 = ev.Data["virtualTokenReserves"]
	}
	if !ok1 || !ok2 {
		return chain.Value{}, false
	}
	sol, err1 := asFloat(solRes)
	tok, err2 := asFloat(tokRes)
	if err1 != nil || err2 != nil || tok <= 0 {
		return chain.Value{}, false
	}
	return chain.Number(sol / tok), true
}

func asFloat(v chain.Value) (float64, error) {
	if n, ok := v.AsNumber(); ok {
		return n, nil
	}
	if s, ok := v.AsBigInt(); ok {
		var n float64
		if _, err := fmt.Sscanf(s, "%f", &n); err != nil {
			return 0, err
		}
		return n, nil
	}
	return 0, fmt.Errorf("value is not numeric")
}

func renderTransfer(ev chain.Event) map[string]chain.Value {
	out := map[string]chain.Value{
		"type":      chain.String("transfer"),
		"eventName": chain.String(ev.Name),
	}
	if from, ok := ev.Data["from"]; ok {
		out["from"] = from
	} else {
		out["from"] = chain.String(ev.Signer)
	}
	if to, ok := ev.Data["to"]; ok {
		out["to"] = to
	}
	if amount, ok := ev.Data["amount"]; ok {
		out["amount"] = amount
	}
	if mint, ok := ev.Data["mint"]; ok {
		out["mint"] = mint
	}
	return out
}

func renderMigration(ev chain.Event) map[string]chain.Value {
	out := map[string]chain.Value{
		"type":      chain.String("migration"),
		"eventName": chain.String(ev.Name),
		"timestamp": chain.Number(float64(ev.BlockTime)),
	}
	if token, ok := firstPresent(ev, []string{"mint", "token_mint"}); ok {
		out["token"] = token
	}
	if pool, ok := ev.Data["pool"]; ok {
		out["pool"] = pool
	}
	if creator, ok := firstPresent(ev, []string{"creator", "user"}); ok {
		out["creator"] = creator
	}
	if v, ok := firstPresent(ev, []string{"virtual_sol_reserves", "virtualSolReserves", "solAmount"}); ok {
		if sol, err := lamportsToSol(v); err == nil {
			out["solRaised"] = sol
		}
	}
	return out
}
