// Package filterengine evaluates a pipeline.Filter tree against a decoded
// chain.Event, per spec.md §4.3.
package filterengine

import (
	"strconv"
	"strings"

	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/pipeline"
)

// mintFields is the fixed set of mint-role field names the "mints"
// convenience filter scans, snake_case and camelCase variants both
// recognized per spec.md §4.3.5.
var mintFields = []string{
	"mint", "token_mint", "tokenMint", "base_mint", "baseMint",
	"quote_mint", "quoteMint", "input_mint", "inputMint",
	"output_mint", "outputMint",
}

// actorFields is the fixed set of actor-role field names the "wallets"
// convenience filter scans, beyond event.signer, per spec.md §4.3.6.
var actorFields = []string{
	"user", "creator", "trader", "owner", "authority", "from",
}

// solAmountFields/tokenAmountFields are the ordered probe lists used to
// derive a numeric amount when a pipeline's solAmount/tokenAmount range
// filter does not name an exact field, per spec.md §4.3.8.
var solAmountFields = []string{"sol_amount", "solAmount", "quote_amount", "quoteAmount", "lamports"}
var tokenAmountFields = []string{"token_amount", "tokenAmount", "base_amount", "baseAmount"}

// accountRoleFields is the fixed role list scanned (recursively) when
// resolving accounts.include/accounts.exclude, per spec.md §4.3.9. Only
// strings of length >= 32 are treated as candidate addresses.
var accountRoleFields = append(append([]string{}, mintFields...), append(actorFields,
	"pool", "bonding_curve", "bondingCurve", "global", "fee_recipient", "feeRecipient", "to")...)

// Evaluate reports whether an event matches a filter tree. A nil filter
// matches everything.
func Evaluate(f *pipeline.Filter, envelope *chain.TransactionEnvelope, ev chain.Event) bool {
	if f == nil {
		return true
	}
	if len(f.And) > 0 {
		for _, c := range f.And {
			if !Evaluate(c, envelope, ev) {
				return false
			}
		}
		return true
	}
	if len(f.Or) > 0 {
		for _, c := range f.Or {
			if Evaluate(c, envelope, ev) {
				return true
			}
		}
		return false
	}

	if len(f.Instructions) > 0 && !containsString(f.Instructions, ev.Name) {
		return false
	}
	if len(f.Mints) > 0 && !matchesAny(f.Mints, collectFields(ev, mintFields)) {
		return false
	}
	if len(f.Wallets) > 0 {
		candidates := collectFields(ev, actorFields)
		if ev.Signer != "" {
			candidates = append(candidates, ev.Signer)
		}
		if !matchesAny(f.Wallets, candidates) {
			return false
		}
	}
	if f.IsBuy != nil {
		isBuy, ok := deriveIsBuy(ev)
		if ok && isBuy != *f.IsBuy {
			return false
		}
		// undecidable: skip per spec.md §4.3.7/P5, never rejects.
	}
	if f.SolAmount != nil {
		if amt, ok := deriveAmount(ev, solAmountFields, true); ok {
			if !inRange(amt, f.SolAmount) {
				return false
			}
		}
		// undecidable: skip, per P5.
	}
	if f.TokenAmount != nil {
		if amt, ok := deriveAmount(ev, tokenAmountFields, false); ok {
			if !inRange(amt, f.TokenAmount) {
				return false
			}
		}
	}
	if !f.Accounts.IsEmpty() && !evaluateAccounts(f.Accounts, ev) {
		return false
	}
	for _, c := range f.Conditions {
		if !evaluateCondition(c, ev) {
			return false
		}
	}
	return true
}

func inRange(v float64, r *pipeline.Range) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// deriveIsBuy implements spec.md §4.3.7's direction derivation: explicit
// is_buy, else trade_direction (0 == buy), else an "buy"/"sell" substring
// in the event name. Returns ok=false when none of these resolve.
func deriveIsBuy(ev chain.Event) (bool, bool) {
	if v, ok := firstField(ev, []string{"is_buy", "isBuy"}); ok {
		if b, ok := v.AsBool(); ok {
			return b, true
		}
	}
	if v, ok := firstField(ev, []string{"trade_direction", "tradeDirection"}); ok {
		if n, ok := numeric(v); ok {
			return n == 0, true
		}
	}
	lower := strings.ToLower(ev.Name)
	if strings.Contains(lower, "buy") {
		return true, true
	}
	if strings.Contains(lower, "sell") {
		return false, true
	}
	return false, false
}

// deriveAmount probes an ordered field list and, for SOL-denominated
// fields, divides lamports by 1e9 before comparison, per spec.md §4.3.8.
func deriveAmount(ev chain.Event, fields []string, isSOL bool) (float64, bool) {
	v, ok := firstField(ev, fields)
	if !ok {
		return 0, false
	}
	n, ok := numeric(v)
	if !ok {
		return 0, false
	}
	if isSOL {
		n /= 1e9
	}
	return n, true
}

func firstField(ev chain.Event, names []string) (chain.Value, bool) {
	for _, name := range names {
		if v, ok := ev.Data[name]; ok {
			return v, true
		}
	}
	return chain.Value{}, false
}

// collectFields gathers the string value of every present field name,
// from the top-level event data only (account/wallet role fields are not
// nested in the schemas the runtime decodes).
func collectFields(ev chain.Event, names []string) []string {
	var out []string
	for _, name := range names {
		if v, ok := ev.Data[name]; ok {
			if s, ok := v.AsString(); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func matchesAny(candidates, values []string) bool {
	for _, v := range values {
		if containsString(candidates, v) {
			return true
		}
	}
	return false
}

// evaluateAccounts collects every account-like string reachable from the
// event (signer plus any role-named field, recursed through nested maps,
// restricted to strings of length >= 32) and checks it against the
// include/exclude sets, per spec.md §4.3.9: include requires at least one
// overlap, exclude forbids any overlap. Scoped to the event only — a
// transaction's other, unrelated account keys never participate.
func evaluateAccounts(c pipeline.AccountConstraint, ev chain.Event) bool {
	accounts := collectAccountLikeStrings(ev)
	if ev.Signer != "" {
		accounts = append(accounts, ev.Signer)
	}
	set := make(map[string]struct{}, len(accounts))
	for _, a := range accounts {
		set[a] = struct{}{}
	}
	for _, addr := range c.Exclude {
		if _, ok := set[addr]; ok {
			return false
		}
	}
	if len(c.Include) == 0 {
		return true
	}
	for _, addr := range c.Include {
		if _, ok := set[addr]; ok {
			return true
		}
	}
	return false
}

func collectAccountLikeStrings(ev chain.Event) []string {
	var out []string
	for _, name := range accountRoleFields {
		if v, ok := ev.Data[name]; ok {
			collectStringsFrom(v, &out)
		}
	}
	return out
}

func collectStringsFrom(v chain.Value, out *[]string) {
	if s, ok := v.AsString(); ok {
		if len(s) >= 32 {
			*out = append(*out, s)
		}
		return
	}
	if m, ok := v.AsMap(); ok {
		for _, child := range m {
			collectStringsFrom(child, out)
		}
		return
	}
	if list, ok := v.AsList(); ok {
		for _, child := range list {
			collectStringsFrom(child, out)
		}
	}
}

// evaluateCondition resolves a dotted-path condition. A path that does not
// resolve on the event is "undefined": eq/neq treat undefined and null as
// equal, every other operator returns false, per spec.md §4.3's operator
// table and §7's FilterEvalError taxonomy.
func evaluateCondition(c pipeline.Condition, ev chain.Event) bool {
	path := strings.Split(c.Path, ".")
	val, ok := ev.Get(path)
	if !ok {
		switch c.Op {
		case pipeline.OpEq:
			return c.Value == nil
		case pipeline.OpNeq:
			return c.Value != nil
		default:
			return false
		}
	}
	return compare(val, c.Op, c.Value)
}

func compare(v chain.Value, op pipeline.Operator, target any) bool {
	switch op {
	case pipeline.OpIn, pipeline.OpNin:
		list, ok := target.([]any)
		if !ok {
			return false
		}
		matched := false
		for _, item := range list {
			if equalsScalar(v, item) {
				matched = true
				break
			}
		}
		if op == pipeline.OpIn {
			return matched
		}
		return !matched
	case pipeline.OpContains:
		s, ok := v.AsString()
		if !ok {
			return false
		}
		sub, ok := target.(string)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
	case pipeline.OpEq:
		return equalsScalar(v, target)
	case pipeline.OpNeq:
		return !equalsScalar(v, target)
	case pipeline.OpGt, pipeline.OpGte, pipeline.OpLt, pipeline.OpLte:
		vn, ok := numeric(v)
		if !ok {
			return false
		}
		tn, ok := toFloat(target)
		if !ok {
			return false
		}
		switch op {
		case pipeline.OpGt:
			return vn > tn
		case pipeline.OpGte:
			return vn >= tn
		case pipeline.OpLt:
			return vn < tn
		case pipeline.OpLte:
			return vn <= tn
		}
	}
	return false
}

func numeric(v chain.Value) (float64, bool) {
	if n, ok := v.AsNumber(); ok {
		return n, true
	}
	if s, ok := v.AsBigInt(); ok {
		return toFloat(s)
	}
	if s, ok := v.AsString(); ok {
		return toFloat(s)
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// equalsScalar implements spec.md §4.3's eq/neq rule that numeric and
// stringified forms compare equal (e.g. "5" equals 5).
func equalsScalar(v chain.Value, target any) bool {
	switch t := target.(type) {
	case string:
		if s, ok := v.AsString(); ok {
			return s == t
		}
		if s, ok := v.AsBigInt(); ok {
			return s == t
		}
		if n, ok := v.AsNumber(); ok {
			tf, err := strconv.ParseFloat(t, 64)
			return err == nil && n == tf
		}
		if b, ok := v.AsBool(); ok {
			return strconv.FormatBool(b) == t
		}
	case bool:
		if b, ok := v.AsBool(); ok {
			return b == t
		}
	case float64, int:
		n, ok := numeric(v)
		tf, _ := toFloat(t)
		return ok && n == tf
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
