package decoder

import (
	"strings"

	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/schema"
)

// roleClass buckets an event name into the shape of role table it needs:
// every program's trade-like instruction has a different account layout
// from its migration-like one, but the two classes recur across programs.
type roleClass string

const (
	roleClassTrade     roleClass = "trade"
	roleClassMigration roleClass = "migration"
)

// accountRoleTables names the accounts[] positions of a program's
// trade-like or migration-like instruction, per spec.md §4.1.3: account
// role order is a property of one program's own instruction layout, never
// shared across programs. A program/class combination absent from this
// table is left unenriched rather than guessed from another program's
// layout. Out-of-range indices are omitted silently.
var accountRoleTables = map[string]map[roleClass][]string{
	schema.ProgramPump: {
		roleClassTrade:     {"global", "fee_recipient", "mint", "bonding_curve", "associated_bonding_curve", "associated_user", "user"},
		roleClassMigration: {"global", "mint", "bonding_curve", "pool", "user"},
	},
	schema.ProgramPumpAMM: {
		roleClassTrade: {"pool", "global_config", "base_mint", "quote_mint", "pool_base_token_account", "pool_quote_token_account", "user"},
	},
	schema.ProgramRaydiumLaunch: {
		roleClassTrade: {"authority", "global_config", "pool_state", "base_vault", "quote_vault", "user_base_token", "user_quote_token", "user"},
	},
	schema.ProgramMeteoraDBC: {
		roleClassTrade:     {"pool_authority", "config", "pool", "base_vault", "quote_vault", "base_mint", "quote_mint", "user"},
		roleClassMigration: {"pool_authority", "config", "pool", "base_vault", "quote_vault", "user"},
	},
	schema.ProgramMeteoraDAMMv2: {
		roleClassTrade: {"pool_authority", "pool", "token_a_vault", "token_b_vault", "token_a_mint", "token_b_mint", "user"},
	},
	schema.ProgramMoonshot: {
		roleClassTrade:     {"sender", "curve_account", "config_account", "dex_fee", "helio_fee", "mint", "user"},
		roleClassMigration: {"curve_account", "config_account", "mint", "pool", "user"},
	},
}

// EnrichTokenIdentity fills in a decoded event's mint/decimals fields from
// the transaction's pre/post token-balance snapshot when the event payload
// itself did not carry a mint — some CPI payloads reference an account
// index rather than embedding the mint directly. Grounded on the
// pre/post-balance cross-referencing pattern used for aggregator swaps,
// where the mint traded is inferred rather than read off the instruction.
func EnrichTokenIdentity(envelope *chain.TransactionEnvelope, ev *chain.Event) {
	if _, ok := ev.Data["mint"]; ok {
		return
	}
	idxVal, ok := ev.Data["tokenAccountIndex"]
	if !ok {
		return
	}
	n, ok := idxVal.AsNumber()
	if !ok {
		return
	}
	bal, found := envelope.TokenBalanceByAccountIndex(int(n))
	if !found {
		return
	}
	ev.Data["mint"] = chain.String(bal.Mint)
	ev.Data["decimals"] = chain.Number(float64(bal.Decimals))
}

// EnrichTokenMints infers token_mint/quote_mint from the transaction's
// post-token-balance snapshot, per spec.md §4.1.3: the single non-native
// mint becomes token_mint; the wrapped-SOL mint becomes quote_mint when
// present, otherwise the second non-native mint. Never overwrites a field
// the decoder already populated.
func EnrichTokenMints(envelope *chain.TransactionEnvelope, ev *chain.Event) {
	if _, ok := ev.Data["token_mint"]; ok {
		return
	}
	var nonNative []string
	seen := make(map[string]struct{})
	hasWrappedSOL := false
	for _, bal := range envelope.PostTokenBalances {
		if bal.Mint == "" {
			continue
		}
		if _, dup := seen[bal.Mint]; dup {
			continue
		}
		seen[bal.Mint] = struct{}{}
		if bal.Mint == chain.WrappedSOLMint {
			hasWrappedSOL = true
			continue
		}
		nonNative = append(nonNative, bal.Mint)
	}
	if len(nonNative) == 0 {
		return
	}
	ev.Data["token_mint"] = chain.String(nonNative[0])
	if hasWrappedSOL {
		ev.Data["quote_mint"] = chain.String(chain.WrappedSOLMint)
	} else if len(nonNative) > 1 {
		ev.Data["quote_mint"] = chain.String(nonNative[1])
	}
}

// EnrichAccountRoles extracts role-named accounts from the transaction's
// primary outer instruction (the first outer instruction whose program
// matches the event's program), per spec.md §4.1.3. Role mapping is keyed
// by the event's own program id and by whether its name looks trade-like
// or migration-like; a program with no table for that class, or an event
// name that is neither, is left unenriched.
func EnrichAccountRoles(envelope *chain.TransactionEnvelope, ev *chain.Event) {
	roles := rolesFor(ev.ProgramID, ev.Name)
	if roles == nil {
		return
	}
	var primary *chain.CompiledInstruction
	for i := range envelope.Instructions {
		if envelope.ProgramAt(envelope.Instructions[i]) == ev.ProgramAddress {
			primary = &envelope.Instructions[i]
			break
		}
	}
	if primary == nil {
		return
	}
	for i, role := range roles {
		if i >= len(primary.AccountIndexes) {
			break
		}
		if _, exists := ev.Data[role]; exists {
			continue
		}
		addr := envelope.AccountAt(primary.AccountIndexes[i])
		if addr == "" {
			continue
		}
		ev.Data[role] = chain.String(addr)
	}
}

func rolesFor(programID, name string) []string {
	class, ok := classifyEventName(name)
	if !ok {
		return nil
	}
	return accountRoleTables[programID][class]
}

func classifyEventName(name string) (roleClass, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "migrat") || strings.Contains(lower, "complete"):
		return roleClassMigration, true
	case strings.Contains(lower, "trade") || strings.Contains(lower, "swap") || strings.Contains(lower, "buy") || strings.Contains(lower, "sell"):
		return roleClassTrade, true
	default:
		return "", false
	}
}

// EnrichNestedStructures flattens first-level nested map fields (e.g.
// swap_result.input_amount) into bare top-level keys (input_amount),
// per spec.md §4.1.3 and §9's open question: the nested struct is left in
// place under its own key (e.g. swap_result) so both the flattened and
// nested forms are available — the trade template dereferences
// swap_result.* directly while other consumers read the flattened key. A
// top-level key already present wins over the flattened one, so a
// decoder's own field is never clobbered by enrichment.
func EnrichNestedStructures(ev *chain.Event) {
	for _, val := range ev.Data {
		nested, ok := val.AsMap()
		if !ok {
			continue
		}
		for childKey, childVal := range nested {
			if _, exists := ev.Data[childKey]; exists {
				continue
			}
			ev.Data[childKey] = childVal
		}
	}
}

// EnrichAll runs every enrichment pass over a decoded event batch in
// place. Enrichment never removes or overwrites a field a decoder already
// populated; it only fills gaps.
func EnrichAll(envelope *chain.TransactionEnvelope, events []chain.Event) {
	for i := range events {
		EnrichTokenIdentity(envelope, &events[i])
		EnrichTokenMints(envelope, &events[i])
		EnrichAccountRoles(envelope, &events[i])
		EnrichNestedStructures(&events[i])
	}
}
