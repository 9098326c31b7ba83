package schema

import "crypto/sha256"

// anchorDiscriminator reproduces the standard Anchor convention of
// deriving an 8-byte discriminator from sha256("<namespace>:<name>"). Log-
// emitted events use the "event" namespace, instructions use "global".
func anchorDiscriminator(namespace, name string) Discriminator {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	return Discriminator(sum[:8])
}

func eventDisc(name string) Discriminator       { return anchorDiscriminator("event", name) }
func instructionDisc(name string) Discriminator { return anchorDiscriminator("global", name) }

// Program ids/addresses for the six programs the runtime ships schemas
// for: two log-emitted and four CPI-emitted, one of the latter being the
// bonding-curve program that needs instruction-type fallback for
// lifecycle events that are not separately logged.
const (
	ProgramPump         = "pump"
	ProgramPumpAMM      = "pump_amm"
	ProgramRaydiumLaunch = "raydium_launchpad"
	ProgramMeteoraDBC   = "meteora_dbc"
	ProgramMeteoraDAMMv2 = "meteora_damm_v2"
	ProgramMoonshot     = "moonshot"

	AddrPump          = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	AddrPumpAMM       = "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA"
	AddrRaydiumLaunch = "LanMV9sAd7wArD4vJFi2qDdfnVhFxYSUg6eADduJ3uj"
	AddrMeteoraDBC    = "dbcij3LWUppWqq96dh6gJWwBifmcGfLSB5D4DuSMaqN"
	AddrMeteoraDAMMv2 = "cpamdpZCGKUy5JxQXB4dcpGPiikHawvSWAd6mEn1sGG"
	AddrMoonshot      = "MoonCVVNZFSYkqNXP6bxHLPL6QQJiMagDL3qcqUQTrG"

	// moonshotWrapperName names the wrapper discriminator Moonshot prefixes
	// its self-CPI event payloads with, ahead of the event's own
	// discriminator.
	moonshotWrapperName = "cpi_event_wrapper"

	// InsInitializeVirtualPoolSPL/InsInitializeVirtualPoolToken2022 are the
	// bonding-curve program's two pool-creation instruction variants
	// (standard SPL mint vs Token-2022 extension mint), neither of which
	// is separately log-emitted, per spec.md §4.1.4.
	InsInitializeVirtualPoolSPL       = "initialize_virtual_pool_with_spl_token"
	InsInitializeVirtualPoolToken2022 = "initialize_virtual_pool_with_token2022"
	// InsMigrateToDAMMv2 is the bonding-curve program's migration
	// instruction, also not separately log-emitted.
	InsMigrateToDAMMv2 = "migrate_damm_v2"

	// InitialVirtualTokenReserves is the bonding-curve program's fixed
	// starting virtual token reserve, used as bondingCurveProgress's
	// 0%-progress reference point per spec.md §4.4's pipe table.
	InitialVirtualTokenReserves = 1_073_000_000_000_000
)

func bondingCurveFields() []Field {
	return []Field{
		{Name: "mint", Kind: KindPublicKey},
		{Name: "virtual_sol_reserves", Kind: KindU64},
		{Name: "virtual_token_reserves", Kind: KindU64},
		{Name: "real_sol_reserves", Kind: KindU64},
		{Name: "real_token_reserves", Kind: KindU64},
	}
}

// tradeEventFields uses snake_case field names, per spec.md §3.3's
// "field-name (snake-case preserved from program schema)" and scenario S1
// (data.sol_amount, data.is_buy) — the on-chain Anchor IDLs this runtime
// decodes emit these names verbatim.
func tradeEventFields() []Field {
	return []Field{
		{Name: "mint", Kind: KindPublicKey},
		{Name: "sol_amount", Kind: KindU64},
		{Name: "token_amount", Kind: KindU64},
		{Name: "is_buy", Kind: KindBool},
		{Name: "user", Kind: KindPublicKey},
		{Name: "timestamp", Kind: KindI64},
		{Name: "virtual_sol_reserves", Kind: KindU64},
		{Name: "virtual_token_reserves", Kind: KindU64},
	}
}

func transferEventFields() []Field {
	return []Field{
		{Name: "mint", Kind: KindPublicKey},
		{Name: "from", Kind: KindPublicKey},
		{Name: "to", Kind: KindPublicKey},
		{Name: "amount", Kind: KindU64},
	}
}

func migrationEventFields() []Field {
	return []Field{
		{Name: "mint", Kind: KindPublicKey},
		{Name: "pool", Kind: KindPublicKey},
		{Name: "lp_token_amount", Kind: KindU64},
		{Name: "sol_amount", Kind: KindU64},
	}
}

// Catalog builds the fixed set of program schemas the runtime ships.
// Schemas are data, constructed once at startup; there is no runtime
// schema-registration path (spec.md's Open Question 1, resolved in
// SPEC_FULL.md §5).
func Catalog() map[string]ProgramSchema {
	out := make(map[string]ProgramSchema, 6)

	out[ProgramPump] = NewProgramSchema(ProgramPump, nil,
		[]EventSchemaOrInstruction{
			AsEvent(EventSchema{Name: "TradeEvent", Discriminator: eventDisc("TradeEvent"), Fields: tradeEventFields()}),
			AsEvent(EventSchema{Name: "CreateEvent", Discriminator: eventDisc("CreateEvent"), Fields: append([]Field{
				{Name: "name", Kind: KindString},
				{Name: "symbol", Kind: KindString},
				{Name: "uri", Kind: KindString},
				{Name: "creator", Kind: KindPublicKey},
			}, bondingCurveFields()...)}),
			AsEvent(EventSchema{Name: "CompleteEvent", Discriminator: eventDisc("CompleteEvent"), Fields: migrationEventFields()}),
			AsInstruction(InstructionSchema{Name: "initialize", Discriminator: instructionDisc("initialize"), Fields: []Field{
				{Name: "name", Kind: KindString},
				{Name: "symbol", Kind: KindString},
				{Name: "uri", Kind: KindString},
			}}),
			AsInstruction(InstructionSchema{Name: "migrate", Discriminator: instructionDisc("migrate"), Fields: []Field{
				{Name: "mint", Kind: KindPublicKey},
			}}),
		})

	out[ProgramPumpAMM] = NewProgramSchema(ProgramPumpAMM, nil,
		[]EventSchemaOrInstruction{
			AsEvent(EventSchema{Name: "BuyEvent", Discriminator: eventDisc("BuyEvent"), Fields: tradeEventFields()}),
			AsEvent(EventSchema{Name: "SellEvent", Discriminator: eventDisc("SellEvent"), Fields: tradeEventFields()}),
		})

	out[ProgramRaydiumLaunch] = NewProgramSchema(ProgramRaydiumLaunch, nil,
		[]EventSchemaOrInstruction{
			AsEvent(EventSchema{Name: "SwapEvent", Discriminator: eventDisc("SwapEvent"), Fields: tradeEventFields()}),
			AsEvent(EventSchema{Name: "PoolCreateEvent", Discriminator: eventDisc("PoolCreateEvent"), Fields: bondingCurveFields()}),
		})

	out[ProgramMeteoraDBC] = NewProgramSchema(ProgramMeteoraDBC, nil,
		[]EventSchemaOrInstruction{
			AsEvent(EventSchema{Name: "SwapEvent", Discriminator: eventDisc("SwapEvent"), Fields: tradeEventFields()}),
			AsEvent(EventSchema{Name: "MigrateEvent", Discriminator: eventDisc("MigrateEvent"), Fields: migrationEventFields()}),
			// The following three instructions are not separately logged;
			// InstructionTypeDecoder synthesizes lifecycle events for them
			// when no event decoded from the same transaction, per
			// spec.md §4.1.4. Fields are parsed by hand (length-prefixed
			// name/symbol/uri with bounds), not through DecodeFields.
			AsInstruction(InstructionSchema{Name: InsInitializeVirtualPoolSPL, Discriminator: instructionDisc(InsInitializeVirtualPoolSPL)}),
			AsInstruction(InstructionSchema{Name: InsInitializeVirtualPoolToken2022, Discriminator: instructionDisc(InsInitializeVirtualPoolToken2022)}),
			AsInstruction(InstructionSchema{Name: InsMigrateToDAMMv2, Discriminator: instructionDisc(InsMigrateToDAMMv2)}),
		})

	out[ProgramMeteoraDAMMv2] = NewProgramSchema(ProgramMeteoraDAMMv2, nil,
		[]EventSchemaOrInstruction{
			AsEvent(EventSchema{Name: "SwapEvent", Discriminator: eventDisc("SwapEvent"), Fields: tradeEventFields()}),
			AsEvent(EventSchema{Name: "AddLiquidityEvent", Discriminator: eventDisc("AddLiquidityEvent"), Fields: transferEventFields()}),
		})

	out[ProgramMoonshot] = NewProgramSchema(ProgramMoonshot, eventDisc(moonshotWrapperName),
		[]EventSchemaOrInstruction{
			AsEvent(EventSchema{Name: "TradeEvent", Discriminator: eventDisc("TradeEvent"), Fields: tradeEventFields()}),
			AsEvent(EventSchema{Name: "MigrationEvent", Discriminator: eventDisc("MigrationEvent"), Fields: migrationEventFields()}),
		})

	return out
}
