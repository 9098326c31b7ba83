package decoder

import (
	"github.com/rs/zerolog"

	"github.com/wnt/tada/internal/chain"
	"github.com/wnt/tada/internal/schema"
)

// DefaultPrograms builds the chain.Catalog entry for every program the
// runtime ships a schema for, per spec.md §3.1. Two programs are
// log-emitted, four are CPI-emitted, and one of the CPI-emitted programs
// (Meteora's dynamic bonding curve) additionally carries lifecycle
// instructions that are never separately logged, per spec.md §4.1.4.
func DefaultPrograms() []chain.Program {
	return []chain.Program{
		{ID: schema.ProgramPump, Address: schema.AddrPump, Name: "Pump", Category: chain.CategoryPreMigration, Emission: chain.EmissionLog},
		{ID: schema.ProgramPumpAMM, Address: schema.AddrPumpAMM, Name: "Pump AMM", Category: chain.CategoryPostMigration, Emission: chain.EmissionLog},
		{ID: schema.ProgramRaydiumLaunch, Address: schema.AddrRaydiumLaunch, Name: "Raydium Launchpad", Category: chain.CategoryPreMigration, Emission: chain.EmissionCPI},
		{ID: schema.ProgramMeteoraDBC, Address: schema.AddrMeteoraDBC, Name: "Meteora Dynamic Bonding Curve", Category: chain.CategoryPreMigration, Emission: chain.EmissionCPI},
		{ID: schema.ProgramMeteoraDAMMv2, Address: schema.AddrMeteoraDAMMv2, Name: "Meteora DAMM v2", Category: chain.CategoryPostMigration, Emission: chain.EmissionCPI},
		{ID: schema.ProgramMoonshot, Address: schema.AddrMoonshot, Name: "Moonshot", Category: chain.CategoryPreMigration, Emission: chain.EmissionCPI},
	}
}

// Default builds a Registry with every shipped decoder registered against
// its program, per spec.md §4.1's decoder-per-program registration model.
func Default(log zerolog.Logger) *Registry {
	catalog := chain.NewCatalog(DefaultPrograms())
	schemas := schema.Catalog()
	aggregators := chain.DefaultAggregators()
	r := NewRegistry(catalog, schemas, aggregators, log)

	logDecoder := NewLogEventDecoder()
	cpiDecoder := NewCPIEventDecoder()
	instructionDecoder := NewInstructionTypeDecoder()

	r.Register(schema.ProgramPump, logDecoder)
	r.Register(schema.ProgramPumpAMM, logDecoder)
	r.Register(schema.ProgramRaydiumLaunch, cpiDecoder)
	r.Register(schema.ProgramMeteoraDBC, cpiDecoder)
	r.Register(schema.ProgramMeteoraDBC, instructionDecoder)
	r.Register(schema.ProgramMeteoraDAMMv2, cpiDecoder)
	r.Register(schema.ProgramMoonshot, cpiDecoder)

	return r
}
