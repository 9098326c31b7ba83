package chain

// Category distinguishes programs that operate before a token has migrated
// off its bonding curve from those that operate on a migrated pool.
type Category string

const (
	CategoryPreMigration  Category = "pre-migration"
	CategoryPostMigration Category = "post-migration"
)

// EmissionStyle records how a program surfaces structured events: as
// base64 log lines, or as a self-invoked CPI carrying the payload.
type EmissionStyle string

const (
	EmissionLog EmissionStyle = "log"
	EmissionCPI EmissionStyle = "cpi"
)

// Program is a single on-chain program the decoder registry knows how to
// decode events for.
type Program struct {
	ID       string
	Address  string
	Name     string
	Category Category
	Emission EmissionStyle
}

// WrappedSOLMint is the canonical mint address representing native SOL
// when it appears in token-balance rows.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

// Catalog indexes the set of programs the runtime decodes, by both the
// stable program id and the on-chain address, so decoders can be looked up
// from either direction without a linear scan.
type Catalog struct {
	byID      map[string]Program
	byAddress map[string]Program
}

// NewCatalog builds a Catalog from a program list. Duplicate addresses are
// a configuration error the caller should have already resolved upstream;
// the later entry wins so catalog construction never panics.
func NewCatalog(programs []Program) *Catalog {
	c := &Catalog{
		byID:      make(map[string]Program, len(programs)),
		byAddress: make(map[string]Program, len(programs)),
	}
	for _, p := range programs {
		c.byID[p.ID] = p
		c.byAddress[p.Address] = p
	}
	return c
}

func (c *Catalog) ByID(id string) (Program, bool) {
	p, ok := c.byID[id]
	return p, ok
}

func (c *Catalog) ByAddress(addr string) (Program, bool) {
	p, ok := c.byAddress[addr]
	return p, ok
}

func (c *Catalog) All() []Program {
	out := make([]Program, 0, len(c.byID))
	for _, p := range c.byID {
		out = append(out, p)
	}
	return out
}

// AggregatorCatalog maps known router/aggregator program addresses to a
// short source tag used for outer-program attribution (spec.md §3.2).
type AggregatorCatalog struct {
	byAddress map[string]string
}

func NewAggregatorCatalog(entries map[string]string) *AggregatorCatalog {
	byAddr := make(map[string]string, len(entries))
	for addr, tag := range entries {
		byAddr[addr] = tag
	}
	return &AggregatorCatalog{byAddress: byAddr}
}

// Match scans an address set (typically a transaction's full account-key
// set, in account-key list order) against the aggregator catalog and
// returns the first known aggregator address found plus its tag, per
// spec.md §4.1's "first match wins; deterministic order = account-key
// list order" rule. orderedAddresses must be the envelope's account-key
// list in its original order, not an unordered set.
func (a *AggregatorCatalog) Match(orderedAddresses []string) (addr, tag string, ok bool) {
	for _, candidate := range orderedAddresses {
		if t, found := a.byAddress[candidate]; found {
			return candidate, t, true
		}
	}
	return "", "", false
}

// DefaultAggregators is the built-in set of known router/aggregator
// program addresses recognized for source attribution.
func DefaultAggregators() *AggregatorCatalog {
	return NewAggregatorCatalog(map[string]string{
		"JUP6LkbZbjS1jKKwapdHNy74zcVw3ZmpQ1cmr1Ah6R": "jupiter",
		"MoonCVVNZFSYkqNXP6bxHLPL6QQJiMagDL3qcqUQTrG": "moonshot_router",
		"BANANAjWhPuNf5pyxJ1PxfHefM3rXJtCqyxjfwYoFnz": "banana_gun",
		"MiNTxYyQNFSBpBqwPbF6z6HhnWDLSqYiwwTEJ1e3XNc": "mintech",
		"BLoMJK8cq8XsBR5EYvzcivQpTGq1u1p7pHnwzy1h1XSz": "bloom",
		"NoVAGunBvWDAMrAxyQXqt3vH5yphvZPQvr3GnM5VYSK": "nova",
		"MAESTRoKkGTiEGcNGE9jbAvhHpFnkTYcg7W8BVvSxWE": "maestro",
		"0KXdexRzYxw3Kh8qAF3MNnpMUTHMGmRqJbCkVPVzZPb": "okx_dex_router",
	})
}
