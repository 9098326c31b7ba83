package pipeline

import "fmt"

// Operator is a dotted-path condition's comparison operator, per
// spec.md §4.3's operator table.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpIn       Operator = "in"
	OpNin      Operator = "nin"
	OpContains Operator = "contains"
)

var validOperators = map[Operator]bool{
	OpEq: true, OpNeq: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpIn: true, OpNin: true, OpContains: true,
}

// Condition is a single dotted-path comparison, e.g. {Path: "solAmount",
// Op: OpGte, Value: 1.5}.
type Condition struct {
	Path  string
	Op    Operator
	Value any
}

func (c Condition) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("condition: path is required")
	}
	if !validOperators[c.Op] {
		return fmt.Errorf("condition %s: unknown operator %q", c.Path, c.Op)
	}
	return nil
}

// AccountConstraint restricts matching to events whose account-like
// fields (signer plus any role-named field on the event itself) include
// (at least one of) or exclude (all of) the given account addresses,
// per spec.md §4.3.9.
type AccountConstraint struct {
	Include []string
	Exclude []string
}

// IsEmpty reports whether neither Include nor Exclude is set, i.e. this
// constraint narrows nothing.
func (c AccountConstraint) IsEmpty() bool { return len(c.Include) == 0 && len(c.Exclude) == 0 }

// Range is an inclusive numeric bound used by the solAmount/tokenAmount
// convenience fields. A nil Min or Max leaves that side unbounded.
type Range struct {
	Min *float64
	Max *float64
}

func (r *Range) Validate() error {
	if r == nil {
		return nil
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return fmt.Errorf("filter: range min exceeds max")
	}
	return nil
}

// Filter is one node of spec.md §3.4/§4.3's recursive filter tree. Unlike
// a tagged sum type, every level's fields live on the same struct: the
// convenience fields, account constraints, and dotted-path conditions are
// AND-composed together at a single node (spec.md §4.3 steps 4-10), while
// And/Or recurse into child nodes and, per the evaluation order, exclude
// every other field on the same node when present. This mirrors the
// admin-facing JSON shape a control plane would actually persist: one
// object with optional keys, not a discriminated union.
type Filter struct {
	And []*Filter
	Or  []*Filter

	// Convenience fields (spec.md §4.3.4-8), AND-composed with each other
	// and with Accounts/Conditions when And/Or are both empty.
	Instructions []string
	Mints        []string
	Wallets      []string
	IsBuy        *bool
	SolAmount    *Range
	TokenAmount  *Range

	Accounts   AccountConstraint
	Conditions []Condition
}

func And(children ...*Filter) *Filter { return &Filter{And: children} }
func Or(children ...*Filter) *Filter  { return &Filter{Or: children} }

// Validate checks structural well-formedness. A nil filter (matches
// everything) and an all-empty filter are both valid.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	for _, c := range f.And {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, c := range f.Or {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	if err := f.SolAmount.Validate(); err != nil {
		return err
	}
	if err := f.TokenAmount.Validate(); err != nil {
		return err
	}
	for _, c := range f.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}
