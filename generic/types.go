/*
Package generic provides the shared kernel of the home-care engine.

PURPOSE:
  This package contains domain-agnostic types used by every stage of the
  decision pipeline. Scores, classifications, templates and rates all
  speak in the same money, date and flag vocabulary defined here.

KEY CONCEPTS IN THIS FILE (types.go):
  - Cents: Integer money amount (1/100 of the currency unit)
  - Flags: Named boolean set attached to a classification
  - Decimal helpers: Exact arithmetic for rates, hours and percentages

DESIGN PRINCIPLES:
  1. Precision: Money is stored as integer cents, computed with decimal.Decimal
  2. Rounding: Every cent value is rounded half away from zero exactly once
  3. Type Safety: Cents never mix with raw ints in signatures

USAGE:
  rate := generic.Cents(3500)
  weekly := generic.CentsFromDecimal(rate.Decimal().Mul(decimal.NewFromInt(7)))

SEE ALSO:
  - time.go: Date and validity windows
  - errors.go: Sentinel errors
  - cache.go: TTL cache injected into stores
*/
package generic

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CENTS - Money as an integer number of cents
// =============================================================================

type Cents int64

// CentsFromDecimal rounds d to the nearest cent (half away from zero).
func CentsFromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Round(0).IntPart())
}

func (c Cents) Decimal() decimal.Decimal { return decimal.NewFromInt(int64(c)) }
func (c Cents) IsZero() bool             { return c == 0 }

// String formats cents as a currency amount, e.g. "1234.50".
func (c Cents) String() string {
	return c.Decimal().Div(decimal.NewFromInt(100)).StringFixed(2)
}

// =============================================================================
// UNIT TYPE - How a service rate is billed
// =============================================================================

// UnitType is the billing unit of a service rate.
type UnitType string

const (
	UnitHour    UnitType = "hour"
	UnitVisit   UnitType = "visit"
	UnitTrip    UnitType = "trip"
	UnitCall    UnitType = "call"
	UnitService UnitType = "service"
	UnitNight   UnitType = "night"
	UnitBlock   UnitType = "block"
	UnitMonth   UnitType = "month"
)

// PerOccurrence reports whether the rate is charged once per delivery.
func (u UnitType) PerOccurrence() bool {
	switch u {
	case UnitVisit, UnitTrip, UnitCall, UnitService, UnitNight, UnitBlock:
		return true
	}
	return false
}

// IsKnown reports whether u is one of the defined units.
func (u UnitType) IsKnown() bool {
	return u == UnitHour || u == UnitMonth || u.PerOccurrence()
}

// =============================================================================
// FLAGS - Named boolean set
// =============================================================================

// Flags is a set of named booleans. A missing key reads as false.
type Flags map[string]bool

// NewFlags builds a set with every name set to true.
func NewFlags(names ...string) Flags {
	f := make(Flags, len(names))
	for _, n := range names {
		f[n] = true
	}
	return f
}

func (f Flags) Has(name string) bool { return f[name] }

// Set records a flag value. Setting false still records the key so the
// full evaluated set is visible to downstream readers.
func (f Flags) Set(name string, value bool) { f[name] = value }

// Any reports whether at least one of names is true.
func (f Flags) Any(names ...string) bool {
	for _, n := range names {
		if f[n] {
			return true
		}
	}
	return false
}

// All reports whether every name is true. An empty list is satisfied.
func (f Flags) All(names ...string) bool {
	for _, n := range names {
		if !f[n] {
			return false
		}
	}
	return true
}

// Active returns the sorted names of true flags.
func (f Flags) Active() []string {
	var names []string
	for n, v := range f {
		if v {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

func (f Flags) Clone() Flags {
	out := make(Flags, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// =============================================================================
// RANGE - Inclusive integer interval
// =============================================================================

// IntRange is an inclusive [Min, Max] interval.
type IntRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

func (r IntRange) Contains(v int) bool { return v >= r.Min && v <= r.Max }

func (r IntRange) Validate() error {
	if r.Max < r.Min {
		return fmt.Errorf("range [%d,%d]: max below min", r.Min, r.Max)
	}
	return nil
}

func (r IntRange) String() string { return fmt.Sprintf("[%d,%d]", r.Min, r.Max) }

// =============================================================================
// SMALL HELPERS
// =============================================================================

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
