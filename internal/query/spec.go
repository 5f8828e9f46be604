package query

import (
	"fmt"

	"mesoserve/internal/config"
	"mesoserve/internal/units"
)

// Agg is a per-bucket aggregation function.
type Agg string

const (
	AggAvg Agg = "avg"
	AggMin Agg = "min"
	AggMax Agg = "max"
	AggSum Agg = "sum"
)

func aggFromString(s string) (Agg, bool) {
	switch Agg(s) {
	case AggAvg, AggMin, AggMax, AggSum:
		return Agg(s), true
	}
	return "", false
}

// Order is the result ordering along the time axis.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// GroupType selects how rows are collapsed into time buckets.
type GroupType int

const (
	// GroupSeconds buckets by a fixed number of seconds. A zero value
	// collapses the whole range into a single group.
	GroupSeconds GroupType = iota
	// GroupGroups slices the filtered range into approximately N
	// equal-width buckets.
	GroupGroups
	// GroupDays, GroupMonths and GroupYears bucket by calendar
	// extraction of the time column.
	GroupDays
	GroupMonths
	GroupYears
)

func (t GroupType) String() string {
	switch t {
	case GroupSeconds:
		return "seconds"
	case GroupGroups:
		return "groups"
	case GroupDays:
		return "days"
	case GroupMonths:
		return "months"
	case GroupYears:
		return "years"
	}
	return fmt.Sprintf("GroupType(%d)", int(t))
}

func groupTypeFromString(s string) (GroupType, bool) {
	switch s {
	case "seconds":
		return GroupSeconds, true
	case "groups":
		return GroupGroups, true
	case "days":
		return GroupDays, true
	case "months":
		return GroupMonths, true
	case "years":
		return GroupYears, true
	}
	return 0, false
}

// Group describes the requested time bucketing. Unit is the time unit the
// emitted group label should be converted to; empty means seconds as stored.
type Group struct {
	Value int64
	Type  GroupType
	Unit  units.Unit
}

// Single reports whether the grouping collapses the query to exactly one
// aggregate row with no time bucketing.
func (g Group) Single() bool {
	switch g.Type {
	case GroupSeconds:
		return g.Value == 0
	case GroupGroups:
		return g.Value < 2
	}
	return false
}

// Field is one requested output column: a configured entity column with an
// aggregation, an optional target unit and optional rounding.
type Field struct {
	Name string
	Agg  Agg
	Unit units.Unit
	// Decimals is the requested rounding; nil means no rounding.
	Decimals *int
}

// Spec is a fully parsed and validated aggregate query. Built once per
// request, then immutable.
type Spec struct {
	EntityID string
	Entity   *config.Entity

	// Start and End are inclusive bounds in the time column's epoch
	// seconds; nil means unbounded.
	Start *int64
	End   *int64

	Group  *Group
	Fields []Field
	Order  Order
	Limit  int64 // 0 means no limit
}

// Grouped reports whether any grouping was requested.
func (s *Spec) Grouped() bool {
	return s.Group != nil
}

// TimeColumn returns the entity's time axis, which is its primary key.
func (s *Spec) TimeColumn() string {
	return s.Entity.PrimaryKey
}

// validate checks the parsed query against the entity configuration:
// every field must name a configured column, and every requested target
// unit must have a registered one-hop formula from the column's unit.
func (s *Spec) validate() error {
	if len(s.Fields) == 0 {
		return validationErrorf("data", "must specify at least one data field")
	}
	for i, f := range s.Fields {
		col, ok := s.Entity.Columns[f.Name]
		if !ok {
			return validationErrorf("data", "undefined field %q at index %d", f.Name, i)
		}
		if f.Unit == "" || f.Unit == col.Unit {
			continue
		}
		if col.Unit == "" {
			return validationErrorf("data", "cannot convert field %q to unit %q: field has no defined unit", f.Name, f.Unit)
		}
		if !units.Convertible(col.Unit, f.Unit) {
			return validationErrorf("data", "no converter from unit %q to %q for field %q", col.Unit, f.Unit, f.Name)
		}
	}
	return nil
}
