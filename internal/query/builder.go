package query

import (
	"fmt"
	"strconv"
	"strings"

	"mesoserve/internal/units"
)

// BuiltQuery is a compiled aggregate query: the SQL text plus the values to
// bind. Request-supplied bounds are bound parameters; numeric literals
// inside the bucket expressions are formatted from already-validated
// integers, because the engines cannot structurally match a repeated
// placeholder between SELECT and GROUP BY.
type BuiltQuery struct {
	SQL  string
	Args []any
}

// Build compiles a validated Spec into dialect-correct SQL. It is a pure
// function of its inputs: no side effects, deterministic, one call per
// query.
func Build(spec *Spec, d Dialect) (*BuiltQuery, error) {
	b := &builder{
		spec:        spec,
		d:           d,
		timeQuoted:  d.Quote(spec.TimeColumn()),
		tableQuoted: d.Quote(spec.Entity.TableName),
	}
	return b.build()
}

type builder struct {
	spec        *Spec
	d           Dialect
	timeQuoted  string
	tableQuoted string
	args        []any
}

func (b *builder) build() (*BuiltQuery, error) {
	selects, err := b.buildSelects()
	if err != nil {
		return nil, err
	}
	parts := []string{"select " + selects, "from " + b.tableQuoted}
	if where := b.buildWhere(); where != "" {
		parts = append(parts, where)
	}
	if groupBy := b.buildGroupBy(); groupBy != "" {
		parts = append(parts, groupBy)
	}
	parts = append(parts, fmt.Sprintf("order by %s %s", b.timeQuoted, b.spec.Order))
	if b.spec.Limit > 0 {
		parts = append(parts, "limit "+strconv.FormatInt(b.spec.Limit, 10))
	}
	return &BuiltQuery{SQL: strings.Join(parts, " "), Args: b.args}, nil
}

func (b *builder) buildSelects() (string, error) {
	var selects []string
	// emit the group label only when grouped into more than one bucket
	if b.grouped() && !b.singleGroup() {
		label, err := b.buildGroupLabel()
		if err != nil {
			return "", err
		}
		selects = append(selects, label)
	}
	for _, f := range b.spec.Fields {
		sel, err := b.buildFieldSelect(f)
		if err != nil {
			return "", err
		}
		selects = append(selects, sel)
	}
	return strings.Join(selects, ", "), nil
}

// buildGroupLabel reverses the bucket arithmetic to an absolute timestamp
// and converts it into the requested time unit.
func (b *builder) buildGroupLabel() (string, error) {
	g := b.spec.Group
	var label string
	switch g.Type {
	case GroupSeconds, GroupGroups:
		slice := b.secondsSlice()
		label = fmt.Sprintf("%s * %s", b.d.FloorDiv(b.timeQuoted, slice), slice)
	case GroupDays:
		day := b.dayOfYearBucket()
		if g.Value != 1 {
			day = fmt.Sprintf("(%s * %d - %d)", day, g.Value, g.Value-1)
		}
		label = b.d.EpochFromYearDay(b.yearBucket(), day)
	case GroupMonths:
		month := b.monthBucket()
		if g.Value != 1 {
			month = fmt.Sprintf("(%s * %d - %d)", month, g.Value, g.Value-1)
		}
		label = b.d.EpochFromYearMonth(b.yearBucket(), month)
	case GroupYears:
		year := b.yearBucket()
		if g.Value != 1 {
			year = fmt.Sprintf("(%s * %d - %d)", year, g.Value, g.Value-1)
		}
		label = b.d.EpochFromYear(year)
	}
	return units.SQLFormula(label, units.S, g.Unit)
}

func (b *builder) buildFieldSelect(f Field) (string, error) {
	sel := b.d.Quote(f.Name)
	alias := f.Name
	if b.grouped() {
		sel = fmt.Sprintf("%s(%s)", f.Agg, sel)
		alias += "_" + string(f.Agg)
	}
	if f.Unit != "" {
		converted, err := units.SQLFormula(sel, b.spec.Entity.Columns[f.Name].Unit, f.Unit)
		if err != nil {
			return "", err
		}
		sel = converted
	}
	if f.Decimals != nil {
		sel = fmt.Sprintf("round(%s, %d)", sel, *f.Decimals)
	}
	return sel + " as " + b.d.Quote(alias), nil
}

func (b *builder) buildWhere() string {
	var conds []string
	if b.spec.Start != nil {
		conds = append(conds, b.timeQuoted+" >= ?")
		b.args = append(b.args, *b.spec.Start)
	}
	if b.spec.End != nil {
		conds = append(conds, b.timeQuoted+" <= ?")
		b.args = append(b.args, *b.spec.End)
	}
	if len(conds) == 0 {
		return ""
	}
	return "where " + strings.Join(conds, " and ")
}

func (b *builder) buildGroupBy() string {
	if !b.grouped() || b.singleGroup() {
		return ""
	}
	var exprs []string
	switch b.spec.Group.Type {
	case GroupSeconds, GroupGroups:
		exprs = []string{b.d.FloorDiv(b.timeQuoted, b.secondsSlice())}
	case GroupDays:
		exprs = []string{b.yearBucket(), b.dayOfYearBucket()}
	case GroupMonths:
		exprs = []string{b.yearBucket(), b.monthBucket()}
	case GroupYears:
		exprs = []string{b.yearBucket()}
	}
	return "group by " + strings.Join(exprs, ", ")
}

// secondsSlice is the bucket width in the time column's unit. For the
// groups type it is computed from the query's own bounds, falling back to
// scalar MIN/MAX subqueries when a bound is absent.
func (b *builder) secondsSlice() string {
	g := b.spec.Group
	if g.Type != GroupGroups {
		return strconv.FormatInt(g.Value, 10)
	}
	start := b.subSelect("min(" + b.timeQuoted + ")")
	if b.spec.Start != nil {
		start = strconv.FormatInt(*b.spec.Start, 10)
	}
	end := b.subSelect("max(" + b.timeQuoted + ")")
	if b.spec.End != nil {
		end = strconv.FormatInt(*b.spec.End, 10)
	}
	return fmt.Sprintf("((%s - %s) / %s)", end, start, b.d.CastReal(strconv.FormatInt(g.Value, 10)))
}

// yearBucket coarsens the calendar year only for years-type grouping;
// ceil(year/value) is emitted as floor((year+value-1)/value), identical for
// the integers involved.
func (b *builder) yearBucket() string {
	g := b.spec.Group
	expr := b.d.Year(b.timeQuoted)
	if g.Type == GroupYears && g.Value != 1 {
		expr = b.coarsen(expr, g.Value)
	}
	return expr
}

func (b *builder) monthBucket() string {
	g := b.spec.Group
	expr := b.d.Month(b.timeQuoted)
	if g.Type == GroupMonths && g.Value != 1 {
		expr = b.coarsen(expr, g.Value)
	}
	return expr
}

func (b *builder) dayOfYearBucket() string {
	g := b.spec.Group
	expr := b.d.DayOfYear(b.timeQuoted)
	if g.Type == GroupDays && g.Value != 1 {
		expr = b.coarsen(expr, g.Value)
	}
	return expr
}

func (b *builder) coarsen(expr string, value int64) string {
	return b.d.FloorDiv(fmt.Sprintf("(%s + %d)", expr, value-1), strconv.FormatInt(value, 10))
}

func (b *builder) subSelect(expr string) string {
	return fmt.Sprintf("(select %s from %s)", expr, b.tableQuoted)
}

func (b *builder) grouped() bool {
	return b.spec.Grouped()
}

// singleGroup extends Group.Single with the degenerate groups range: equal
// bounds make the slice width zero, so the emitted division would be by
// zero. One instant holds at most one bucket anyway.
func (b *builder) singleGroup() bool {
	g := b.spec.Group
	if g.Single() {
		return true
	}
	if g.Type == GroupGroups && b.spec.Start != nil && b.spec.End != nil && *b.spec.Start == *b.spec.End {
		return true
	}
	return false
}
