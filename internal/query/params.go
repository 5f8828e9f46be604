package query

import (
	"strconv"
	"strings"
	"time"

	"mesoserve/internal/config"
	"mesoserve/internal/units"
)

// Request parameter names for the read/aggregate endpoint.
const (
	EntityIDParam = "entity_id"
	StartParam    = "start"
	EndParam      = "end"
	GroupParam    = "group"
	DataParam     = "data"
	OrderParam    = "order"
	LimitParam    = "limit"
)

const (
	timeTypeDatetime = "datetime"
	timeTypeAgo      = "ago"
)

// Parser turns raw request parameters into a validated Spec. All parts are
// whitespace-trimmed; empty-after-trim means absent.
type Parser struct {
	params map[string]string
	doc    *config.Document
	now    func() time.Time
}

// NewParser builds a Parser over string request parameters and the shared
// entity-config document.
func NewParser(params map[string]string, doc *config.Document) *Parser {
	return &Parser{params: params, doc: doc, now: time.Now}
}

// Parse assembles and validates the query spec. Malformed syntax yields a
// ParseError, invariant violations a ValidationError.
func (p *Parser) Parse() (*Spec, error) {
	entityID := p.param(EntityIDParam)
	if entityID == "" {
		return nil, validationErrorf(EntityIDParam, "must specify an entity_id")
	}
	entity, ok := p.doc.Entity(entityID)
	if !ok {
		return nil, validationErrorf(EntityIDParam, "entity %q has no configuration", entityID)
	}

	spec := &Spec{EntityID: entityID, Entity: entity}

	var err error
	if spec.Start, err = p.parseTime(StartParam); err != nil {
		return nil, err
	}
	if spec.End, err = p.parseTime(EndParam); err != nil {
		return nil, err
	}
	if spec.Group, err = p.parseGroup(); err != nil {
		return nil, err
	}
	if spec.Fields, err = p.parseFields(); err != nil {
		return nil, err
	}
	if spec.Order, err = p.parseOrder(); err != nil {
		return nil, err
	}
	if spec.Limit, err = p.parseLimit(); err != nil {
		return nil, err
	}

	if err := spec.validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// parseTime handles "value:type" where type is datetime (absolute epoch
// seconds, the default) or ago (seconds before now).
func (p *Parser) parseTime(param string) (*int64, error) {
	raw := p.param(param)
	if raw == "" {
		return nil, nil
	}
	parts := strings.SplitN(raw, ":", 2)
	value := trimmed(parts[0])
	kind := timeTypeDatetime
	if len(parts) > 1 {
		if k := trimmed(parts[1]); k != "" {
			kind = k
		}
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, parseErrorf(param, "invalid time value %q", value)
	}
	switch kind {
	case timeTypeDatetime:
		return &n, nil
	case timeTypeAgo:
		t := p.now().Unix() - n
		return &t, nil
	}
	return nil, parseErrorf(param, "invalid time type %q", kind)
}

// parseGroup handles "value:type[:unit]". Type defaults to seconds; the
// value defaults to nothing for seconds (single group) and to 1 for every
// other type.
func (p *Parser) parseGroup() (*Group, error) {
	raw := p.param(GroupParam)
	if raw == "" {
		return nil, nil
	}
	parts := strings.SplitN(raw, ":", 3)
	value := trimmed(parts[0])
	kind := "seconds"
	if len(parts) > 1 {
		if k := trimmed(parts[1]); k != "" {
			kind = k
		}
	}
	unit := units.Unit("")
	if len(parts) > 2 {
		unit = units.Unit(trimmed(parts[2]))
	}

	groupType, ok := groupTypeFromString(kind)
	if !ok {
		return nil, parseErrorf(GroupParam, "invalid group type %q", kind)
	}
	if unit != "" && unit != units.S && unit != units.Ms {
		return nil, parseErrorf(GroupParam, "invalid grouping unit %q", unit)
	}

	g := &Group{Type: groupType, Unit: unit}
	if value == "" {
		if groupType != GroupSeconds {
			g.Value = 1
		}
		return g, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, parseErrorf(GroupParam, "invalid group value %q for type %q", value, kind)
	}
	if n < 1 {
		// an explicit zero collapses seconds and groups to a single
		// group, same as an absent value; calendar types need a width
		if n == 0 && (groupType == GroupSeconds || groupType == GroupGroups) {
			return g, nil
		}
		return nil, validationErrorf(GroupParam, "group value must be greater than zero: %d for type %q", n, kind)
	}
	g.Value = n
	return g, nil
}

// parseFields handles the comma-separated "field:agg:unit:decimals" list.
// Blank entries are skipped; agg defaults to avg.
func (p *Parser) parseFields() ([]Field, error) {
	raw := p.param(DataParam)
	if raw == "" {
		return nil, nil
	}
	var fields []Field
	for _, entry := range strings.Split(raw, ",") {
		if trimmed(entry) == "" {
			continue
		}
		f, err := parseField(entry)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func parseField(entry string) (Field, error) {
	parts := strings.SplitN(entry, ":", 4)
	f := Field{Name: trimmed(parts[0]), Agg: AggAvg}
	if f.Name == "" {
		return Field{}, validationErrorf(DataParam, "must specify a field ID")
	}
	if len(parts) > 1 {
		if a := trimmed(parts[1]); a != "" {
			agg, ok := aggFromString(a)
			if !ok {
				return Field{}, validationErrorf(DataParam, "invalid aggregation %q for field %q", a, f.Name)
			}
			f.Agg = agg
		}
	}
	if len(parts) > 2 {
		f.Unit = units.Unit(trimmed(parts[2]))
	}
	if len(parts) > 3 {
		if d := trimmed(parts[3]); d != "" {
			n, err := strconv.Atoi(d)
			if err != nil || n < 0 {
				return Field{}, validationErrorf(DataParam, "invalid decimals value %q for field %q", d, f.Name)
			}
			f.Decimals = &n
		}
	}
	return f, nil
}

func (p *Parser) parseOrder() (Order, error) {
	raw := p.param(OrderParam)
	if raw == "" {
		return OrderAsc, nil
	}
	switch Order(raw) {
	case OrderAsc, OrderDesc:
		return Order(raw), nil
	}
	return "", validationErrorf(OrderParam, "invalid order value %q", raw)
}

func (p *Parser) parseLimit() (int64, error) {
	raw := p.param(LimitParam)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, validationErrorf(LimitParam, "invalid limit %q", raw)
	}
	if n < 1 {
		return 0, validationErrorf(LimitParam, "limit must be greater than zero: %d", n)
	}
	return n, nil
}

func (p *Parser) param(name string) string {
	return trimmed(p.params[name])
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
