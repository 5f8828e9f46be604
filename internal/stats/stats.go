package stats

import (
	"database/sql"
	"math"

	"mesoserve/internal/units"
)

// Kind is a requested stat over a field's history.
type Kind string

const (
	Min Kind = "min"
	Max Kind = "max"
)

// KindFromString resolves a stat kind from a request.
func KindFromString(s string) (Kind, bool) {
	switch Kind(s) {
	case Min, Max:
		return Kind(s), true
	}
	return "", false
}

// Tracker is the per-field running best-value-with-timestamp accumulator.
// It is seeded to the weakest possible value and mutated row by row.
type Tracker struct {
	kind  Kind
	value float64
	time  float64
	seen  bool
}

// NewTracker seeds a tracker: -Inf for max, +Inf for min.
func NewTracker(kind Kind) *Tracker {
	t := &Tracker{kind: kind}
	switch kind {
	case Max:
		t.value = math.Inf(-1)
	case Min:
		t.value = math.Inf(1)
	}
	return t
}

// Observe tests a non-null row value against the current best and records
// the value and its row time on improvement.
func (t *Tracker) Observe(value, timeValue float64) {
	better := false
	switch t.kind {
	case Max:
		better = value > t.value
	case Min:
		better = value < t.value
	}
	if better {
		t.value = value
		t.time = timeValue
		t.seen = true
	}
}

// FieldRequest describes the stats wanted for one field.
type FieldRequest struct {
	FieldID  string
	Unit     units.Unit
	Decimals *int
	Kinds    []Kind
}

// Aggregator consumes a row stream and maintains one independent tracker
// per requested field and stat kind. It never materializes the result set.
type Aggregator struct {
	fields   []FieldRequest
	trackers [][]*Tracker
}

// NewAggregator builds trackers for every field/stat pair.
func NewAggregator(fields []FieldRequest) *Aggregator {
	a := &Aggregator{fields: fields, trackers: make([][]*Tracker, len(fields))}
	for i, f := range fields {
		for _, k := range f.Kinds {
			a.trackers[i] = append(a.trackers[i], NewTracker(k))
		}
	}
	return a
}

// Observe feeds one row: the time column value plus the field values in
// request order. Null field values are excluded from consideration.
func (a *Aggregator) Observe(timeValue float64, values []sql.NullFloat64) {
	for i, v := range values {
		if i >= len(a.trackers) || !v.Valid {
			continue
		}
		for _, t := range a.trackers[i] {
			t.Observe(v.Float64, timeValue)
		}
	}
}

// Result converts each recorded best into the requested unit, rounds it,
// and converts the paired timestamp into the requested time unit. Fields
// that never saw a non-null value contribute no entry for that stat.
func (a *Aggregator) Result(columnUnits map[string]units.Unit, timeColumnUnit, requestTimeUnit units.Unit) (map[string]map[Kind][]float64, error) {
	out := make(map[string]map[Kind][]float64, len(a.fields))
	for i, f := range a.fields {
		entry := make(map[Kind][]float64)
		for _, t := range a.trackers[i] {
			if !t.seen {
				continue
			}
			value := t.value
			if f.Unit != "" {
				converted, err := units.Convert(value, columnUnits[f.FieldID], f.Unit)
				if err != nil {
					return nil, err
				}
				value = converted
			}
			if f.Decimals != nil {
				value = roundTo(value, *f.Decimals)
			}
			ts, err := units.Convert(t.time, timeColumnUnit, requestTimeUnit)
			if err != nil {
				return nil, err
			}
			entry[t.kind] = []float64{value, ts}
		}
		out[f.FieldID] = entry
	}
	return out, nil
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
