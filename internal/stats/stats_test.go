package stats

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesoserve/internal/units"
)

func nf(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

var null = sql.NullFloat64{}

func TestKindFromString(t *testing.T) {
	kind, ok := KindFromString("min")
	assert.True(t, ok)
	assert.Equal(t, Min, kind)

	kind, ok = KindFromString("max")
	assert.True(t, ok)
	assert.Equal(t, Max, kind)

	_, ok = KindFromString("median")
	assert.False(t, ok)
}

// Trackers carry the timestamp of the best value alongside the value
// itself, and ties keep the earlier observation.
func TestTracker(t *testing.T) {
	max := NewTracker(Max)
	max.Observe(10, 100)
	max.Observe(25, 200)
	max.Observe(25, 300)
	max.Observe(5, 400)
	assert.Equal(t, 25.0, max.value)
	assert.Equal(t, 200.0, max.time)

	min := NewTracker(Min)
	min.Observe(10, 100)
	min.Observe(-3, 200)
	min.Observe(7, 300)
	assert.Equal(t, -3.0, min.value)
	assert.Equal(t, 200.0, min.time)
}

// Negative values must beat the seed: a max tracker over an all-negative
// series still reports the largest of them.
func TestTrackerNegativeSeries(t *testing.T) {
	max := NewTracker(Max)
	max.Observe(-40, 100)
	max.Observe(-12, 200)
	max.Observe(-30, 300)
	assert.Equal(t, -12.0, max.value)
	assert.Equal(t, 200.0, max.time)
}

func TestAggregatorResult(t *testing.T) {
	one := 1
	fields := []FieldRequest{
		{FieldID: "outTemp", Unit: units.C, Decimals: &one, Kinds: []Kind{Min, Max}},
		{FieldID: "windSpeed", Kinds: []Kind{Max}},
	}
	agg := NewAggregator(fields)

	// time, outTemp (f), windSpeed
	agg.Observe(1000, []sql.NullFloat64{nf(32), nf(3)})
	agg.Observe(2000, []sql.NullFloat64{nf(212), nf(12)})
	agg.Observe(3000, []sql.NullFloat64{null, nf(7)})
	agg.Observe(4000, []sql.NullFloat64{nf(50), null})

	colUnits := map[string]units.Unit{"outTemp": units.F, "windSpeed": units.Mph}
	result, err := agg.Result(colUnits, units.S, units.Ms)
	require.NoError(t, err)

	outTemp := result["outTemp"]
	require.NotNil(t, outTemp)
	assert.Equal(t, []float64{0, 1000 * 1000}, outTemp[Min])
	assert.Equal(t, []float64{100, 2000 * 1000}, outTemp[Max])

	windSpeed := result["windSpeed"]
	require.NotNil(t, windSpeed)
	assert.Equal(t, []float64{12, 2000 * 1000}, windSpeed[Max])
}

// A field whose every row was null contributes no stat entries but still
// appears in the result.
func TestAggregatorAllNull(t *testing.T) {
	fields := []FieldRequest{{FieldID: "uv", Kinds: []Kind{Min, Max}}}
	agg := NewAggregator(fields)
	agg.Observe(1000, []sql.NullFloat64{null})
	agg.Observe(2000, []sql.NullFloat64{null})

	result, err := agg.Result(map[string]units.Unit{"uv": ""}, units.S, units.S)
	require.NoError(t, err)

	uv, ok := result["uv"]
	require.True(t, ok)
	assert.Empty(t, uv)
}

func TestAggregatorRounding(t *testing.T) {
	two := 2
	fields := []FieldRequest{{FieldID: "barometer", Unit: units.Mb, Decimals: &two, Kinds: []Kind{Max}}}
	agg := NewAggregator(fields)
	agg.Observe(500, []sql.NullFloat64{nf(29.92)})

	result, err := agg.Result(map[string]units.Unit{"barometer": units.InHg}, units.S, units.S)
	require.NoError(t, err)

	// 29.92 inHg * 33.86 = 1013.0912 -> 1013.09
	assert.Equal(t, []float64{1013.09, 500}, result["barometer"][Max])
}

func TestAggregatorConversionError(t *testing.T) {
	fields := []FieldRequest{{FieldID: "outTemp", Unit: units.Mph, Kinds: []Kind{Max}}}
	agg := NewAggregator(fields)
	agg.Observe(500, []sql.NullFloat64{nf(70)})

	_, err := agg.Result(map[string]units.Unit{"outTemp": units.F}, units.S, units.S)
	var convErr *units.ConversionError
	require.ErrorAs(t, err, &convErr)
}
