package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFor(t *testing.T, spec *Spec, dialectID string) *BuiltQuery {
	t.Helper()
	d, err := DialectFromID(dialectID)
	require.NoError(t, err)
	built, err := Build(spec, d)
	require.NoError(t, err)
	return built
}

func testSpec(t *testing.T, params map[string]string) *Spec {
	t.Helper()
	spec, err := parseWith(t, testDocument(t), params)
	require.NoError(t, err)
	return spec
}

func TestBuildUngrouped(t *testing.T) {
	spec := testSpec(t, map[string]string{
		"entity_id": "raw",
		"data":      "outTemp,windDir",
	})
	built := buildFor(t, spec, "sqlite")

	assert.Equal(t,
		`select "outTemp" as "outTemp", "windDir" as "windDir" from "raw" order by "dateTime" asc`,
		built.SQL)
	assert.Empty(t, built.Args)
}

func TestBuildBoundsAreParameters(t *testing.T) {
	spec := testSpec(t, map[string]string{
		"entity_id": "raw",
		"data":      "outTemp",
		"start":     "1000",
		"end":       "2000",
		"order":     "desc",
		"limit":     "50",
	})
	built := buildFor(t, spec, "sqlite")

	assert.Equal(t,
		`select "outTemp" as "outTemp" from "raw" where "dateTime" >= ? and "dateTime" <= ? order by "dateTime" desc limit 50`,
		built.SQL)
	assert.Equal(t, []any{int64(1000), int64(2000)}, built.Args)
}

func TestBuildSecondsGrouping(t *testing.T) {
	spec := testSpec(t, map[string]string{
		"entity_id": "raw",
		"data":      "outTemp",
		"group":     "300:seconds",
		"start":     "1000",
	})
	built := buildFor(t, spec, "sqlite")

	assert.Equal(t,
		`select cast("dateTime" / 300 as integer) * 300, avg("outTemp") as "outTemp_avg" from "raw" where "dateTime" >= ? group by cast("dateTime" / 300 as integer) order by "dateTime" asc`,
		built.SQL)
	assert.Equal(t, []any{int64(1000)}, built.Args)
}

// A zero seconds value or a groups value below two collapses the query to a
// single aggregate row: no label column, no group by.
func TestBuildSingleGroup(t *testing.T) {
	for _, group := range []string{":seconds", "1:groups"} {
		t.Run(group, func(t *testing.T) {
			spec := testSpec(t, map[string]string{
				"entity_id": "raw",
				"data":      "outTemp:max",
				"group":     group,
			})
			built := buildFor(t, spec, "sqlite")

			assert.Equal(t,
				`select max("outTemp") as "outTemp_max" from "raw" order by "dateTime" asc`,
				built.SQL)
		})
	}
}

func TestBuildGroupsSlicing(t *testing.T) {
	spec := testSpec(t, map[string]string{
		"entity_id": "raw",
		"data":      "outTemp",
		"group":     "4:groups",
		"start":     "1000",
		"end":       "2000",
	})
	built := buildFor(t, spec, "sqlite")

	slice := `((2000 - 1000) / cast(4 as real))`
	assert.Equal(t,
		`select cast("dateTime" / `+slice+` as integer) * `+slice+
			`, avg("outTemp") as "outTemp_avg" from "raw" where "dateTime" >= ? and "dateTime" <= ?`+
			` group by cast("dateTime" / `+slice+` as integer) order by "dateTime" asc`,
		built.SQL)
	assert.Equal(t, []any{int64(1000), int64(2000)}, built.Args)
}

// Equal bounds would make the groups slice width zero; the query collapses
// to a single aggregate row instead of dividing by zero.
func TestBuildGroupsDegenerateRange(t *testing.T) {
	spec := testSpec(t, map[string]string{
		"entity_id": "raw",
		"data":      "outTemp",
		"group":     "4:groups",
		"start":     "1000",
		"end":       "1000",
	})
	built := buildFor(t, spec, "sqlite")

	assert.Equal(t,
		`select avg("outTemp") as "outTemp_avg" from "raw" where "dateTime" >= ? and "dateTime" <= ? order by "dateTime" asc`,
		built.SQL)
	assert.Equal(t, []any{int64(1000), int64(1000)}, built.Args)
}

// Absent bounds fall back to scalar subqueries over the same table so the
// slice width still spans the full stored range.
func TestBuildGroupsSlicingUnbounded(t *testing.T) {
	spec := testSpec(t, map[string]string{
		"entity_id": "raw",
		"data":      "outTemp",
		"group":     "4:groups",
	})
	built := buildFor(t, spec, "sqlite")

	slice := `(((select max("dateTime") from "raw") - (select min("dateTime") from "raw")) / cast(4 as real))`
	assert.Contains(t, built.SQL, slice)
	assert.Empty(t, built.Args)
}

func TestBuildDaysGroupingMySQL(t *testing.T) {
	spec := testSpec(t, map[string]string{
		"entity_id": "raw",
		"data":      "outTemp",
		"group":     "1:days",
	})
	built := buildFor(t, spec, "mysql")

	year := "year(from_unixtime(`dateTime`))"
	day := "dayofyear(from_unixtime(`dateTime`))"
	assert.Equal(t,
		"select unix_timestamp(concat(makedate("+year+", "+day+"), ' 00:00:00')), avg(`outTemp`) as `outTemp_avg`"+
			" from `raw` group by "+year+", "+day+" order by `dateTime` asc",
		built.SQL)
}

// Multi-day buckets coarsen the day-of-year before recombining, and the
// label rewinds to the first day of the bucket.
func TestBuildCoarsenedDaysGrouping(t *testing.T) {
	spec := testSpec(t, map[string]string{
		"entity_id": "raw",
		"data":      "outTemp",
		"group":     "7:days",
	})
	built := buildFor(t, spec, "mysql")

	year := "year(from_unixtime(`dateTime`))"
	day := "floor((dayofyear(from_unixtime(`dateTime`)) + 6) / 7)"
	assert.Contains(t, built.SQL, "makedate("+year+", ("+day+" * 7 - 6))")
	assert.Contains(t, built.SQL, "group by "+year+", "+day)
}

func TestBuildMonthsAndYearsGrouping(t *testing.T) {
	spec := testSpec(t, map[string]string{
		"entity_id": "raw",
		"data":      "outTemp",
		"group":     ":months",
	})
	built := buildFor(t, spec, "postgres")

	year := `cast(extract(year from to_timestamp("dateTime")) as integer)`
	month := `cast(extract(month from to_timestamp("dateTime")) as integer)`
	assert.Contains(t, built.SQL,
		"cast(extract(epoch from make_date(cast("+year+" as integer), cast("+month+" as integer), 1)) as bigint)")
	assert.Contains(t, built.SQL, "group by "+year+", "+month)

	spec = testSpec(t, map[string]string{
		"entity_id": "raw",
		"data":      "outTemp",
		"group":     "10:years",
	})
	built = buildFor(t, spec, "postgres")

	decade := "floor((" + year + " + 9) / 10)"
	assert.Contains(t, built.SQL, "("+decade+" * 10 - 9)")
	assert.Contains(t, built.SQL, "group by "+decade)
}

// The group label is converted into the requested time unit after the
// bucket arithmetic, so the whole label expression is scaled.
func TestBuildGroupLabelUnit(t *testing.T) {
	spec := testSpec(t, map[string]string{
		"entity_id": "raw",
		"data":      "outTemp",
		"group":     "300:seconds:ms",
	})
	built := buildFor(t, spec, "sqlite")

	assert.Contains(t, built.SQL,
		`select cast("dateTime" / 300 as integer) * 300 * 1000, avg("outTemp")`)
}

func TestBuildFieldConversionAndRounding(t *testing.T) {
	spec := testSpec(t, map[string]string{
		"entity_id": "raw",
		"data":      "outTemp:max:c:1",
		"group":     "300:seconds",
	})
	built := buildFor(t, spec, "sqlite")

	assert.Contains(t, built.SQL,
		`round((5.0/9.0) * (max("outTemp")-32), 1) as "outTemp_max"`)
}

func TestBuildUngroupedConversion(t *testing.T) {
	spec := testSpec(t, map[string]string{
		"entity_id": "raw",
		"data":      "barometer::mb",
	})
	built := buildFor(t, spec, "sqlite")

	assert.Equal(t,
		`select "barometer" * 33.86 as "barometer" from "raw" order by "dateTime" asc`,
		built.SQL)
}

func TestDialectFromID(t *testing.T) {
	for _, id := range []string{"mysql", "sqlite", "postgres"} {
		d, err := DialectFromID(id)
		require.NoError(t, err)
		assert.Equal(t, id, d.Name())
	}
	_, err := DialectFromID("oracle")
	assert.Error(t, err)
}

func TestDialectColumnTypes(t *testing.T) {
	tests := []struct {
		dialect string
		want    string
	}{
		{"mysql", "double"},
		{"sqlite", "real"},
		{"postgres", "double precision"},
	}
	for _, tt := range tests {
		d, err := DialectFromID(tt.dialect)
		require.NoError(t, err)

		got, ok := d.ColumnType("")
		assert.True(t, ok)
		assert.Equal(t, tt.want, got)

		got, ok = d.ColumnType("number")
		assert.True(t, ok)
		assert.Equal(t, tt.want, got)

		_, ok = d.ColumnType("blob")
		assert.False(t, ok)
	}
}
