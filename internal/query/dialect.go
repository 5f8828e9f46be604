package query

import "fmt"

// Dialect isolates all SQL divergence between supported database engines:
// identifier quoting, floor division, real-valued casts, calendar extraction
// from an epoch-seconds expression, and the reverse recombination of
// calendar parts back into epoch seconds. Everything else the builder emits
// is common SQL.
type Dialect interface {
	Name() string
	Quote(identifier string) string

	// FloorDiv emits integer floor division of two non-negative SQL
	// expressions. All bucketing arithmetic funnels through this:
	// a point landing exactly on a bucket edge belongs to the bucket
	// whose lower bound equals its time.
	FloorDiv(numer, denom string) string

	// CastReal forces real-valued division for the groups-type slice
	// width, which is generally non-integral.
	CastReal(expr string) string

	Year(timeExpr string) string
	Month(timeExpr string) string
	DayOfYear(timeExpr string) string

	EpochFromYearDay(yearExpr, dayExpr string) string
	EpochFromYearMonth(yearExpr, monthExpr string) string
	EpochFromYear(yearExpr string) string

	// ColumnType maps a configured storage type to the dialect's column
	// type for CREATE TABLE. The empty type defaults to "number".
	ColumnType(configured string) (string, bool)
}

// DialectFromID resolves a dialect identifier from the entity-config
// document. The set is closed; adding an engine means adding a type here.
func DialectFromID(id string) (Dialect, error) {
	switch id {
	case "mysql":
		return mysqlDialect{}, nil
	case "sqlite":
		return sqliteDialect{}, nil
	case "postgres":
		return postgresDialect{}, nil
	}
	return nil, fmt.Errorf("unsupported dialect: %q", id)
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) Quote(identifier string) string { return "`" + identifier + "`" }

func (mysqlDialect) FloorDiv(numer, denom string) string {
	return fmt.Sprintf("floor(%s / %s)", numer, denom)
}

func (mysqlDialect) CastReal(expr string) string {
	return fmt.Sprintf("cast(%s as decimal(20,8))", expr)
}

func (mysqlDialect) Year(timeExpr string) string {
	return fmt.Sprintf("year(from_unixtime(%s))", timeExpr)
}

func (mysqlDialect) Month(timeExpr string) string {
	return fmt.Sprintf("month(from_unixtime(%s))", timeExpr)
}

func (mysqlDialect) DayOfYear(timeExpr string) string {
	return fmt.Sprintf("dayofyear(from_unixtime(%s))", timeExpr)
}

func (mysqlDialect) EpochFromYearDay(yearExpr, dayExpr string) string {
	return fmt.Sprintf("unix_timestamp(concat(makedate(%s, %s), ' 00:00:00'))", yearExpr, dayExpr)
}

func (mysqlDialect) EpochFromYearMonth(yearExpr, monthExpr string) string {
	return fmt.Sprintf("unix_timestamp(concat(%s, '-', %s, '-01 00:00:00'))", yearExpr, monthExpr)
}

func (mysqlDialect) EpochFromYear(yearExpr string) string {
	return fmt.Sprintf("unix_timestamp(concat(%s, '-01-01 00:00:00'))", yearExpr)
}

func (mysqlDialect) ColumnType(configured string) (string, bool) {
	return numberColumnType(configured, "double")
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Quote(identifier string) string { return `"` + identifier + `"` }

// Truncating cast; identical to floor for the non-negative epoch values the
// builder divides.
func (sqliteDialect) FloorDiv(numer, denom string) string {
	return fmt.Sprintf("cast(%s / %s as integer)", numer, denom)
}

func (sqliteDialect) CastReal(expr string) string {
	return fmt.Sprintf("cast(%s as real)", expr)
}

func (sqliteDialect) Year(timeExpr string) string {
	return fmt.Sprintf("cast(strftime('%%Y', %s, 'unixepoch') as integer)", timeExpr)
}

func (sqliteDialect) Month(timeExpr string) string {
	return fmt.Sprintf("cast(strftime('%%m', %s, 'unixepoch') as integer)", timeExpr)
}

func (sqliteDialect) DayOfYear(timeExpr string) string {
	return fmt.Sprintf("cast(strftime('%%j', %s, 'unixepoch') as integer)", timeExpr)
}

func (sqliteDialect) EpochFromYearDay(yearExpr, dayExpr string) string {
	return fmt.Sprintf("cast(strftime('%%s', date(printf('%%04d-01-01', %s), '+' || (%s - 1) || ' days')) as integer)", yearExpr, dayExpr)
}

func (sqliteDialect) EpochFromYearMonth(yearExpr, monthExpr string) string {
	return fmt.Sprintf("cast(strftime('%%s', printf('%%04d-%%02d-01', %s, %s)) as integer)", yearExpr, monthExpr)
}

func (sqliteDialect) EpochFromYear(yearExpr string) string {
	return fmt.Sprintf("cast(strftime('%%s', printf('%%04d-01-01', %s)) as integer)", yearExpr)
}

func (sqliteDialect) ColumnType(configured string) (string, bool) {
	return numberColumnType(configured, "real")
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Quote(identifier string) string { return `"` + identifier + `"` }

func (postgresDialect) FloorDiv(numer, denom string) string {
	return fmt.Sprintf("floor(%s / %s)", numer, denom)
}

func (postgresDialect) CastReal(expr string) string {
	return fmt.Sprintf("cast(%s as numeric)", expr)
}

func (postgresDialect) Year(timeExpr string) string {
	return fmt.Sprintf("cast(extract(year from to_timestamp(%s)) as integer)", timeExpr)
}

func (postgresDialect) Month(timeExpr string) string {
	return fmt.Sprintf("cast(extract(month from to_timestamp(%s)) as integer)", timeExpr)
}

func (postgresDialect) DayOfYear(timeExpr string) string {
	return fmt.Sprintf("cast(extract(doy from to_timestamp(%s)) as integer)", timeExpr)
}

func (postgresDialect) EpochFromYearDay(yearExpr, dayExpr string) string {
	return fmt.Sprintf("cast(extract(epoch from (make_date(cast(%s as integer), 1, 1) + (%s - 1) * interval '1 day')) as bigint)", yearExpr, dayExpr)
}

func (postgresDialect) EpochFromYearMonth(yearExpr, monthExpr string) string {
	return fmt.Sprintf("cast(extract(epoch from make_date(cast(%s as integer), cast(%s as integer), 1)) as bigint)", yearExpr, monthExpr)
}

func (postgresDialect) EpochFromYear(yearExpr string) string {
	return fmt.Sprintf("cast(extract(epoch from make_date(cast(%s as integer), 1, 1)) as bigint)", yearExpr)
}

func (postgresDialect) ColumnType(configured string) (string, bool) {
	return numberColumnType(configured, "double precision")
}

func numberColumnType(configured, numberType string) (string, bool) {
	switch configured {
	case "", "number":
		return numberType, true
	}
	return "", false
}
