package units

import (
	"fmt"
	"strings"
)

// Unit identifies a physical unit that column values may be stored or
// reported in.
type Unit string

const (
	// temperature
	F Unit = "f" // fahrenheit
	C Unit = "c" // celsius

	// pressure
	InHg Unit = "inHg" // inches of mercury
	Mb   Unit = "mb"   // millibar
	MmHg Unit = "mmHg" // millimeters of mercury
	HPa  Unit = "hPa"  // hectopascal
	KPa  Unit = "kPa"  // kilopascal

	// length
	In Unit = "in" // inches
	Mm Unit = "mm" // millimeters
	Cm Unit = "cm" // centimeters

	// rain rate
	InHr Unit = "inHr" // inches per hour
	MmHr Unit = "mmHr" // millimeters per hour
	CmHr Unit = "cmHr" // centimeters per hour

	// speed
	Mph  Unit = "mph" // miles per hour
	Kph  Unit = "kph" // kilometers per hour
	Knot Unit = "knot"
	Mps  Unit = "mps" // meters per second

	Deg  Unit = "deg"  // degrees
	Perc Unit = "perc" // percent

	// time
	S  Unit = "s"  // seconds since epoch
	Ms Unit = "ms" // milliseconds since epoch
)

// ConversionError reports a requested conversion with no registered formula.
type ConversionError struct {
	From Unit
	To   Unit
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("no converter registered from unit %q to unit %q", e.From, e.To)
}

// formula is a single one-hop conversion. The SQL template carries a '#'
// placeholder for the expression being converted; fn is the equivalent
// numeric form.
type formula struct {
	sql string
	fn  func(float64) float64
}

var formulas = map[Unit]map[Unit]formula{}

func register(from, to Unit, sql string, fn func(float64) float64) {
	m, ok := formulas[from]
	if !ok {
		m = map[Unit]formula{}
		formulas[from] = m
	}
	m[to] = formula{sql: sql, fn: fn}
}

// factor registers a plain multiplicative conversion. The literal is kept
// verbatim so generated SQL matches the registered constant exactly.
func factor(from, to Unit, lit string, k float64) {
	register(from, to, "# * "+lit, func(v float64) float64 { return v * k })
}

func init() {
	// temperature
	register(F, C, "(5.0/9.0) * (#-32)", func(v float64) float64 { return (v - 32) * 5.0 / 9.0 })
	register(C, F, "(9.0/5.0) * # + 32", func(v float64) float64 { return v*9.0/5.0 + 32 })

	// pressure
	factor(InHg, Mb, "33.86", 33.86)
	factor(InHg, MmHg, "25.4", 25.4)
	factor(InHg, HPa, "33.86", 33.86)
	factor(InHg, KPa, "3.386", 3.386)
	factor(Mb, InHg, "0.0295333727", 0.0295333727)
	factor(Mb, MmHg, "0.750061683", 0.750061683)
	register(Mb, HPa, "#", func(v float64) float64 { return v })
	factor(Mb, KPa, "0.1", 0.1)
	factor(MmHg, InHg, "0.039374592", 0.039374592)
	factor(MmHg, Mb, "1.33322368", 1.33322368)
	factor(MmHg, HPa, "1.33322368", 1.33322368)
	factor(MmHg, KPa, "0.1333223684", 0.1333223684)
	factor(HPa, InHg, "0.0295333727", 0.0295333727)
	register(HPa, Mb, "#", func(v float64) float64 { return v })
	factor(HPa, MmHg, "0.750061683", 0.750061683)
	factor(HPa, KPa, "0.1", 0.1)
	factor(KPa, InHg, "0.295333727", 0.295333727)
	factor(KPa, Mb, "10", 10)
	factor(KPa, MmHg, "7.50061683", 7.50061683)
	factor(KPa, HPa, "10", 10)

	// length
	factor(In, Mm, "25.4", 25.4)
	factor(In, Cm, "2.54", 2.54)
	factor(Mm, In, "0.0393700787", 0.0393700787)
	factor(Mm, Cm, "0.1", 0.1)
	factor(Cm, In, "0.393700787", 0.393700787)
	factor(Cm, Mm, "10.0", 10.0)

	// rain rate
	factor(InHr, MmHr, "25.4", 25.4)
	factor(InHr, CmHr, "2.54", 2.54)
	factor(MmHr, InHr, "0.0393700787", 0.0393700787)
	factor(MmHr, CmHr, "0.10", 0.10)
	factor(CmHr, InHr, "0.393700787", 0.393700787)
	factor(CmHr, MmHr, "10.0", 10.0)

	// speed
	factor(Mph, Kph, "1.609344", 1.609344)
	factor(Mph, Knot, "0.868976242", 0.868976242)
	factor(Mph, Mps, "0.44704", 0.44704)
	factor(Kph, Mph, "0.621371192", 0.621371192)
	factor(Kph, Knot, "0.539956803", 0.539956803)
	factor(Kph, Mps, "0.277777778", 0.277777778)
	factor(Knot, Mph, "1.15077945", 1.15077945)
	factor(Knot, Kph, "1.85200", 1.852)
	factor(Knot, Mps, "0.514444444", 0.514444444)
	factor(Mps, Mph, "2.23693629", 2.23693629)
	factor(Mps, Knot, "1.94384449", 1.94384449)
	factor(Mps, Kph, "3.6", 3.6)

	// time
	factor(S, Ms, "1000", 1000)
	factor(Ms, S, "0.001", 0.001)
}

// Convertible reports whether a one-hop formula is registered for the pair.
// Identity pairs and an empty target are always convertible.
func Convertible(from, to Unit) bool {
	if to == "" || from == to {
		return true
	}
	_, ok := formulas[from][to]
	return ok
}

// Convert applies the registered formula numerically. Identity when the
// units match or no target unit is requested. Conversions are strictly
// one-hop: there is no transitive path through intermediate units.
func Convert(value float64, from, to Unit) (float64, error) {
	if to == "" || from == to {
		return value, nil
	}
	f, ok := formulas[from][to]
	if !ok {
		return 0, &ConversionError{From: from, To: to}
	}
	return f.fn(value), nil
}

// SQLFormula substitutes expr (any SQL expression, e.g. a column reference
// or an aggregate call) into the registered template, so the conversion runs
// inside the generated query. Identity cases return expr unchanged.
func SQLFormula(expr string, from, to Unit) (string, error) {
	if to == "" || from == to {
		return expr, nil
	}
	f, ok := formulas[from][to]
	if !ok {
		return "", &ConversionError{From: from, To: to}
	}
	return strings.ReplaceAll(f.sql, "#", expr), nil
}
