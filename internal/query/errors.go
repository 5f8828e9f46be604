package query

import "fmt"

// ParseError reports malformed parameter syntax (bad time/group/field
// encoding). It names the offending parameter so the client can fix it.
type ParseError struct {
	Param string
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s parameter: %s", e.Param, e.Msg)
}

func parseErrorf(param, format string, args ...any) error {
	return &ParseError{Param: param, Msg: fmt.Sprintf(format, args...)}
}

// ValidationError reports a well-formed request that violates a query
// invariant: unknown entity or field, non-convertible unit, invalid
// limit or decimals.
type ValidationError struct {
	Param string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s parameter: %s", e.Param, e.Msg)
}

func validationErrorf(param, format string, args ...any) error {
	return &ValidationError{Param: param, Msg: fmt.Sprintf(format, args...)}
}
