package entity

import "fmt"

// SecurityError reports a write-secret mismatch or an entity with updates
// disabled. Surfaced as forbidden at the HTTP boundary.
type SecurityError struct {
	Msg string
}

func (e *SecurityError) Error() string { return e.Msg }

func securityErrorf(format string, args ...any) error {
	return &SecurityError{Msg: fmt.Sprintf(format, args...)}
}

// ConfigurationError reports an entity definition that cannot be served:
// a missing write secret, an unsupported dialect or column type. Surfaced
// as a server failure.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

func configurationErrorf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// DataIntegrityError reports an ingest batch whose records do not share a
// single column-key set. Raised before any row is written.
type DataIntegrityError struct {
	Msg string
}

func (e *DataIntegrityError) Error() string { return e.Msg }

func dataIntegrityErrorf(format string, args ...any) error {
	return &DataIntegrityError{Msg: fmt.Sprintf(format, args...)}
}
