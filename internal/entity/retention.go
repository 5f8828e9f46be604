package entity

import (
	"time"

	"mesoserve/internal/config"
)

// RetentionPolicy is a sliding deletion rule applied to an entity after a
// successful ingest. Policies are keyed by the descriptor's type, so new
// variants can be added without touching TableEntity.
type RetentionPolicy interface {
	Apply(e *TableEntity) error
}

// WindowPolicy keeps only the most recent WindowSize seconds of rows.
type WindowPolicy struct {
	WindowSize int64

	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

// Apply deletes every row older than now minus the window.
func (p WindowPolicy) Apply(e *TableEntity) error {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	cutoff := now().Unix() - p.WindowSize
	return e.DeleteRecordsBefore(cutoff)
}

// PolicyFromDescriptor resolves a retention descriptor to its policy.
// Descriptor types are validated at document load; an unknown type here
// means the document and this switch have drifted apart.
func PolicyFromDescriptor(desc *config.RetentionDescriptor) (RetentionPolicy, error) {
	switch desc.Type {
	case "window":
		return WindowPolicy{WindowSize: desc.WindowSize}, nil
	}
	return nil, configurationErrorf("unsupported retention policy type %q", desc.Type)
}
