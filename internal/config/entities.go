package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mesoserve/internal/units"
)

// RetentionTriggerUpdate runs the entity's retention policy after every
// successful ingest. It is the only trigger currently recognized.
const RetentionTriggerUpdate = "update"

// DataSource describes one database connection shared by entities.
type DataSource struct {
	// Dialect is the SQL dialect identifier: mysql, sqlite or postgres.
	Dialect string `yaml:"dialect"`
	DSN     string `yaml:"dsn"`
}

// Column describes a single entity column: the semantic unit its values are
// stored in and an optional storage type (defaults to "number").
type Column struct {
	Unit units.Unit `yaml:"unit"`
	Type string     `yaml:"type"`
}

// UpdateAccess controls whether an entity accepts writes and with which
// secret. A securityKey beginning with "$2" is treated as a bcrypt hash.
type UpdateAccess struct {
	Allow       bool   `yaml:"allow"`
	SecurityKey string `yaml:"securityKey"`
}

// AccessControl groups the per-operation access rules for an entity.
type AccessControl struct {
	Update UpdateAccess `yaml:"update"`
}

// RetentionDescriptor configures an entity's retention policy. Type selects
// the policy variant; window is the only one implemented. WindowSize is in
// seconds.
type RetentionDescriptor struct {
	Type       string `yaml:"type"`
	Trigger    string `yaml:"trigger"`
	WindowSize int64  `yaml:"windowSize"`
}

// Entity is the per-entity schema: one configured logical table of
// time-keyed readings. The primary key column is the time axis.
type Entity struct {
	DataSource      string               `yaml:"dataSource"`
	TableName       string               `yaml:"tableName"`
	Columns         map[string]Column    `yaml:"columns"`
	PrimaryKey      string               `yaml:"primaryKey"`
	AccessControl   AccessControl        `yaml:"accessControl"`
	RetentionPolicy *RetentionDescriptor `yaml:"retentionPolicy"`
}

// PrimaryKeyUnit returns the unit of the primary key (time) column.
func (e *Entity) PrimaryKeyUnit() units.Unit {
	return e.Columns[e.PrimaryKey].Unit
}

// Document is the parsed entity-config document. It is loaded once at
// startup and shared read-only across all requests.
type Document struct {
	DataSources map[string]DataSource `yaml:"dataSources"`
	Entities    map[string]*Entity    `yaml:"entities"`
}

// Entity looks up an entity by id.
func (d *Document) Entity(id string) (*Entity, bool) {
	e, ok := d.Entities[id]
	return e, ok
}

// LoadDocument reads and validates the entity-config document from path.
func LoadDocument(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entity config: %w", err)
	}
	return ParseDocument(raw)
}

// ParseDocument parses and validates an entity-config document.
func ParseDocument(raw []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse entity config: %w", err)
	}
	for id, e := range doc.Entities {
		if err := validateEntity(&doc, id, e); err != nil {
			return nil, err
		}
	}
	return &doc, nil
}

func validateEntity(doc *Document, id string, e *Entity) error {
	if e == nil {
		return fmt.Errorf("entity %q: empty definition", id)
	}
	if e.TableName == "" {
		return fmt.Errorf("entity %q: tableName is required", id)
	}
	if _, ok := doc.DataSources[e.DataSource]; !ok {
		return fmt.Errorf("entity %q: unknown dataSource %q", id, e.DataSource)
	}
	if len(e.Columns) == 0 {
		return fmt.Errorf("entity %q: at least one column is required", id)
	}
	if e.PrimaryKey == "" {
		return fmt.Errorf("entity %q: a primaryKey column is required", id)
	}
	if _, ok := e.Columns[e.PrimaryKey]; !ok {
		return fmt.Errorf("entity %q: primaryKey column %q is not defined", id, e.PrimaryKey)
	}
	if rp := e.RetentionPolicy; rp != nil {
		if rp.Type != "window" {
			return fmt.Errorf("entity %q: unsupported retention policy type %q", id, rp.Type)
		}
		if rp.WindowSize <= 0 {
			return fmt.Errorf("entity %q: retention windowSize must be positive, got %d", id, rp.WindowSize)
		}
		if rp.Trigger != "" && rp.Trigger != RetentionTriggerUpdate {
			return fmt.Errorf("entity %q: unsupported retention trigger %q", id, rp.Trigger)
		}
	}
	return nil
}
