package entity

import (
	"crypto/subtle"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"mesoserve/internal/config"
	"mesoserve/internal/query"
	"mesoserve/internal/store"
	"mesoserve/internal/units"
)

// TableEntity owns one entity's storage lifecycle: lazy schema creation,
// transactional batch insert with a single create-and-retry recovery, and
// retention enforcement after ingest.
type TableEntity struct {
	id      string
	cfg     *config.Entity
	db      *gorm.DB
	dialect query.Dialect
}

// New binds an entity definition to its data source connection and dialect.
func New(id string, cfg *config.Entity, db *gorm.DB, dialect query.Dialect) *TableEntity {
	return &TableEntity{id: id, cfg: cfg, db: db, dialect: dialect}
}

// ID returns the entity id.
func (e *TableEntity) ID() string { return e.id }

// Config returns the entity definition.
func (e *TableEntity) Config() *config.Entity { return e.cfg }

// DB returns the entity's data source connection.
func (e *TableEntity) DB() *gorm.DB { return e.db }

// Dialect returns the entity's SQL dialect.
func (e *TableEntity) Dialect() query.Dialect { return e.dialect }

// CanUpdate checks that writes are enabled for the entity and that the
// provided security key matches the configured one. Secrets stored as
// bcrypt hashes (prefix "$2") are verified as such; plain secrets compare
// in constant time.
func (e *TableEntity) CanUpdate(securityKey string) error {
	upd := e.cfg.AccessControl.Update
	if !upd.Allow {
		return securityErrorf("update not allowed for entity %q", e.id)
	}
	if upd.SecurityKey == "" {
		return configurationErrorf("entity %q has no securityKey configured", e.id)
	}
	if strings.HasPrefix(upd.SecurityKey, "$2") {
		if bcrypt.CompareHashAndPassword([]byte(upd.SecurityKey), []byte(securityKey)) != nil {
			return securityErrorf("provided security key does not match")
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(upd.SecurityKey), []byte(securityKey)) != 1 {
		return securityErrorf("provided security key does not match")
	}
	return nil
}

// Upsert writes a homogeneous batch of records in one transaction. Every
// record must carry the same configured-column key set as the first record;
// any mismatch fails before a single row is written. A missing-table error
// triggers schema creation and exactly one retry of the whole batch; a
// concurrent creator winning the table-creation race counts as success.
// On success the entity's retention policy runs when triggered on update.
func (e *TableEntity) Upsert(records []map[string]any) error {
	if len(records) == 0 {
		return dataIntegrityErrorf("no records to insert")
	}
	cols, err := e.insertColumns(records[0])
	if err != nil {
		return err
	}
	for i, rec := range records[1:] {
		recCols, err := e.insertColumns(rec)
		if err != nil {
			return err
		}
		if !equalColumns(cols, recCols) {
			return dataIntegrityErrorf("record at index %d does not share the batch column set %v", i+1, cols)
		}
	}

	insertSQL := e.buildInsertSQL(cols)
	err = e.insertBatch(insertSQL, cols, records)
	if err != nil && store.IsMissingTable(err) {
		if cerr := e.EnsureSchema(); cerr != nil && !store.IsTableExists(cerr) {
			return cerr
		}
		err = e.insertBatch(insertSQL, cols, records)
	}
	if err != nil {
		return err
	}
	return e.applyRetentionPolicy()
}

// EnsureSchema creates the entity's table from its configured columns with
// a primary key constraint. Invoked reactively on the first missing-table
// error, never eagerly.
func (e *TableEntity) EnsureSchema() error {
	sql, err := e.buildCreateTableSQL()
	if err != nil {
		return err
	}
	return e.db.Exec(sql).Error
}

// DeleteRecordsBefore deletes every row whose primary key value is below
// the bound, after converting it from epoch seconds into the key column's
// native unit.
func (e *TableEntity) DeleteRecordsBefore(epochSeconds int64) error {
	bound, err := units.Convert(float64(epochSeconds), units.S, e.cfg.PrimaryKeyUnit())
	if err != nil {
		return err
	}
	sql := fmt.Sprintf("delete from %s where %s < ?",
		e.dialect.Quote(e.cfg.TableName), e.dialect.Quote(e.cfg.PrimaryKey))
	return e.db.Exec(sql, bound).Error
}

func (e *TableEntity) applyRetentionPolicy() error {
	rp := e.cfg.RetentionPolicy
	if rp == nil || rp.Trigger != config.RetentionTriggerUpdate {
		return nil
	}
	policy, err := PolicyFromDescriptor(rp)
	if err != nil {
		return err
	}
	return policy.Apply(e)
}

// insertColumns returns the intersection of a record's keys with the
// configured columns, sorted for deterministic SQL.
func (e *TableEntity) insertColumns(record map[string]any) ([]string, error) {
	cols := make([]string, 0, len(record))
	for name := range record {
		if _, ok := e.cfg.Columns[name]; ok {
			cols = append(cols, name)
		}
	}
	if len(cols) == 0 {
		return nil, dataIntegrityErrorf("record has no configured columns for entity %q", e.id)
	}
	sort.Strings(cols)
	return cols, nil
}

func equalColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (e *TableEntity) buildInsertSQL(cols []string) string {
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = e.dialect.Quote(c)
		placeholders[i] = "?"
	}
	return fmt.Sprintf("insert into %s (%s) values (%s)",
		e.dialect.Quote(e.cfg.TableName), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
}

func (e *TableEntity) insertBatch(insertSQL string, cols []string, records []map[string]any) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		for _, rec := range records {
			args := make([]any, len(cols))
			for i, c := range cols {
				args[i] = rec[c]
			}
			if err := tx.Exec(insertSQL, args...).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *TableEntity) buildCreateTableSQL() (string, error) {
	names := make([]string, 0, len(e.cfg.Columns))
	for name := range e.cfg.Columns {
		if name != e.cfg.PrimaryKey {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	names = append([]string{e.cfg.PrimaryKey}, names...)

	defs := make([]string, 0, len(names)+1)
	for _, name := range names {
		col := e.cfg.Columns[name]
		typ, ok := e.dialect.ColumnType(col.Type)
		if !ok {
			return "", configurationErrorf("invalid type %q for column %q of entity %q", col.Type, name, e.id)
		}
		defs = append(defs, e.dialect.Quote(name)+" "+typ)
	}
	defs = append(defs, fmt.Sprintf("primary key (%s)", e.dialect.Quote(e.cfg.PrimaryKey)))
	return fmt.Sprintf("create table %s (%s)", e.dialect.Quote(e.cfg.TableName), strings.Join(defs, ", ")), nil
}
