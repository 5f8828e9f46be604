package store

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mesoserve/internal/config"
)

// Stores holds one gorm connection pool per configured data source.
// Connections are opened once at startup; requests borrow sessions from
// the pool.
type Stores struct {
	byID map[string]*gorm.DB
}

// Open connects every data source in the document. An unknown dialect or an
// unreachable database fails startup.
func Open(doc *config.Document) (*Stores, error) {
	s := &Stores{byID: make(map[string]*gorm.DB, len(doc.DataSources))}
	for id, ds := range doc.DataSources {
		db, err := open(ds)
		if err != nil {
			return nil, fmt.Errorf("data source %q: %w", id, err)
		}
		s.byID[id] = db
	}
	return s, nil
}

func open(ds config.DataSource) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	switch ds.Dialect {
	case "mysql":
		return gorm.Open(mysql.Open(ds.DSN), cfg)
	case "sqlite":
		return gorm.Open(sqlite.Open(ds.DSN), cfg)
	case "postgres":
		return gorm.Open(postgres.Open(ds.DSN), cfg)
	}
	return nil, fmt.Errorf("unsupported data source dialect: %q", ds.Dialect)
}

// For returns the connection for a data source id.
func (s *Stores) For(dataSource string) (*gorm.DB, bool) {
	db, ok := s.byID[dataSource]
	return db, ok
}
