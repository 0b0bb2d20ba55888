package storage

import (
	"fmt"
	"strings"
)

// Backend names accepted by Open
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config selects and configures a Store backend
type Config struct {
	Backend   string // memory (default) or sqlite
	DSN       string // SQLite path or ":memory:"
	Dimension int    // Expected vector length; 0 adopts the first vector
}

// Open creates the Store described by cfg
func Open(cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendMemory:
		return NewMemoryStore(cfg.Dimension), nil
	case BackendSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		return NewSQLiteStore(dsn, cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
