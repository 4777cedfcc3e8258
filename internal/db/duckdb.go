package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"
)

// DuckDB is the analytical warehouse backend.
type DuckDB struct {
	*sql.DB
	path string
}

// OpenDuckDB creates or opens a DuckDB warehouse and applies the star
// schema.
func OpenDuckDB(path string) (*DuckDB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if _, err := conn.Exec(starSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DuckDB{DB: conn, path: path}, nil
}

// Path returns the database file path.
func (d *DuckDB) Path() string {
	return d.path
}
