package migrate

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed sql/*.sql
var schemaFS embed.FS

// Step is one embedded schema file, numbered by its NNNN_ prefix.
type Step struct {
	Version int
	Name    string
	SQL     string
}

func steps() ([]Step, error) {
	entries, err := fs.ReadDir(schemaFS, "sql")
	if err != nil {
		return nil, err
	}
	var out []Step
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		var v int
		if _, err := fmt.Sscanf(e.Name(), "%d_", &v); err != nil {
			return nil, fmt.Errorf("invalid migration filename %s: %w", e.Name(), err)
		}
		data, err := schemaFS.ReadFile("sql/" + e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, Step{Version: v, Name: e.Name(), SQL: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func current(q interface {
	QueryRow(query string, args ...any) *sql.Row
}) (int, error) {
	var v int
	err := q.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

// Migrate applies every pending step in one transaction.
func Migrate(db *sql.DB) error {
	pending, err := steps()
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_version(version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	version, err := current(tx)
	if err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}
	if version == 0 {
		if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
			return fmt.Errorf("reset schema_version: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version(version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema_version: %w", err)
		}
	}
	for _, s := range pending {
		if s.Version <= version {
			continue
		}
		if _, err := tx.Exec(s.SQL); err != nil {
			return fmt.Errorf("migration %s: %w", s.Name, err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version=?`, s.Version); err != nil {
			return fmt.Errorf("update schema_version: %w", err)
		}
		version = s.Version
	}
	return tx.Commit()
}

// Version returns the applied schema version, 0 for a fresh database.
func Version(db *sql.DB) (int, error) {
	v, err := current(db)
	if err != nil && strings.Contains(err.Error(), "no such table") {
		return 0, nil
	}
	return v, err
}
