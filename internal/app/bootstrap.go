package app

import (
	"database/sql"
	"fmt"

	"petsitter/internal/config"
	"petsitter/internal/db"
	"petsitter/internal/engine"
	"petsitter/internal/migrate"
)

// Workspace is an opened workspace: a migrated database and its config.
type Workspace struct {
	Dir    string
	DB     *sql.DB
	Config *config.Config
}

// Open prepares the workspace directory, applies pending migrations and
// loads petsitter.yml, falling back to defaults when it does not exist.
func Open(dir string) (*Workspace, error) {
	if _, err := db.EnsureWorkspace(dir); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.LoadOrDefault(dir)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Workspace{Dir: dir, DB: conn, Config: cfg}, nil
}

// Engine builds an engine over the workspace database.
func (w *Workspace) Engine() engine.Engine {
	return engine.New(w.DB, w.Config)
}

func (w *Workspace) Close() error {
	return w.DB.Close()
}
