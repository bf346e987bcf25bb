package migrate

import (
	"testing"

	"petsitter/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if v, err := Version(conn); err != nil || v != 0 {
		t.Fatalf("fresh version = %d, %v", v, err)
	}
	all, err := steps()
	if err != nil || len(all) == 0 {
		t.Fatalf("load steps: %d %v", len(all), err)
	}
	latest := all[len(all)-1].Version

	for i := 0; i < 2; i++ {
		if err := Migrate(conn); err != nil {
			t.Fatalf("migrate run %d: %v", i+1, err)
		}
		if v, err := Version(conn); err != nil || v != latest {
			t.Fatalf("version after run %d = %d, %v", i+1, v, err)
		}
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("schema_version rows = %d, %v", n, err)
	}
	if _, err := conn.Exec(`INSERT INTO job_applications(id,job_id,applicant_id,status,created_at,updated_at) VALUES ('a','missing','missing','PENDING','t','t')`); err == nil {
		t.Fatalf("expected foreign key enforcement")
	}
}
