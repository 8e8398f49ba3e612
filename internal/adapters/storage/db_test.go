package storage

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"

	_ "modernc.org/sqlite"
)

// openTestDB creates an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// getTableNames returns sorted table names from sqlite_master, excluding internal tables.
func getTableNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan table name: %v", err)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// expectedTables is the sorted list of tables after all migrations.
var expectedTables = []string{
	"master_package",
	"member",
	"outbox",
	"receipt",
	"receipt_counter",
	"schema_version",
	"tax_setting",
}

// TestMigrateDB_Fresh verifies all migrations apply cleanly to an empty database.
func TestMigrateDB_Fresh(t *testing.T) {
	db := openTestDB(t)

	if err := InitDB(db); err != nil {
		t.Fatalf("InitDB failed on fresh db: %v", err)
	}

	version, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != LatestSchemaVersion() {
		t.Errorf("version = %d, want %d", version, LatestSchemaVersion())
	}

	tables := getTableNames(t, db)
	if len(tables) != len(expectedTables) {
		t.Fatalf("got %d tables, want %d\ngot:  %v\nwant: %v", len(tables), len(expectedTables), tables, expectedTables)
	}
	for i, want := range expectedTables {
		if tables[i] != want {
			t.Errorf("table[%d] = %q, want %q", i, tables[i], want)
		}
	}
}

// TestMigrateDB_Idempotent verifies that running MigrateDB twice produces no errors
// and the version remains the same.
func TestMigrateDB_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateDB(db); err != nil {
		t.Fatalf("first MigrateDB failed: %v", err)
	}
	version1, _ := SchemaVersion(db)

	if err := MigrateDB(db); err != nil {
		t.Fatalf("second MigrateDB failed: %v", err)
	}
	version2, _ := SchemaVersion(db)
	if version1 != version2 {
		t.Errorf("version changed after idempotent run: %d -> %d", version1, version2)
	}
}

// TestMigrateDB_VersionProgression verifies that SchemaVersion reports 0 before
// migration and the correct version after.
func TestMigrateDB_VersionProgression(t *testing.T) {
	db := openTestDB(t)

	v, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if v != 0 {
		t.Errorf("initial version = %d, want 0", v)
	}

	if err := MigrateDB(db); err != nil {
		t.Fatalf("MigrateDB failed: %v", err)
	}
	v, _ = SchemaVersion(db)
	if v != LatestSchemaVersion() {
		t.Errorf("post-migration version = %d, want %d", v, LatestSchemaVersion())
	}
}

// TestMigrateDB_DataSurvival verifies that existing data survives a re-run.
func TestMigrateDB_DataSurvival(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateDB(db); err != nil {
		t.Fatalf("MigrateDB failed: %v", err)
	}

	_, err := db.Exec(`INSERT INTO member (id, name, status, created_at, updated_at) VALUES ('m1', 'Test User', 'active', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`)
	if err != nil {
		t.Fatalf("failed to insert test member: %v", err)
	}
	if err := MigrateDB(db); err != nil {
		t.Fatalf("second MigrateDB failed: %v", err)
	}

	var name string
	if err := db.QueryRow("SELECT name FROM member WHERE id = 'm1'").Scan(&name); err != nil {
		t.Fatalf("member data lost after migration: %v", err)
	}
	if name != "Test User" {
		t.Errorf("member name = %q, want %q", name, "Test User")
	}
}

// TestReceiptForeignKey verifies receipts cannot reference unknown members.
func TestReceiptForeignKey(t *testing.T) {
	db := openTestDB(t)
	if err := InitDB(db); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	_, err := db.Exec(`INSERT INTO receipt (id, receipt_number, member_id, amount, amount_paid, due_amount, transaction_type, receipt_tag, created_at)
		VALUES ('r1', 'RCP-000001', 'ghost', 100, 100, 0, 'payment', 'Payment', '2026-01-01T00:00:00Z')`)
	if err == nil {
		t.Error("expected foreign key violation for unknown member")
	}
}

// TestWithTx_RollsBackOnError verifies no writes survive a failed callback.
func TestWithTx_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	if err := InitDB(db); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	boom := errors.New("boom")
	err := WithTx(context.Background(), db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO receipt_counter (name, value) VALUES ('receipt', 7)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() = %v, want boom", err)
	}
	var n int
	db.QueryRow(`SELECT COUNT(*) FROM receipt_counter`).Scan(&n)
	if n != 0 {
		t.Errorf("counter rows = %d, want 0 after rollback", n)
	}

	if err := WithTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO receipt_counter (name, value) VALUES ('receipt', 7)`)
		return err
	}); err != nil {
		t.Fatalf("WithTx() commit error = %v", err)
	}
	db.QueryRow(`SELECT COUNT(*) FROM receipt_counter`).Scan(&n)
	if n != 1 {
		t.Errorf("counter rows = %d, want 1 after commit", n)
	}
}

// TestDSN appends pragmas only for file paths.
func TestDSN(t *testing.T) {
	if got := DSN(":memory:"); got != ":memory:" {
		t.Errorf("DSN(:memory:) = %q", got)
	}
	if got := DSN("gym.db"); got != "gym.db?"+DSNPragmas {
		t.Errorf("DSN(gym.db) = %q", got)
	}
	if got := DSN("gym.db?mode=rw"); got != "gym.db?mode=rw&"+DSNPragmas {
		t.Errorf("DSN(gym.db?mode=rw) = %q", got)
	}
}
