package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// DSNPragmas are appended to file-backed SQLite paths.
const DSNPragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_txlock=immediate"

// DSN builds the modernc.org/sqlite data source name for path.
// PRE: path is non-empty
// POST: In-memory paths are returned unchanged
func DSN(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file::memory:") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + DSNPragmas
}

// migration is one forward-only schema step.
type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations is the ordered schema history. Append only.
var migrations = []migration{
	{
		version: 1,
		name:    "baseline",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS member (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				email TEXT NOT NULL DEFAULT '',
				phone TEXT NOT NULL DEFAULT '',
				plan_type TEXT NOT NULL DEFAULT '',
				subscription_start_date TEXT NOT NULL DEFAULT '',
				subscription_end_date TEXT NOT NULL DEFAULT '',
				subscription_status TEXT NOT NULL DEFAULT '',
				registration_fee INTEGER NOT NULL DEFAULT 0,
				package_fee INTEGER NOT NULL DEFAULT 0,
				membership_fees INTEGER NOT NULL DEFAULT 0,
				discount INTEGER NOT NULL DEFAULT 0,
				paid_amount INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS receipt (
				id TEXT PRIMARY KEY,
				receipt_number TEXT NOT NULL,
				sequence INTEGER NOT NULL DEFAULT 0,
				member_id TEXT NOT NULL,
				member_name TEXT NOT NULL DEFAULT '',
				plan_type TEXT NOT NULL DEFAULT '',
				subscription_start_date TEXT NOT NULL DEFAULT '',
				subscription_end_date TEXT NOT NULL DEFAULT '',
				registration_fee INTEGER NOT NULL DEFAULT 0,
				package_fee INTEGER NOT NULL DEFAULT 0,
				discount INTEGER NOT NULL DEFAULT 0,
				base_amount INTEGER NOT NULL DEFAULT 0,
				tax_amount INTEGER NOT NULL DEFAULT 0,
				taxes TEXT NOT NULL DEFAULT '[]',
				amount INTEGER NOT NULL,
				amount_paid INTEGER NOT NULL,
				due_amount INTEGER NOT NULL,
				payment_method TEXT NOT NULL DEFAULT '',
				notes TEXT NOT NULL DEFAULT '',
				transaction_type TEXT NOT NULL,
				receipt_tag TEXT NOT NULL,
				original_receipt_id TEXT NOT NULL DEFAULT '',
				version_number INTEGER NOT NULL DEFAULT 1,
				is_current_version INTEGER NOT NULL DEFAULT 1,
				superseded_at TEXT,
				created_at TEXT NOT NULL,
				created_by TEXT NOT NULL DEFAULT '',
				FOREIGN KEY (member_id) REFERENCES member(id)
			)`,
			`CREATE TABLE IF NOT EXISTS receipt_counter (
				name TEXT PRIMARY KEY,
				value INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS master_package (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				duration_type TEXT NOT NULL DEFAULT '',
				duration_months INTEGER NOT NULL DEFAULT 0,
				price INTEGER NOT NULL DEFAULT 0,
				registration_fee INTEGER NOT NULL DEFAULT 0,
				discount INTEGER NOT NULL DEFAULT 0,
				payment_method TEXT NOT NULL DEFAULT '',
				position INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS tax_setting (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				rate REAL NOT NULL,
				inclusive INTEGER NOT NULL DEFAULT 0,
				active INTEGER NOT NULL DEFAULT 1
			)`,
			`CREATE TABLE IF NOT EXISTS outbox (
				id TEXT PRIMARY KEY,
				action_type TEXT NOT NULL,
				payload TEXT NOT NULL,
				status TEXT NOT NULL,
				attempts INTEGER NOT NULL DEFAULT 0,
				max_attempts INTEGER NOT NULL DEFAULT 5,
				last_attempted_at TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				external_id TEXT NOT NULL DEFAULT '',
				error_message TEXT NOT NULL DEFAULT ''
			)`,
		},
	},
	{
		version: 2,
		name:    "receipt_indexes",
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_receipt_member ON receipt(member_id, sequence)`,
			`CREATE INDEX IF NOT EXISTS idx_receipt_original ON receipt(original_receipt_id)`,
			`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, created_at)`,
		},
	},
}

// LatestSchemaVersion returns the highest known migration version.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion returns the applied schema version, 0 for an empty database.
// PRE: db is a valid database connection
// POST: Returns version >= 0
func SchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, nil
	}
	var v sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

// MigrateDB applies every pending migration, each in its own transaction.
// PRE: db is a valid database connection
// POST: SchemaVersion(db) == LatestSchemaVersion()
func MigrateDB(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}
	current, err := SchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		slog.Info("schema_migrated", "version", m.version, "name", m.name)
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`INSERT INTO schema_version (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
		return err
	}
	return tx.Commit()
}

// InitDB enables the connection pragmas and migrates the schema.
// PRE: db is a valid database connection
// POST: All tables are created
func InitDB(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return MigrateDB(db)
}

// WithTx runs fn inside a transaction and commits when fn returns nil.
// PRE: db is non-nil
// POST: Transaction is committed on success, rolled back otherwise
func WithTx(ctx context.Context, db SQLDB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
