package database

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered schema history. Append-only; never edit an
// applied version.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_scan_sessions",
		SQL: `
			CREATE TABLE IF NOT EXISTS scan_sessions (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
	{
		Version: 2,
		Name:    "create_scan_records",
		SQL: `
			CREATE TABLE IF NOT EXISTS scan_records (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL REFERENCES scan_sessions(id) ON DELETE CASCADE,
				invoice_number TEXT NOT NULL,
				seller_name TEXT NOT NULL,
				vat_number TEXT NOT NULL,
				invoice_date TEXT,
				subtotal REAL,
				vat_amount REAL,
				total_amount REAL NOT NULL,
				payload_hash TEXT,
				status TEXT NOT NULL DEFAULT 'scanned',
				manual_entry INTEGER NOT NULL DEFAULT 0,
				notes TEXT NOT NULL DEFAULT '',
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_scan_records_session ON scan_records(session_id);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_scan_records_payload
				ON scan_records(session_id, payload_hash)
				WHERE payload_hash IS NOT NULL AND payload_hash != '';
		`,
	},
}

// Migrator handles database migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

// createMigrationsTable creates the migrations tracking table
func (m *Migrator) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := m.db.Exec(query)
	return err
}

// getAppliedMigrations returns the set of applied migration versions
func (m *Migrator) getAppliedMigrations() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// RunMigrations applies all pending migrations in order
func (m *Migrator) RunMigrations() error {
	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}

		m.logger.Info("Applying migration",
			zap.Int("version", migration.Version),
			zap.String("name", migration.Name))

		err := m.db.WithTransaction(func(tx *sql.Tx) error {
			if _, err := tx.Exec(migration.SQL); err != nil {
				return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
			}
			_, err := tx.Exec(
				"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
				migration.Version, migration.Name,
			)
			return err
		})
		if err != nil {
			return err
		}
	}

	return nil
}
