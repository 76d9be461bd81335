// Package ledger is the persistence layer: a single embedded SQLite database
// holding canonical transactions, tax calculations, payout links, and export
// state.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) a SQLite database at the given path and ensures all
// required tables exist. Pass ":memory:" for an in-memory database.
func Open(dsn string) (*sql.DB, error) {
	if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// In-memory databases are per-connection, so keep the pool at one. SQLite
	// serializes writers anyway; this is a single-writer batch tool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			source_id TEXT NOT NULL,
			source_type TEXT,
			date INTEGER NOT NULL,
			type TEXT NOT NULL,
			income_category TEXT,
			description TEXT,
			gross REAL,
			fees REAL,
			net REAL NOT NULL,
			currency TEXT NOT NULL DEFAULT 'usd',
			available_on INTEGER,
			payout_id TEXT,
			transfer_ref TEXT,
			created_at INTEGER NOT NULL,
			UNIQUE(source, source_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(type)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_available_on ON transactions(available_on)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_payout_id ON transactions(payout_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_transfer_ref ON transactions(transfer_ref)`,

		`CREATE TABLE IF NOT EXISTS tax_calculations (
			transaction_id TEXT PRIMARY KEY,
			fica_employee REAL NOT NULL,
			fica_employer REAL NOT NULL,
			federal REAL NOT NULL,
			state REAL NOT NULL,
			total REAL NOT NULL,
			calculated_at INTEGER NOT NULL,
			FOREIGN KEY (transaction_id) REFERENCES transactions(id)
		)`,

		`CREATE TABLE IF NOT EXISTS payout_links (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			payout_id TEXT NOT NULL,
			transaction_id TEXT NOT NULL,
			FOREIGN KEY (payout_id) REFERENCES transactions(id),
			FOREIGN KEY (transaction_id) REFERENCES transactions(id),
			UNIQUE(payout_id, transaction_id)
		)`,

		`CREATE TABLE IF NOT EXISTS export_markers (
			transaction_id TEXT NOT NULL,
			exporter TEXT NOT NULL,
			exported_at INTEGER NOT NULL,
			FOREIGN KEY (transaction_id) REFERENCES transactions(id),
			UNIQUE(transaction_id, exporter)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_export_markers_exporter ON export_markers(exporter)`,

		`CREATE TABLE IF NOT EXISTS export_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			exporter TEXT NOT NULL,
			start_date INTEGER,
			end_date INTEGER,
			transaction_count INTEGER NOT NULL,
			exported_at INTEGER NOT NULL,
			output_file TEXT
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	return nil
}
