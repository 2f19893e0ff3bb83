/*
Package sqlite provides the SQLite-backed persistence layer.

PURPOSE:
  Implements every storage surface of the platform: the location and
  client directory, data centers and their client mappings, technicians
  with their permission grants, per-(client, country) rates and the
  service-entry log the reports run over.

INTERFACES IMPLEMENTED:
  reports.EntryStore:     entry listing with resolved names + paging
  reports.RateStore:      batched rate lookup
  access.DirectoryStore:  grant checks and directory views

KEY TABLES:
  countries, cities:     location reference data
  clients:               billable customers (soft-deactivated)
  client_engineers:      client-side engineers entries reference by ID
  data_centers:          sites, with commute minutes and active flag
  client_data_centers:   which clients operate in which data centers
  ft_companies:          companies technicians belong to
  technicians:           field technicians with bcrypt password hashes
  grants:                (technician, data center, client) permissions
  rates:                 one active rate per (client, country)
  service_entries:       the visit log; country/city denormalized

ATOMICITY:
  Technician creation and update replace the grant set inside one SQL
  transaction: the technician row and its grants either all land or
  none do. No other mutation spans more than one statement.

CONCURRENCY:
  sync.RWMutex plus WAL mode, same trade-off as a single-writer
  deployment: readers never block each other, one writer at a time.

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/memory: in-memory implementation of the read surfaces
  - reports, access: the interface definitions
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Location reference data
	CREATE TABLE IF NOT EXISTS countries (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		iso_code TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		country_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cities_country ON cities(country_id);

	-- Clients
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		country_id TEXT NOT NULL DEFAULT '',
		city_id TEXT NOT NULL DEFAULT '',
		contact_name TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		contact_phone TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	-- Data centers
	CREATE TABLE IF NOT EXISTS data_centers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		country_id TEXT NOT NULL,
		city_id TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		location_type TEXT NOT NULL DEFAULT 'within_city_limits',
		commute_minutes INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_data_centers_location
		ON data_centers(country_id, city_id);

	-- Which clients operate in which data centers; grants must reference
	-- a pair present here
	CREATE TABLE IF NOT EXISTS client_data_centers (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		data_center_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(client_id, data_center_id)
	);

	-- Companies field technicians belong to; scopes the co-technician view
	CREATE TABLE IF NOT EXISTS ft_companies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	-- Technicians
	CREATE TABLE IF NOT EXISTS technicians (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		mobile TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		country_id TEXT NOT NULL DEFAULT '',
		city_id TEXT NOT NULL DEFAULT '',
		company_id TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'technician',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_technicians_company ON technicians(company_id);

	-- Client-side engineers who receive technicians on site; entries
	-- reference them by ID and resolve the name at read time
	CREATE TABLE IF NOT EXISTS client_engineers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		client_id TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_client_engineers_client ON client_engineers(client_id);

	-- Permission grants; the creation-side check is an exact triple match
	CREATE TABLE IF NOT EXISTS grants (
		id TEXT PRIMARY KEY,
		ft_id TEXT NOT NULL,
		data_center_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(ft_id, data_center_id, client_id)
	);

	CREATE INDEX IF NOT EXISTS idx_grants_ft ON grants(ft_id);

	-- One active rate per (client, country); replace-in-place
	CREATE TABLE IF NOT EXISTS rates (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		country_id TEXT NOT NULL,
		standard_rate TEXT NOT NULL,
		off_standard_rate TEXT NOT NULL,
		commute_rate TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(client_id, country_id)
	);

	-- Service entries; country/city denormalized from the data center at
	-- creation, never re-derived at report time
	CREATE TABLE IF NOT EXISTS service_entries (
		id TEXT PRIMARY KEY,
		ft_id TEXT NOT NULL,
		date TEXT NOT NULL,
		country_id TEXT NOT NULL,
		city_id TEXT NOT NULL,
		data_center_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		work_type TEXT NOT NULL,
		reference_no TEXT NOT NULL DEFAULT '',
		additional_ft_count INTEGER NOT NULL DEFAULT 0,
		additional_ft_ids_json TEXT NOT NULL DEFAULT '[]',
		client_engineer_id TEXT NOT NULL DEFAULT '',
		entry_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		duration_hours REAL NOT NULL,
		total_bills_expense TEXT NOT NULL DEFAULT '0',
		bills_json TEXT NOT NULL DEFAULT '[]',
		work_description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Hot path: every report starts from a date-range scan
	CREATE INDEX IF NOT EXISTS idx_entries_date ON service_entries(date DESC);
	CREATE INDEX IF NOT EXISTS idx_entries_ft_date ON service_entries(ft_id, date DESC);
	CREATE INDEX IF NOT EXISTS idx_entries_dc_client ON service_entries(data_center_id, client_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION HELPER
// =============================================================================

// withTx runs fn inside a database transaction, rolling back on error.
// Callers hold the write lock.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toAnySlice(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
