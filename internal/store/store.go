package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// Driver selects the SQL dialect and database/sql driver.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver maps a flag value to a Driver.
func ParseDriver(s string) (Driver, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(s))) {
	case "", DriverSQLite:
		return DriverSQLite, nil
	case DriverPostgres, "pgx":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("unsupported database driver: %q", s)
}

// Store is the SQL-backed record store for users, quiz sets and attempts.
type Store struct {
	db     *sql.DB
	driver Driver
}

// New opens the database and applies pending migrations. For SQLite, dsn is a
// file path or ":memory:".
func New(driver Driver, dsn string) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
		drvName = "pgx"
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection keeps ":memory:" databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// sqliteParams are added to a SQLite DSN unless the caller already set them.
// Cascading deletes need foreign_keys and newest-first history needs the
// sortable time format.
var sqliteParams = []struct{ key, param string }{
	{"_pragma=busy_timeout", "_pragma=busy_timeout(5000)"},
	{"_pragma=foreign_keys", "_pragma=foreign_keys(1)"},
	{"_pragma=journal_mode", "_pragma=journal_mode(WAL)"},
	{"_time_format=", "_time_format=sqlite"},
}

// sqliteDSN appends the missing entries of sqliteParams to dsn.
func sqliteDSN(dsn string) string {
	path, query, _ := strings.Cut(dsn, "?")
	lower := strings.ToLower(query)
	parts := []string{}
	if query != "" {
		parts = append(parts, query)
	}
	for _, p := range sqliteParams {
		if !strings.Contains(lower, p.key) {
			parts = append(parts, p.param)
		}
	}
	if len(parts) == 0 {
		return path
	}
	return path + "?" + strings.Join(parts, "&")
}

// Driver reports the dialect the store was opened with.
func (s *Store) Driver() Driver {
	return s.driver
}

func (s *Store) migrate() error {
	src, err := iofs.New(migrationsFS, "migrations/"+string(s.driver))
	if err != nil {
		return err
	}

	var dbDrv database.Driver
	switch s.driver {
	case DriverPostgres:
		dbDrv, err = migratepgx.WithInstance(s.db, &migratepgx.Config{})
	default:
		dbDrv, err = migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	}
	if err != nil {
		return err
	}

	// The migrate instance is not closed: closing it would close s.db.
	m, err := migrate.NewWithInstance("iofs", src, string(s.driver), dbDrv)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// insert runs an INSERT ... RETURNING id. Both SQLite and Postgres support it.
func (s *Store) insert(q querier, query string, args ...any) (int64, error) {
	var id int64
	err := q.QueryRow(query+" RETURNING id", args...).Scan(&id)
	return id, err
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}
