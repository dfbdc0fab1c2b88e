// Package storage is the relational resource store behind search. It
// speaks two dialects: embedded sqlite through ncruces/go-sqlite3 and
// PostgreSQL through the pgx stdlib driver. Queries are written once with
// ? placeholders and rebound for the active dialect.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/ncruces/go-sqlite3"
	"github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/ext/unicode"

	"github.com/rubiojr/resdir/pkg/db"
	"github.com/rubiojr/resdir/pkg/log"
)

// ErrNotFound is returned when a single record lookup matches nothing.
var ErrNotFound = errors.New("not found")

type Store struct {
	db      *sql.DB
	dialect db.Dialect
	logger  *log.Logger
}

// Open connects to the store named by driverName ("sqlite" or "postgres")
// and dsn. It does not run migrations.
func Open(driverName, dsn string) (*Store, error) {
	dialect, err := db.ParseDialect(driverName)
	if err != nil {
		return nil, err
	}

	if dialect == db.SQLite {
		sqlDB, err := driver.Open(dsn, initSQLiteConn)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		// Surface pragma and extension errors now rather than on first query.
		if err := sqlDB.Ping(); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return New(sqlDB, dialect), nil
	}

	sqlDB, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	sqlDB.SetMaxOpenConns(16)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	return New(sqlDB, dialect), nil
}

// sqlitePragmas are applied to every pooled connection.
var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 30000",
	"PRAGMA foreign_keys = ON",
	"PRAGMA cache_size = -64000", // 64MB cache
	"PRAGMA temp_store = memory",
}

// initSQLiteConn prepares a new sqlite connection. The unicode extension
// replaces the ASCII-only lower() and LIKE so text matching folds case
// for every script, as ILIKE does on postgres.
func initSQLiteConn(conn *sqlite3.Conn) error {
	if err := unicode.Register(conn); err != nil {
		return fmt.Errorf("registering unicode functions: %w", err)
	}
	for _, pragma := range sqlitePragmas {
		if err := conn.Exec(pragma); err != nil {
			return fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// New wraps an already open database handle.
func New(sqlDB *sql.DB, dialect db.Dialect) *Store {
	return &Store{
		db:      sqlDB,
		dialect: dialect,
		logger:  log.ForService("storage"),
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for migrations
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Dialect() db.Dialect {
	return s.dialect
}

// Migrate applies pending schema migrations and returns how many ran.
func (s *Store) Migrate() (int, error) {
	return db.NewMigrationManager(s.db, s.dialect).ApplyPendingMigrations()
}

// Stats summarizes store contents.
type Stats struct {
	Resources  int
	Approved   int
	Categories int
	Oldest     time.Time
	Newest     time.Time
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats

	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN approved = ? THEN 1 ELSE 0 END), 0) FROM resources"), true).
		Scan(&st.Resources, &st.Approved)
	if err != nil {
		return nil, fmt.Errorf("counting resources: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&st.Categories); err != nil {
		return nil, fmt.Errorf("counting categories: %w", err)
	}

	if st.Resources > 0 {
		var oldest, newest db.Time
		err := s.db.QueryRowContext(ctx, "SELECT MIN(created_at), MAX(created_at) FROM resources").Scan(&oldest, &newest)
		if err != nil {
			return nil, fmt.Errorf("getting resource date range: %w", err)
		}
		st.Oldest, st.Newest = oldest.Time, newest.Time
	}

	return &st, nil
}

// Optimize refreshes planner statistics and, for sqlite, checkpoints the WAL.
func (s *Store) Optimize(ctx context.Context) error {
	statements := []string{"ANALYZE"}
	if s.dialect == db.SQLite {
		statements = []string{"PRAGMA optimize", "ANALYZE", "PRAGMA wal_checkpoint(TRUNCATE)"}
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("running %s: %w", stmt, err)
		}
	}
	return nil
}

func (s *Store) closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		s.logger.Warnf("failed to close rows: %v", err)
	}
}
