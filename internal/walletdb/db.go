// Package walletdb is the Store: transactional SQLite persistence for
// accounts, blocks, transactions, shielded notes, and their witnesses.
// It is the only component in the wallet allowed to touch the database
// file, and every mutation it performs runs inside a single-writer
// BEGIN IMMEDIATE transaction so a crash mid-write can never leave the
// tables in a state that mixes a committed block with a half-applied
// note.
package walletdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Klingon-tech/zcash-shielded-wallet/internal/walletdb/migrate"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/logging"
)

// Config configures where the wallet database lives.
type Config struct {
	DataDir string
	// FileName overrides the default database file name; tests use this
	// to keep fixtures self-describing.
	FileName string
}

// DB is the wallet's single SQLite-backed store. All writes are
// serialized both by SQLite's BEGIN IMMEDIATE locking and by mu, so two
// goroutines racing to write never interleave statements on the shared
// connection.
type DB struct {
	db     *sql.DB
	conn   *sql.Conn
	dbPath string
	mu     sync.Mutex
	log    *logging.Logger
}

func expandPath(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

// Open creates the data directory if needed, opens the database in WAL
// mode with a single connection (SQLite allows exactly one writer), and
// applies every pending migration.
func Open(ctx context.Context, cfg *Config) (*DB, error) {
	dataDir := expandPath(cfg.DataDir)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("walletdb: create data directory: %w", err)
	}

	fileName := cfg.FileName
	if fileName == "" {
		fileName = "wallet.db"
	}
	dbPath := filepath.Join(dataDir, fileName)

	sqlDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("walletdb: open database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("walletdb: ping database: %w", err)
	}

	// SQLite serves exactly one writer; pinning the pool to a single
	// connection turns database/sql's own pooling into a no-op so the
	// BEGIN IMMEDIATE discipline below is the only thing guarding writes.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("walletdb: acquire connection: %w", err)
	}

	d := &DB{
		db:     sqlDB,
		conn:   conn,
		dbPath: dbPath,
		log:    logging.GetDefault().Component("walletdb"),
	}

	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		d.Close()
		return nil, fmt.Errorf("walletdb: initialize schema: %w", err)
	}

	controller := migrate.NewController(migrate.AllMigrations()...)
	if err := controller.Apply(ctx, conn); err != nil {
		d.Close()
		return nil, fmt.Errorf("walletdb: apply migrations: %w", err)
	}

	d.log.Info("wallet database opened", "path", dbPath)
	return d, nil
}

// Close releases the database connection.
func (d *DB) Close() error {
	if d.conn != nil {
		d.conn.Close()
	}
	return d.db.Close()
}

// Path returns the database file path, mostly useful in tests and logs.
func (d *DB) Path() string { return d.dbPath }

// QueryContext exposes the store's read connection to read-only
// components outside this package, such as the selector, without
// opening up the write-transaction machinery.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.conn.QueryContext(ctx, query, args...)
}

// execer is the subset of *sql.Conn the per-package query files need.
// Queries are written against it rather than *sql.DB directly so that
// every statement inside a withWriteTx/withReadTx block runs on the
// store's single pinned connection.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withWriteTx runs fn inside a BEGIN IMMEDIATE transaction on the store's
// single connection, serialized by mu. BEGIN IMMEDIATE (rather than the
// deferred locking database/sql's own transaction API gives you) grabs
// SQLite's write lock up front, so a conflicting writer fails fast at the
// start of a transaction instead of deadlocking partway through one.
// database/sql has no way to request BEGIN IMMEDIATE through its own
// TxOptions, so the transaction is driven with raw statements against
// the checked-out connection instead of a *sql.Tx.
// fn's error, if any, triggers a rollback; a failed rollback escalates by
// panicking, since a store that cannot roll back its own transaction is
// no longer trustworthy to keep serving reads.
func (d *DB) withWriteTx(ctx context.Context, fn func(ctx context.Context, ex execer) error) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, execErr := d.conn.ExecContext(ctx, "BEGIN IMMEDIATE"); execErr != nil {
		return fmt.Errorf("walletdb: begin immediate: %w", execErr)
	}

	defer func() {
		if r := recover(); r != nil {
			if _, rbErr := d.conn.ExecContext(context.Background(), "ROLLBACK"); rbErr != nil {
				panic(fmt.Sprintf("walletdb: rollback failed after panic %v: %v", r, rbErr))
			}
			panic(r)
		}
	}()

	if err = fn(ctx, d.conn); err != nil {
		if _, rbErr := d.conn.ExecContext(context.Background(), "ROLLBACK"); rbErr != nil {
			panic(fmt.Sprintf("walletdb: rollback failed after write error %v: %v", err, rbErr))
		}
		return err
	}

	if _, execErr := d.conn.ExecContext(ctx, "COMMIT"); execErr != nil {
		return fmt.Errorf("walletdb: commit: %w", execErr)
	}
	return nil
}

// withReadTx runs fn against the store's connection under a plain
// deferred transaction, used for multi-statement reads that need a
// consistent snapshot but not the writer lock.
func (d *DB) withReadTx(ctx context.Context, fn func(ctx context.Context, ex execer) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.conn.ExecContext(ctx, "BEGIN"); err != nil {
		return fmt.Errorf("walletdb: begin: %w", err)
	}
	defer d.conn.ExecContext(context.Background(), "ROLLBACK")

	if err := fn(ctx, d.conn); err != nil {
		return err
	}
	_, err := d.conn.ExecContext(ctx, "COMMIT")
	return err
}
