// Package session executes SQL against a live database and feeds the results
// through the mapping engine. It owns the transaction and savepoint lifecycle
// and the persistence write path; row shaping itself stays in internal/mapper.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"uniquery/internal/schema"
	"uniquery/internal/sqlanalysis"
)

// runner is the common query surface of *sql.DB and *sql.Tx.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options configures a Session beyond its registry and connection.
type Options struct {
	Dialect Dialect
	Logger  *slog.Logger
	// LogSQL emits every executed statement at debug level.
	LogSQL bool
}

// Session binds a database handle to a schema registry. A Session (and any
// Transaction derived from it) is intended for one goroutine at a time.
type Session struct {
	db       *sql.DB
	registry *schema.Registry
	analyzer *sqlanalysis.Analyzer
	dialect  Dialect
	logger   *slog.Logger
	logSQL   bool
}

// Open connects to a database and wraps it in a Session.
func Open(driverName, dsn string, registry *schema.Registry, opts Options) (*Session, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return New(db, registry, opts), nil
}

// New wraps an existing database handle in a Session.
func New(db *sql.DB, registry *schema.Registry, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dialect := opts.Dialect
	if dialect.name == "" {
		dialect = MySQL
	}
	return &Session{
		db:       db,
		registry: registry,
		analyzer: sqlanalysis.New(registry),
		dialect:  dialect,
		logger:   logger,
		logSQL:   opts.LogSQL,
	}
}

// Registry returns the schema registry the session maps against.
func (s *Session) Registry() *schema.Registry {
	return s.registry
}

// Close closes the underlying database handle.
func (s *Session) Close() error {
	return s.db.Close()
}

// Begin starts a transaction.
func (s *Session) Begin(ctx context.Context) (*Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Transaction{session: s, tx: tx}, nil
}

// Transaction is a database transaction bound to its originating Session.
// Nested units of work are explicit savepoint scopes, not nested
// transactions.
type Transaction struct {
	session *Session
	tx      *sql.Tx
	// savepoints issued so far; names are sp_1, sp_2, ... in open order.
	savepointSeq int
}

// Commit commits the transaction.
func (t *Transaction) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the whole transaction.
func (t *Transaction) Rollback() error {
	return t.tx.Rollback()
}

// BeginScope marks a savepoint and returns its handle. Scopes close in LIFO
// order; rolling back a scope discards everything executed after its marker.
// Records materialized under a rolled-back scope are stale; refreshing them
// is the caller's responsibility.
func (t *Transaction) BeginScope(ctx context.Context) (*Scope, error) {
	t.savepointSeq++
	name := fmt.Sprintf("sp_%d", t.savepointSeq)
	if _, err := t.exec(ctx, "SAVEPOINT "+name); err != nil {
		t.savepointSeq--
		return nil, fmt.Errorf("failed to create savepoint %s: %w", name, err)
	}
	return &Scope{tx: t, name: name}, nil
}

func (t *Transaction) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.session.exec(ctx, t.tx, query, args...)
}

// Scope is the handle of one savepoint. Exactly one of Release or Rollback
// finishes it.
type Scope struct {
	tx   *Transaction
	name string
	done bool
}

// Release discards the savepoint marker, keeping the work done under it.
func (sc *Scope) Release(ctx context.Context) error {
	if sc.done {
		return fmt.Errorf("savepoint %s already finished", sc.name)
	}
	sc.done = true
	if _, err := sc.tx.exec(ctx, "RELEASE SAVEPOINT "+sc.name); err != nil {
		return fmt.Errorf("failed to release savepoint %s: %w", sc.name, err)
	}
	return nil
}

// Rollback undoes everything executed since the savepoint marker. The
// enclosing transaction stays usable.
func (sc *Scope) Rollback(ctx context.Context) error {
	if sc.done {
		return fmt.Errorf("savepoint %s already finished", sc.name)
	}
	sc.done = true
	if _, err := sc.tx.exec(ctx, "ROLLBACK TO SAVEPOINT "+sc.name); err != nil {
		return fmt.Errorf("failed to roll back to savepoint %s: %w", sc.name, err)
	}
	return nil
}

func (s *Session) exec(ctx context.Context, r runner, query string, args ...any) (sql.Result, error) {
	s.debugSQL(query, args)
	return r.ExecContext(ctx, query, args...)
}

func (s *Session) debugSQL(query string, args []any) {
	if !s.logSQL {
		return
	}
	s.logger.Debug("executing sql",
		slog.String("query", query),
		slog.Any("args", args),
	)
}
