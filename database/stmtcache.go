package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

var ErrClosed = errors.New("statement cache closed")

// StmtCache keeps one prepared statement per query string for the lifetime
// of the cache.
type StmtCache struct {
	db *sql.DB

	mu     sync.Mutex
	stmts  map[string]*sql.Stmt
	closed bool
}

func NewStmtCache(db *sql.DB) *StmtCache {
	return &StmtCache{db: db, stmts: make(map[string]*sql.Stmt)}
}

// Prepare returns the cached statement for query, preparing it on first use.
func (sc *StmtCache) Prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.closed {
		return nil, ErrClosed
	}
	if stmt, ok := sc.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := sc.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	sc.stmts[query] = stmt
	return stmt, nil
}

func (sc *StmtCache) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	stmt, err := sc.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.ExecContext(ctx, args...)
}

func (sc *StmtCache) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	stmt, err := sc.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.QueryContext(ctx, args...)
}

// Len returns the number of cached statements.
func (sc *StmtCache) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.stmts)
}

// Close closes every cached statement. The underlying db is left open.
func (sc *StmtCache) Close() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var errs []error
	for query, stmt := range sc.stmts {
		errs = append(errs, stmt.Close())
		delete(sc.stmts, query)
	}
	sc.closed = true
	return errors.Join(errs...)
}
