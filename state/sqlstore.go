package state

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/mattn/go-sqlite3"

	"github.com/TEENet-io/atomic-swap/database"
	"github.com/TEENet-io/atomic-swap/swap"
)

// SQLiteStore keeps swaps in the swap table of a sqlite database.
type SQLiteStore struct {
	db        *sql.DB
	ownsDB    bool
	stmtCache *database.StmtCache
}

// OpenSQLiteStore opens or creates the database file at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, ioError("open", err)
	}
	st, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	st.ownsDB = true
	return st, nil
}

// NewSQLiteStore creates the tables on db. The caller keeps ownership of db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(swapTable + swapStatusIndex); err != nil {
		return nil, ioError("create tables", err)
	}
	return &SQLiteStore{
		db:        db,
		stmtCache: database.NewStmtCache(db),
	}, nil
}

func (st *SQLiteStore) Save(ctx context.Context, info *swap.Info) error {
	record, err := encodeInfo(info)
	if err != nil {
		return ioError("encode", err)
	}

	query := `INSERT OR REPLACE INTO swap (id, status, hashLock, record, updatedAt) VALUES (?, ?, ?, ?, ?)`
	if _, err := st.stmtCache.Exec(ctx, query,
		info.ID, string(info.Status), info.HashLock.String(), record, info.UpdatedAt.Unix(),
	); err != nil {
		return ioError("save "+info.ID, err)
	}
	return nil
}

func (st *SQLiteStore) LoadAll(ctx context.Context) ([]*swap.Info, error) {
	query := `SELECT record FROM swap ORDER BY id`
	rows, err := st.stmtCache.Query(ctx, query)
	if err != nil {
		return nil, ioError("load", err)
	}
	defer rows.Close()

	var infos []*swap.Info
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, ioError("scan", err)
		}
		info, err := decodeInfo(record)
		if err != nil {
			return nil, ioError("decode", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, ioError("load", err)
	}
	return infos, nil
}

// CountByStatus returns the number of swaps in status.
func (st *SQLiteStore) CountByStatus(ctx context.Context, status swap.Status) (int, error) {
	stmt, err := st.stmtCache.Prepare(ctx, `SELECT COUNT(*) FROM swap WHERE status = ?`)
	if err != nil {
		return 0, ioError("count", err)
	}
	var n int
	if err := stmt.QueryRowContext(ctx, string(status)).Scan(&n); err != nil {
		return 0, ioError("count", err)
	}
	return n, nil
}

func (st *SQLiteStore) Close() error {
	err := st.stmtCache.Close()
	if st.ownsDB {
		err = errors.Join(err, st.db.Close())
	}
	return err
}
