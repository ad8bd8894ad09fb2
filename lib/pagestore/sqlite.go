// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pagestore

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/assets/lib/sqlitepool"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pages (
	hash BLOB    NOT NULL,
	idx  INTEGER NOT NULL,
	data BLOB    NOT NULL,
	PRIMARY KEY (hash, idx)
) WITHOUT ROWID;
`

// SQLiteConfig configures a SQLite-backed page table.
type SQLiteConfig struct {
	// Path is the database file. The parent directory must exist.
	Path string

	// PoolSize is the connection pool size. Defaults to 4.
	PoolSize int

	Logger *slog.Logger
}

// SQLite stores pages in a single WITHOUT ROWID table keyed by
// (hash, idx). The composite primary key gives the same hash-prefixed
// ordering as Key.
type SQLite struct {
	pool *sqlitepool.Pool
}

// OpenSQLite opens (creating if necessary) a SQLite page table.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Schema:   sqliteSchema,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite page store: %w", err)
	}
	return &SQLite{pool: pool}, nil
}

func (s *SQLite) Put(hash [HashSize]byte, index uint32, data []byte) error {
	err := s.pool.With(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"INSERT OR REPLACE INTO pages (hash, idx, data) VALUES (?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{hash[:], int64(index), data}})
	})
	if err != nil {
		return fmt.Errorf("writing page %d: %w", index, err)
	}
	return nil
}

func (s *SQLite) Get(hash [HashSize]byte, index uint32) ([]byte, bool, error) {
	var (
		data  []byte
		found bool
	)
	err := s.pool.With(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT data FROM pages WHERE hash = ? AND idx = ?",
			&sqlitex.ExecOptions{
				Args: []any{hash[:], int64(index)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					data = make([]byte, stmt.ColumnLen(0))
					stmt.ColumnBytes(0, data)
					found = true
					return nil
				},
			})
	})
	if err != nil {
		return nil, false, fmt.Errorf("reading page %d: %w", index, err)
	}
	return data, found, nil
}

func (s *SQLite) Indexes(hash [HashSize]byte) ([]uint32, error) {
	indexes := []uint32{}
	err := s.pool.With(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT idx FROM pages WHERE hash = ? ORDER BY idx",
			&sqlitex.ExecOptions{
				Args: []any{hash[:]},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					indexes = append(indexes, uint32(stmt.ColumnInt64(0)))
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	return indexes, nil
}

func (s *SQLite) Delete(hash [HashSize]byte, index uint32) error {
	err := s.pool.With(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"DELETE FROM pages WHERE hash = ? AND idx = ?",
			&sqlitex.ExecOptions{Args: []any{hash[:], int64(index)}})
	})
	if err != nil {
		return fmt.Errorf("deleting page %d: %w", index, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.pool.Close()
}
