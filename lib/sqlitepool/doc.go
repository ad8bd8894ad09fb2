// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides a SQLite connection pool with the asset
// store's standard pragmas.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Callers either
// [Pool.Take] and [Pool.Put] a connection explicitly, or use
// [Pool.With] and [Pool.WithTransaction] which handle borrowing and,
// for the latter, commit/rollback.
//
// # Pragmas
//
// Every connection is initialized with:
//
//   - journal_mode=WAL: readers never block the single writer.
//   - synchronous=NORMAL: survives process crashes without an fsync
//     per commit. Page data is content-addressed and re-uploadable, so
//     losing the last transaction on power failure is acceptable.
//   - busy_timeout=5000: wait for the write lock instead of failing.
//   - cache_size=-16384: 16 MB page cache per connection. Asset pages
//     are up to 2 MiB each, larger than the usual row.
//   - mmap_size=268435456: 256 MB memory-mapped reads.
//   - temp_store=MEMORY.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   filepath.Join(dir, "pages.db"),
//	    Schema: pageSchema,
//	    Logger: logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	err = pool.WithTransaction(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, "INSERT ...", &sqlitex.ExecOptions{...})
//	})
package sqlitepool
