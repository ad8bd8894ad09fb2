// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pagestore

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v3"
)

// BadgerConfig configures a BadgerDB-backed page table.
type BadgerConfig struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps all data in memory. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every write. Off by default: pages are
	// content-addressed and the uploader can resend them.
	SyncWrites bool

	Logger *slog.Logger
}

// Badger stores pages in a BadgerDB LSM tree under Key.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (creating if necessary) a Badger page table.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	var options badger.Options
	if cfg.InMemory {
		options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, fmt.Errorf("badger page store: Dir is required")
		}
		options = badger.DefaultOptions(cfg.Dir)
	}

	options = options.
		WithSyncWrites(cfg.SyncWrites).
		// Pages are large values; keep them in the value log and
		// only keys in the LSM tree.
		WithValueThreshold(1 << 10).
		WithNumMemtables(2).
		WithBlockCacheSize(64 << 20).
		WithIndexCacheSize(32 << 20)

	if cfg.Logger != nil {
		options = options.WithLogger(badgerLogger{cfg.Logger})
	} else {
		options = options.WithLogger(nil)
	}

	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("opening badger page store: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Put(hash [HashSize]byte, index uint32, data []byte) error {
	key := Key(hash, index)
	value := make([]byte, len(data))
	copy(value, data)
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key[:], value)
	})
	if err != nil {
		return fmt.Errorf("writing page %d: %w", index, err)
	}
	return nil
}

func (b *Badger) Get(hash [HashSize]byte, index uint32) ([]byte, bool, error) {
	key := Key(hash, index)
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key[:])
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading page %d: %w", index, err)
	}
	return data, true, nil
}

func (b *Badger) Indexes(hash [HashSize]byte) ([]uint32, error) {
	prefix := hash[:]
	indexes := []uint32{}
	err := b.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = prefix

		iterator := txn.NewIterator(options)
		defer iterator.Close()

		for iterator.Seek(prefix); iterator.ValidForPrefix(prefix); iterator.Next() {
			_, index, err := ParseKey(iterator.Item().Key())
			if err != nil {
				return err
			}
			indexes = append(indexes, index)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	return indexes, nil
}

func (b *Badger) Delete(hash [HashSize]byte, index uint32) error {
	key := Key(hash, index)
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key[:])
	})
	if err != nil {
		return fmt.Errorf("deleting page %d: %w", index, err)
	}
	return nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger routes Badger's printf-style logging into slog. Info
// and debug output is demoted one level: Badger is chatty about
// compactions that are routine for a page table.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (l badgerLogger) Debugf(format string, args ...any) {}
