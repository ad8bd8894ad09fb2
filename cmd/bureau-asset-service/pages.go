// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/bureau-foundation/assets/lib/config"
	"github.com/bureau-foundation/assets/lib/pagestore"
)

// openPages opens the configured page backend and wraps it with the
// configured page codec.
func openPages(cfg *config.Config, logger *slog.Logger) (pagestore.Store, error) {
	codec, err := pagestore.ParseCodec(cfg.Storage.Codec)
	if err != nil {
		return nil, err
	}

	var pages pagestore.Store
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		pages = pagestore.NewMemory()
	case config.BackendSQLite:
		pages, err = pagestore.OpenSQLite(pagestore.SQLiteConfig{
			Path:     filepath.Join(cfg.Paths.Data, "pages.db"),
			PoolSize: cfg.Storage.PoolSize,
			Logger:   logger,
		})
	case config.BackendBadger:
		pages, err = pagestore.OpenBadger(pagestore.BadgerConfig{
			Dir:        cfg.Paths.Data,
			SyncWrites: cfg.Storage.SyncWrites,
			Logger:     logger,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("page store opened",
		"backend", cfg.Storage.Backend,
		"codec", codec.String(),
		"data", cfg.Paths.Data,
	)
	if codec == pagestore.CodecNone {
		return pages, nil
	}
	return pagestore.Compressed(pages, codec), nil
}
