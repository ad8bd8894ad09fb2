// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pagestore implements the leaf storage table of the asset
// store: (content hash, page index) → page bytes.
//
// A page is at most one bucket (2 MiB by default) of a stored buffer;
// the bucket size is owned by the content layer in lib/asset, not by
// this package. Pages are immutable once written and are removed only
// when the content layer garbage-collects an unreferenced hash.
//
// Keys are hash-prefixed: the 32 hash bytes followed by the big-endian
// page index ([Key]). Every page of one hash is therefore contiguous in
// any ordered key space, and [Store.Indexes] is a single prefix scan.
//
// Three backends implement [Store]:
//
//   - [NewMemory]: an ordered in-memory B-tree. Used by tests and by
//     deployments that rebuild content from uploads on restart.
//   - [OpenSQLite]: one WITHOUT ROWID table in a WAL-mode database.
//   - [OpenBadger]: a BadgerDB LSM tree, suited to large page volumes.
//
// [Compressed] wraps any backend with transparent per-page LZ4 or zstd
// compression.
package pagestore
