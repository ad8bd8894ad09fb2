// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package asset implements a deduplicating asset store with chunked
// uploads and size-limited delivery.
//
// Uploads arrive as independently indexed chunks. The Assembler keeps
// one in-flight buffer per path and commits it once every chunk is
// present. Committed content is identified by its hash and split into
// fixed-size pages (Content) held in a pagestore.Store. The Directory
// maps paths to hashes and keeps a reverse index from hash to paths;
// content pages are deleted exactly when their hash loses its last
// path.
//
// Reads go through Delivery, which answers HTTP-shaped requests under
// a per-response byte ceiling. Bodies larger than the ceiling are
// truncated and paired with a ContinuationToken that the caller echoes
// back to Continue for the next window. Tokens carry all resume state;
// the store keeps none.
//
// Store ties the pieces together behind a single-writer lock and adds
// versioned state snapshots for durable page backends.
package asset
