// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-asset-service stores path-addressed static assets and serves
// them over a Unix socket and an optional HTTP gateway.
//
// Uploads arrive as indexed chunks over the CBOR socket protocol
// (lib/service). Completed uploads are hashed, deduplicated and
// written to the configured page store (memory, SQLite or Badger,
// optionally compressed). The directory of paths and any partial
// uploads are snapshotted to disk after every mutating action so a
// restart with a durable page store resumes where it left off.
//
// Reads go through the delivery engine: the "http-request" and
// "http-streaming" socket actions expose Resolve and Continue
// directly, and the HTTP gateway follows continuation tokens itself
// to stream complete responses to ordinary HTTP clients.
//
// Mutating actions are authorized against the peer uid reported by
// SO_PEERCRED using the writer and admin lists from the configuration.
// Prometheus metrics are served at /metrics on the gateway address.
package main
