// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the asset store's standard CBOR encoding.
//
// CBOR is used for every internal byte format: the service socket
// protocol and on-disk state snapshots. The encoder uses Core Deterministic Encoding (RFC
// 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes.
//
// For buffer-oriented operations (snapshots):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (sockets):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Snapshots are additionally zstd-compressed with MarshalCompressed
// and UnmarshalCompressed.
//
// Types shared with the CLI's JSON output use `json` struct tags;
// fxamacker/cbor falls back to them when no `cbor` tag is present.
// Purely internal types use `cbor` tags.
package codec
