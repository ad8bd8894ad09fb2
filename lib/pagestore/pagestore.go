// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pagestore

import (
	"encoding/binary"
	"fmt"
)

// HashSize is the length of a content hash in bytes.
const HashSize = 32

// KeySize is the length of an encoded page key.
const KeySize = HashSize + 4

// Store is a page table. Implementations are safe for concurrent use.
//
// Absence is not an error: Get reports a missing page with found=false.
// Errors are reserved for backend failures (I/O, corruption).
type Store interface {
	// Put writes a page, replacing any existing page at the same key.
	// The store keeps its own copy of data.
	Put(hash [HashSize]byte, index uint32, data []byte) error

	// Get returns the page at (hash, index). The returned slice must
	// not be modified by the caller.
	Get(hash [HashSize]byte, index uint32) (data []byte, found bool, err error)

	// Indexes returns every page index stored for hash in ascending
	// order. Returns an empty slice when the hash has no pages.
	Indexes(hash [HashSize]byte) ([]uint32, error)

	// Delete removes a page. Deleting a missing page is a no-op.
	Delete(hash [HashSize]byte, index uint32) error

	// Close releases backend resources.
	Close() error
}

// Key encodes (hash, index) as hash bytes followed by the big-endian
// index. Big-endian keeps lexical key order equal to numeric index
// order within one hash.
func Key(hash [HashSize]byte, index uint32) [KeySize]byte {
	var key [KeySize]byte
	copy(key[:HashSize], hash[:])
	binary.BigEndian.PutUint32(key[HashSize:], index)
	return key
}

// ParseKey decodes a key produced by Key.
func ParseKey(key []byte) (hash [HashSize]byte, index uint32, err error) {
	if len(key) != KeySize {
		return hash, 0, fmt.Errorf("page key is %d bytes, want %d", len(key), KeySize)
	}
	copy(hash[:], key[:HashSize])
	return hash, binary.BigEndian.Uint32(key[HashSize:]), nil
}
