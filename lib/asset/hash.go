// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"encoding/hex"
	"fmt"

	sha256 "github.com/minio/sha256-simd"
	"github.com/zeebo/blake3"
)

// Hash is a 32-byte content digest. It is the identity of stored
// content: two buffers with equal hashes are treated as the same
// content everywhere in the store.
type Hash [32]byte

// String returns the lowercase hex encoding, the form used for ETags
// and listings.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ParseHash parses a 64-character hex string.
func ParseHash(hexString string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("parsing content hash: %w", err)
	}
	if len(decoded) != len(hash) {
		return hash, fmt.Errorf("content hash is %d bytes, want %d", len(decoded), len(hash))
	}
	copy(hash[:], decoded)
	return hash, nil
}

// HashAlgorithm names the digest the store computes over assembled
// uploads when the trust flag is off. Uploaders computing hashes for
// the trusted path must use the same algorithm.
type HashAlgorithm string

const (
	// SHA256 is the default and matches what browser and CLI
	// uploaders compute with stock tooling.
	SHA256 HashAlgorithm = "sha256"

	// BLAKE3 is several times faster on large buffers.
	BLAKE3 HashAlgorithm = "blake3"
)

// ParseHashAlgorithm validates an algorithm name. The empty string
// selects SHA256.
func ParseHashAlgorithm(name string) (HashAlgorithm, error) {
	switch HashAlgorithm(name) {
	case "", SHA256:
		return SHA256, nil
	case BLAKE3:
		return BLAKE3, nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q (want sha256 or blake3)", name)
	}
}

// Sum computes the digest of data.
func (a HashAlgorithm) Sum(data []byte) Hash {
	switch a {
	case BLAKE3:
		return Hash(blake3.Sum256(data))
	default:
		return Hash(sha256.Sum256(data))
	}
}
