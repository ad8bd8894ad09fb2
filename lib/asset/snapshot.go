// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/assets/lib/codec"
)

// Snapshot versions. Every version ever written stays decodable;
// DecodeSnapshot upgrades older versions one step at a time to the
// current one.
const (
	snapshotV1 = 1
	snapshotV2 = 2

	currentSnapshotVersion = snapshotV2
)

// snapshotEnvelope tags a payload with its version so the payload
// type is known before decoding it.
type snapshotEnvelope struct {
	Version int              `json:"version"`
	Payload codec.RawMessage `json:"payload"`
}

// SnapshotV1 is the first persisted layout: files and the trust flag.
type SnapshotV1 struct {
	Files   []File `json:"files"`
	Trusted bool   `json:"trusted"`
}

// SnapshotV2 adds in-flight uploads and the hash algorithm the files
// were hashed with.
type SnapshotV2 struct {
	Files         []File          `json:"files"`
	Trusted       bool            `json:"trusted"`
	Uploads       []PendingUpload `json:"uploads,omitempty"`
	HashAlgorithm HashAlgorithm   `json:"hash_algorithm"`
}

// upgradeV1ToV2 carries a V1 snapshot forward. V1 stores only ever
// hashed with SHA-256 and had no persisted uploads.
func upgradeV1ToV2(old SnapshotV1) SnapshotV2 {
	return SnapshotV2{
		Files:         old.Files,
		Trusted:       old.Trusted,
		HashAlgorithm: SHA256,
	}
}

// EncodeSnapshot encodes state as the current snapshot version,
// CBOR-encoded and zstd-compressed.
func EncodeSnapshot(state SnapshotV2) ([]byte, error) {
	payload, err := codec.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot payload: %w", err)
	}
	return codec.MarshalCompressed(snapshotEnvelope{
		Version: currentSnapshotVersion,
		Payload: payload,
	})
}

// DecodeSnapshot decodes any known snapshot version and upgrades it
// to the current one.
func DecodeSnapshot(data []byte) (SnapshotV2, error) {
	var envelope snapshotEnvelope
	if err := codec.UnmarshalCompressed(data, &envelope); err != nil {
		return SnapshotV2{}, fmt.Errorf("decoding snapshot envelope: %w", err)
	}

	switch envelope.Version {
	case snapshotV1:
		var state SnapshotV1
		if err := codec.Unmarshal(envelope.Payload, &state); err != nil {
			return SnapshotV2{}, fmt.Errorf("decoding v1 snapshot: %w", err)
		}
		return upgradeV1ToV2(state), nil
	case snapshotV2:
		var state SnapshotV2
		if err := codec.Unmarshal(envelope.Payload, &state); err != nil {
			return SnapshotV2{}, fmt.Errorf("decoding v2 snapshot: %w", err)
		}
		return state, nil
	default:
		return SnapshotV2{}, fmt.Errorf("unknown snapshot version %d", envelope.Version)
	}
}

// SnapshotScope selects how much state a snapshot carries.
type SnapshotScope int

const (
	// SnapshotFiles captures the directory, trust flag and hash
	// algorithm. Its cost is independent of in-flight upload sizes.
	SnapshotFiles SnapshotScope = iota

	// SnapshotAll additionally captures every in-flight upload,
	// including its full declared-size buffer.
	SnapshotAll
)

// Snapshot captures the store's state under scope. Pages are not
// included: a snapshot is only meaningful alongside the durable page
// store it was taken from. The result shares no memory with the store.
func (s *Store) Snapshot(scope SnapshotScope) SnapshotV2 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := SnapshotV2{
		Files:         s.directory.List(),
		Trusted:       s.assembler.Trusted(),
		HashAlgorithm: s.algorithm,
	}
	if scope == SnapshotAll {
		state.Uploads = s.assembler.pendingUploads()
	}
	return state
}

// Restore replaces the store's directory, uploads and trust flag with
// state. Pages are assumed to already be present in the page store.
func (s *Store) Restore(state SnapshotV2) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state.HashAlgorithm != "" && state.HashAlgorithm != s.algorithm {
		s.logger.Warn("snapshot hash algorithm differs from configured algorithm",
			"snapshot", state.HashAlgorithm,
			"configured", s.algorithm,
		)
	}
	if err := s.directory.restore(state.Files); err != nil {
		return err
	}
	s.assembler.restore(state.Uploads)
	s.assembler.SetTrusted(state.Trusted)

	s.logger.Info("state restored",
		"files", s.directory.Len(),
		"uploads", len(s.assembler.pending),
		"trusted", state.Trusted,
	)
	return nil
}

// SaveSnapshot writes the store's snapshot under scope to path
// atomically.
func (s *Store) SaveSnapshot(path string, scope SnapshotScope) error {
	data, err := EncodeSnapshot(s.Snapshot(scope))
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// LoadSnapshot restores the store from the snapshot file at path. A
// missing file is not an error and leaves the store empty; found
// reports whether a snapshot was read.
func (s *Store) LoadSnapshot(path string) (found bool, err error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading snapshot: %w", err)
	}
	state, err := DecodeSnapshot(data)
	if err != nil {
		return false, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return true, s.Restore(state)
}

func writeFileAtomic(path string, data []byte) error {
	temp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary snapshot: %w", err)
	}
	tempPath := temp.Name()
	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := temp.Sync(); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("installing snapshot: %w", err)
	}
	return nil
}
