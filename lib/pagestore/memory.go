// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pagestore

import (
	"bytes"
	"sync"

	"github.com/google/btree"
)

// memoryDegree is the B-tree branching factor. Page counts are modest
// (one entry per 2 MiB of stored content), so the exact value matters
// little.
const memoryDegree = 32

type memoryEntry struct {
	key  [KeySize]byte
	data []byte
}

func memoryLess(a, b memoryEntry) bool {
	return bytes.Compare(a.key[:], b.key[:]) < 0
}

// Memory is an in-memory page table ordered by Key. Safe for
// concurrent use.
type Memory struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[memoryEntry]
	size int64
}

// NewMemory creates an empty in-memory page table.
func NewMemory() *Memory {
	return &Memory{tree: btree.NewG(memoryDegree, memoryLess)}
}

func (m *Memory) Put(hash [HashSize]byte, index uint32, data []byte) error {
	entry := memoryEntry{key: Key(hash, index), data: bytes.Clone(data)}
	if entry.data == nil {
		entry.data = []byte{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if previous, replaced := m.tree.ReplaceOrInsert(entry); replaced {
		m.size -= int64(len(previous.data))
	}
	m.size += int64(len(entry.data))
	return nil
}

func (m *Memory) Get(hash [HashSize]byte, index uint32) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, found := m.tree.Get(memoryEntry{key: Key(hash, index)})
	if !found {
		return nil, false, nil
	}
	return entry.data, true, nil
}

func (m *Memory) Indexes(hash [HashSize]byte) ([]uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	indexes := []uint32{}
	m.tree.AscendGreaterOrEqual(memoryEntry{key: Key(hash, 0)}, func(entry memoryEntry) bool {
		entryHash, index, _ := ParseKey(entry.key[:])
		if entryHash != hash {
			return false
		}
		indexes = append(indexes, index)
		return true
	})
	return indexes, nil
}

func (m *Memory) Delete(hash [HashSize]byte, index uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if removed, found := m.tree.Delete(memoryEntry{key: Key(hash, index)}); found {
		m.size -= int64(len(removed.data))
	}
	return nil
}

// Len returns the number of stored pages.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}

// Bytes returns the total size of all stored pages.
func (m *Memory) Bytes() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *Memory) Close() error { return nil }
