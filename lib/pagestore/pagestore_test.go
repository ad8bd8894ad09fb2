// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pagestore

import (
	"bytes"
	"crypto/rand"
	"path/filepath"
	"slices"
	"testing"
)

// backends returns a constructor per implementation so that every
// backend runs the same contract tests.
func backends() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemory() },
		"sqlite": func(t *testing.T) Store {
			store, err := OpenSQLite(SQLiteConfig{Path: filepath.Join(t.TempDir(), "pages.db")})
			if err != nil {
				t.Fatal(err)
			}
			return store
		},
		"badger": func(t *testing.T) Store {
			store, err := OpenBadger(BadgerConfig{InMemory: true})
			if err != nil {
				t.Fatal(err)
			}
			return store
		},
		"memory+lz4":  func(t *testing.T) Store { return Compressed(NewMemory(), CodecLZ4) },
		"memory+zstd": func(t *testing.T) Store { return Compressed(NewMemory(), CodecZstd) },
	}
}

func testHash(seed byte) [HashSize]byte {
	var hash [HashSize]byte
	for i := range hash {
		hash[i] = seed
	}
	return hash
}

func TestStoreContract(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			defer store.Close()

			hashA := testHash(0xaa)
			hashB := testHash(0xab)

			// Mixed content: compressible text and random bytes.
			textPage := bytes.Repeat([]byte("<html>asset</html>"), 200)
			randomPage := make([]byte, 4096)
			rand.Read(randomPage)

			if _, found, err := store.Get(hashA, 0); err != nil || found {
				t.Fatalf("Get on empty store: found=%v err=%v", found, err)
			}

			for index, page := range [][]byte{textPage, randomPage, {1, 2, 3}} {
				if err := store.Put(hashA, uint32(index), page); err != nil {
					t.Fatalf("Put(%d): %v", index, err)
				}
			}
			if err := store.Put(hashB, 0, []byte("other")); err != nil {
				t.Fatal(err)
			}

			for index, want := range [][]byte{textPage, randomPage, {1, 2, 3}} {
				got, found, err := store.Get(hashA, uint32(index))
				if err != nil || !found {
					t.Fatalf("Get(%d): found=%v err=%v", index, found, err)
				}
				if !bytes.Equal(got, want) {
					t.Errorf("Get(%d) returned different bytes (len %d, want %d)", index, len(got), len(want))
				}
			}

			indexes, err := store.Indexes(hashA)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(indexes, []uint32{0, 1, 2}) {
				t.Errorf("Indexes(hashA) = %v, want [0 1 2]", indexes)
			}

			if err := store.Delete(hashA, 1); err != nil {
				t.Fatal(err)
			}
			if err := store.Delete(hashA, 1); err != nil {
				t.Fatalf("second Delete should be a no-op: %v", err)
			}
			indexes, err = store.Indexes(hashA)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(indexes, []uint32{0, 2}) {
				t.Errorf("Indexes after delete = %v, want [0 2]", indexes)
			}

			// The neighboring hash is untouched by prefix operations.
			indexes, err = store.Indexes(hashB)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(indexes, []uint32{0}) {
				t.Errorf("Indexes(hashB) = %v, want [0]", indexes)
			}

			empty, err := store.Indexes(testHash(0x01))
			if err != nil {
				t.Fatal(err)
			}
			if len(empty) != 0 {
				t.Errorf("Indexes(unknown) = %v, want empty", empty)
			}
		})
	}
}

func TestStoreIndexOrderingAcrossByteBoundary(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			defer store.Close()

			hash := testHash(0x42)
			// 255 and 256 differ in the second-lowest byte; big-endian
			// keys must still list them numerically.
			for _, index := range []uint32{256, 0, 255, 1} {
				if err := store.Put(hash, index, []byte{byte(index)}); err != nil {
					t.Fatal(err)
				}
			}
			indexes, err := store.Indexes(hash)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(indexes, []uint32{0, 1, 255, 256}) {
				t.Errorf("Indexes = %v, want [0 1 255 256]", indexes)
			}
		})
	}
}

func TestPutCopiesInput(t *testing.T) {
	store := NewMemory()
	hash := testHash(7)
	data := []byte("original")
	if err := store.Put(hash, 0, data); err != nil {
		t.Fatal(err)
	}
	copy(data, "mutated!")

	got, _, _ := store.Get(hash, 0)
	if string(got) != "original" {
		t.Errorf("stored page changed after caller mutation: %q", got)
	}
}

func TestMemoryAccounting(t *testing.T) {
	store := NewMemory()
	hash := testHash(9)
	store.Put(hash, 0, make([]byte, 100))
	store.Put(hash, 1, make([]byte, 50))
	store.Put(hash, 1, make([]byte, 20))

	if store.Len() != 2 {
		t.Errorf("Len = %d, want 2", store.Len())
	}
	if store.Bytes() != 120 {
		t.Errorf("Bytes = %d, want 120", store.Bytes())
	}
	store.Delete(hash, 0)
	if store.Bytes() != 20 {
		t.Errorf("Bytes after delete = %d, want 20", store.Bytes())
	}
}

func TestKeyRoundtrip(t *testing.T) {
	hash := testHash(0x5c)
	key := Key(hash, 0x01020304)
	if !bytes.Equal(key[HashSize:], []byte{1, 2, 3, 4}) {
		t.Errorf("index bytes = %x, want big-endian 01020304", key[HashSize:])
	}
	parsedHash, index, err := ParseKey(key[:])
	if err != nil {
		t.Fatal(err)
	}
	if parsedHash != hash || index != 0x01020304 {
		t.Errorf("ParseKey = (%x, %d)", parsedHash, index)
	}
	if _, _, err := ParseKey(key[:10]); err == nil {
		t.Error("expected error for short key")
	}
}

func TestCompressedFallsBackForIncompressible(t *testing.T) {
	inner := NewMemory()
	store := Compressed(inner, CodecZstd)
	hash := testHash(3)

	random := make([]byte, 2048)
	rand.Read(random)
	if err := store.Put(hash, 0, random); err != nil {
		t.Fatal(err)
	}
	raw, _, _ := inner.Get(hash, 0)
	if Codec(raw[0]) != CodecNone {
		t.Errorf("random page stored with codec %s, want none", Codec(raw[0]))
	}

	text := bytes.Repeat([]byte("compressible "), 500)
	if err := store.Put(hash, 1, text); err != nil {
		t.Fatal(err)
	}
	raw, _, _ = inner.Get(hash, 1)
	if Codec(raw[0]) != CodecZstd {
		t.Errorf("text page stored with codec %s, want zstd", Codec(raw[0]))
	}
	if len(raw) >= len(text) {
		t.Errorf("stored text page is %d bytes, not smaller than %d", len(raw), len(text))
	}
}

func TestDecodePageRejectsCorruption(t *testing.T) {
	for _, stored := range [][]byte{
		{},
		{byte(CodecNone)},
		{byte(CodecNone), 5, 'a'},
		{99, 1, 'a'},
	} {
		if _, err := decodePage(stored); err == nil {
			t.Errorf("decodePage(%x): expected error", stored)
		}
	}
}

func TestParseCodec(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		codec, err := ParseCodec(name)
		if err != nil {
			t.Fatalf("ParseCodec(%q): %v", name, err)
		}
		if codec.String() != name {
			t.Errorf("ParseCodec(%q).String() = %q", name, codec.String())
		}
	}
	if _, err := ParseCodec("brotli"); err == nil {
		t.Error("expected error for unknown codec")
	}
}
