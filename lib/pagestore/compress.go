// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pagestore

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies a page compression algorithm. The value is stored as
// the first byte of every compressed page, so these are on-disk
// constants.
type Codec uint8

const (
	// CodecNone stores the page bytes unchanged after the tag.
	CodecNone Codec = 0

	// CodecLZ4 is LZ4 block compression. Fast, modest ratio.
	CodecLZ4 Codec = 1

	// CodecZstd is zstd at the default level. Better ratio for text
	// assets (HTML, JS, CSS, JSON).
	CodecZstd Codec = 2
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCodec parses a codec name as accepted in configuration.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "none":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZstd, nil
	default:
		return 0, fmt.Errorf("unknown page codec %q", name)
	}
}

var (
	pageZstdEncoder *zstd.Encoder
	pageZstdDecoder *zstd.Decoder
)

func init() {
	var err error
	pageZstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("pagestore: zstd encoder initialization failed: " + err.Error())
	}
	pageZstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("pagestore: zstd decoder initialization failed: " + err.Error())
	}
}

// Compressed wraps inner so that pages are compressed on Put and
// decompressed on Get. Each stored value is laid out as:
//
//	[1 byte codec][uvarint uncompressed length][payload]
//
// Pages that do not shrink under the configured codec are stored with
// CodecNone, so reading never depends on the writer's configuration.
func Compressed(inner Store, codec Codec) Store {
	return &compressed{inner: inner, codec: codec}
}

type compressed struct {
	inner Store
	codec Codec
}

func (c *compressed) Put(hash [HashSize]byte, index uint32, data []byte) error {
	encoded, err := encodePage(data, c.codec)
	if err != nil {
		return fmt.Errorf("compressing page %d: %w", index, err)
	}
	return c.inner.Put(hash, index, encoded)
}

func (c *compressed) Get(hash [HashSize]byte, index uint32) ([]byte, bool, error) {
	stored, found, err := c.inner.Get(hash, index)
	if err != nil || !found {
		return nil, found, err
	}
	data, err := decodePage(stored)
	if err != nil {
		return nil, false, fmt.Errorf("decompressing page %d: %w", index, err)
	}
	return data, true, nil
}

func (c *compressed) Indexes(hash [HashSize]byte) ([]uint32, error) {
	return c.inner.Indexes(hash)
}

func (c *compressed) Delete(hash [HashSize]byte, index uint32) error {
	return c.inner.Delete(hash, index)
}

func (c *compressed) Close() error {
	return c.inner.Close()
}

func encodePage(data []byte, codec Codec) ([]byte, error) {
	header := make([]byte, 1, 1+binary.MaxVarintLen64)
	header = binary.AppendUvarint(header, uint64(len(data)))

	var payload []byte
	switch codec {
	case CodecNone:
	case CodecLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		// Zero means incompressible.
		if written > 0 && written < len(data) {
			payload = destination[:written]
		}
	case CodecZstd:
		encoded := pageZstdEncoder.EncodeAll(data, nil)
		if len(encoded) < len(data) {
			payload = encoded
		}
	default:
		return nil, fmt.Errorf("unsupported codec %s", codec)
	}

	if payload == nil {
		header[0] = byte(CodecNone)
		return append(header, data...), nil
	}
	header[0] = byte(codec)
	return append(header, payload...), nil
}

func decodePage(stored []byte) ([]byte, error) {
	if len(stored) < 2 {
		return nil, fmt.Errorf("stored page is %d bytes, too short for header", len(stored))
	}
	codec := Codec(stored[0])
	size, headerLength := binary.Uvarint(stored[1:])
	if headerLength <= 0 {
		return nil, fmt.Errorf("invalid page length header")
	}
	payload := stored[1+headerLength:]

	switch codec {
	case CodecNone:
		if uint64(len(payload)) != size {
			return nil, fmt.Errorf("page is %d bytes, header says %d", len(payload), size)
		}
		return payload, nil
	case CodecLZ4:
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(payload, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		if uint64(read) != size {
			return nil, fmt.Errorf("lz4: got %d bytes, expected %d", read, size)
		}
		return destination, nil
	case CodecZstd:
		result, err := pageZstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		if uint64(len(result)) != size {
			return nil, fmt.Errorf("zstd: got %d bytes, expected %d", len(result), size)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unknown codec tag %d", stored[0])
	}
}
