// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"fmt"

	"github.com/bureau-foundation/assets/lib/assetmetrics"
	"github.com/bureau-foundation/assets/lib/pagestore"
)

// DefaultBucketSize is the maximum page size: 2 MiB.
const DefaultBucketSize = 2 * 1024 * 1024

// Content splits buffers into pages on write and reassembles byte
// ranges from pages on read. It never decides when content may be
// freed; Directory calls Delete once a hash loses its last path.
type Content struct {
	pages      pagestore.Store
	bucketSize uint64
	metrics    *assetmetrics.Metrics
}

// NewContent creates a content layer over pages. bucketSize must be
// positive.
func NewContent(pages pagestore.Store, bucketSize int, metrics *assetmetrics.Metrics) *Content {
	if bucketSize <= 0 {
		panic(fmt.Sprintf("asset.NewContent: bucket size %d must be positive", bucketSize))
	}
	return &Content{pages: pages, bucketSize: uint64(bucketSize), metrics: metrics}
}

// BucketSize returns the page size in bytes.
func (c *Content) BucketSize() uint64 {
	return c.bucketSize
}

// PageCount returns ⌈size/BucketSize⌉.
func (c *Content) PageCount(size uint64) uint32 {
	return uint32((size + c.bucketSize - 1) / c.bucketSize)
}

// Store writes buffer as ⌈len/BucketSize⌉ pages under hash. All pages
// are written before Store returns.
func (c *Content) Store(hash Hash, buffer []byte) error {
	size := uint64(len(buffer))
	for index := range c.PageCount(size) {
		start := uint64(index) * c.bucketSize
		end := min(start+c.bucketSize, size)
		if err := c.pages.Put(hash, index, buffer[start:end]); err != nil {
			return fmt.Errorf("storing %s: %w", hash, err)
		}
		c.metrics.PageWritten(end - start)
	}
	return nil
}

// Exists reports whether any page of hash is stored.
func (c *Content) Exists(hash Hash) (bool, error) {
	indexes, err := c.pages.Indexes(hash)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", hash, err)
	}
	return len(indexes) > 0, nil
}

// Slice returns bytes [offset, offset+length) of the content stored
// under hash, whose full length is totalSize. Only the pages that
// overlap the range are read.
func (c *Content) Slice(hash Hash, totalSize, offset, length uint64) ([]byte, error) {
	if offset > totalSize || length > totalSize-offset {
		return nil, fmt.Errorf("%w: [%d, %d+%d) exceeds size %d", ErrRange, offset, offset, length, totalSize)
	}

	result := make([]byte, length)
	index := uint32(offset / c.bucketSize)
	within := offset % c.bucketSize
	var cursor uint64
	for cursor < length {
		page, found, err := c.pages.Get(hash, index)
		if err != nil {
			return nil, fmt.Errorf("reading %s page %d: %w", hash, index, err)
		}
		if !found || within >= uint64(len(page)) {
			return nil, fmt.Errorf("%w: %s page %d", ErrMissingPage, hash, index)
		}
		cursor += uint64(copy(result[cursor:], page[within:]))
		index++
		within = 0
	}
	return result, nil
}

// Delete removes every page stored under hash.
func (c *Content) Delete(hash Hash) error {
	indexes, err := c.pages.Indexes(hash)
	if err != nil {
		return fmt.Errorf("listing pages of %s: %w", hash, err)
	}
	for _, index := range indexes {
		if err := c.pages.Delete(hash, index); err != nil {
			return fmt.Errorf("purging %s: %w", hash, err)
		}
	}
	c.metrics.PagesPurged(len(indexes))
	return nil
}
