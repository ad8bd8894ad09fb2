// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bureau-foundation/assets/lib/clock"
)

// Header is one custom response header stored with a file. Order is
// preserved as uploaded.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// File is the metadata stored for one path.
type File struct {
	Path       string    `json:"path"`
	Hash       Hash      `json:"hash"`
	Size       uint64    `json:"size"`
	Headers    []Header  `json:"headers,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Directory maps paths to files and keeps the reverse index from
// content hash to the set of referencing paths. A hash has pages in
// Content if and only if its path set is non-empty: Directory is the
// only caller of Content.Delete.
//
// Directory is not safe for concurrent use. Store serializes writers.
type Directory struct {
	content *Content
	clock   clock.Clock

	files   map[string]*File
	reverse map[Hash]map[string]struct{}
}

// NewDirectory creates an empty directory over content.
func NewDirectory(content *Content, clk clock.Clock) *Directory {
	return &Directory{
		content: content,
		clock:   clk,
		files:   make(map[string]*File),
		reverse: make(map[Hash]map[string]struct{}),
	}
}

// Put creates or replaces the file at path. An existing file keeps its
// CreatedAt. If path previously referenced a different hash and was
// that hash's last reference, the old pages are purged.
func (d *Directory) Put(path string, headers []Header, hash Hash, size uint64) error {
	return d.put(path, headers, hash, size, true)
}

// Replace binds path to hash as a new file: both timestamps are set to
// now even when path already existed. The new hash is linked before
// the old one is released, so replacing a file with identical content
// keeps its pages.
func (d *Directory) Replace(path string, headers []Header, hash Hash, size uint64) error {
	return d.put(path, headers, hash, size, false)
}

func (d *Directory) put(path string, headers []Header, hash Hash, size uint64, keepCreated bool) error {
	now := d.clock.Now()
	file := &File{
		Path:       path,
		Hash:       hash,
		Size:       size,
		Headers:    slices.Clone(headers),
		CreatedAt:  now,
		ModifiedAt: now,
	}

	previous, exists := d.files[path]
	if exists && keepCreated {
		file.CreatedAt = previous.CreatedAt
	}
	d.files[path] = file
	d.link(hash, path)

	if exists && previous.Hash != hash {
		return d.unlink(previous.Hash, path)
	}
	return nil
}

// Remove deletes the file at path and reports whether one existed.
func (d *Directory) Remove(path string) (bool, error) {
	previous, exists := d.files[path]
	if !exists {
		return false, nil
	}
	delete(d.files, path)
	return true, d.unlink(previous.Hash, path)
}

// Get returns a copy of the file at path.
func (d *Directory) Get(path string) (File, bool) {
	file, exists := d.files[path]
	if !exists {
		return File{}, false
	}
	return copyFile(file), true
}

// List returns copies of all files sorted by path.
func (d *Directory) List() []File {
	files := make([]File, 0, len(d.files))
	for _, file := range d.files {
		files = append(files, copyFile(file))
	}
	slices.SortFunc(files, func(a, b File) int {
		return strings.Compare(a.Path, b.Path)
	})
	return files
}

// Len returns the number of files.
func (d *Directory) Len() int {
	return len(d.files)
}

// Referenced returns the number of paths referencing hash.
func (d *Directory) Referenced(hash Hash) int {
	return len(d.reverse[hash])
}

// Hashes returns the number of distinct hashes referenced.
func (d *Directory) Hashes() int {
	return len(d.reverse)
}

// AnyPathFor returns one file referencing hash. Which one is
// unspecified; callers use it to read properties assumed identical
// across every file sharing a hash, such as the size.
func (d *Directory) AnyPathFor(hash Hash) (File, bool) {
	for path := range d.reverse[hash] {
		return copyFile(d.files[path]), true
	}
	return File{}, false
}

// restore replaces the directory contents with files, rebuilding the
// reverse index. Pages are not touched.
func (d *Directory) restore(files []File) error {
	d.files = make(map[string]*File, len(files))
	d.reverse = make(map[Hash]map[string]struct{})
	for i := range files {
		file := copyFile(&files[i])
		if _, duplicate := d.files[file.Path]; duplicate {
			return fmt.Errorf("restoring directory: duplicate path %q", file.Path)
		}
		d.files[file.Path] = &file
		d.link(file.Hash, file.Path)
	}
	return nil
}

func (d *Directory) link(hash Hash, path string) {
	paths, exists := d.reverse[hash]
	if !exists {
		paths = make(map[string]struct{})
		d.reverse[hash] = paths
	}
	paths[path] = struct{}{}
}

func (d *Directory) unlink(hash Hash, path string) error {
	paths := d.reverse[hash]
	delete(paths, path)
	if len(paths) > 0 {
		return nil
	}
	delete(d.reverse, hash)
	if err := d.content.Delete(hash); err != nil {
		return fmt.Errorf("collecting %s after %s lost it: %w", hash, path, err)
	}
	return nil
}

func copyFile(file *File) File {
	copied := *file
	copied.Headers = slices.Clone(file.Headers)
	return copied
}
