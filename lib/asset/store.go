// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/assets/lib/assetmetrics"
	"github.com/bureau-foundation/assets/lib/clock"
	"github.com/bureau-foundation/assets/lib/pagestore"
)

// Config configures a Store. Zero values select defaults, except
// Pages which is required.
type Config struct {
	// Pages holds content pages. The store takes ownership and closes
	// it in Close.
	Pages pagestore.Store

	// BucketSize is the page size in bytes. Default
	// DefaultBucketSize.
	BucketSize int

	// MaxResponseBytes caps the body of each Resolve and Continue.
	// Default DefaultMaxResponseBytes.
	MaxResponseBytes int

	// HashAlgorithm hashes assembled uploads. Default SHA256.
	HashAlgorithm HashAlgorithm

	// Trusted is the initial trust flag.
	Trusted bool

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *assetmetrics.Metrics
}

// Store is the asset store: chunked upload assembly, deduplicated
// paged content, the path directory and size-limited delivery.
//
// Mutating operations hold an exclusive lock for their whole run;
// reads share a read lock. A read never observes a half-applied write.
type Store struct {
	mu sync.RWMutex

	pages     pagestore.Store
	content   *Content
	directory *Directory
	assembler *Assembler
	delivery  *Delivery

	algorithm        HashAlgorithm
	maxResponseBytes int
	logger           *slog.Logger
}

// New creates a store from config.
func New(config Config) (*Store, error) {
	if config.Pages == nil {
		return nil, errors.New("asset.New: Pages is required")
	}
	if config.BucketSize < 0 {
		return nil, fmt.Errorf("asset.New: bucket size %d is negative", config.BucketSize)
	}
	if config.MaxResponseBytes < 0 {
		return nil, fmt.Errorf("asset.New: max response bytes %d is negative", config.MaxResponseBytes)
	}
	if config.BucketSize == 0 {
		config.BucketSize = DefaultBucketSize
	}
	if config.MaxResponseBytes == 0 {
		config.MaxResponseBytes = DefaultMaxResponseBytes
	}
	algorithm, err := ParseHashAlgorithm(string(config.HashAlgorithm))
	if err != nil {
		return nil, fmt.Errorf("asset.New: %w", err)
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	content := NewContent(config.Pages, config.BucketSize, config.Metrics)
	directory := NewDirectory(content, config.Clock)
	assembler := NewAssembler(content, directory, algorithm, config.Metrics, config.Logger)
	assembler.SetTrusted(config.Trusted)

	return &Store{
		pages:            config.Pages,
		content:          content,
		directory:        directory,
		assembler:        assembler,
		delivery:         NewDelivery(content, directory, config.MaxResponseBytes, config.Metrics, config.Logger),
		algorithm:        algorithm,
		maxResponseBytes: config.MaxResponseBytes,
		logger:           config.Logger,
	}, nil
}

// Upload applies chunks in order. Elements may target different
// paths. The first element that fails stops the batch; elements
// before it remain applied.
func (s *Store) Upload(args []UploadArg) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range args {
		if err := s.assembler.PutChunk(args[i]); err != nil {
			return fmt.Errorf("upload element %d (%s): %w", i, args[i].Path, err)
		}
	}
	return nil
}

// Download returns the whole content of path.
func (s *Store) Download(path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, exists := s.directory.Get(path)
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return s.content.Slice(file.Hash, file.Size, 0, file.Size)
}

// DownloadRange returns size bytes of path starting at offset. No
// response ceiling applies.
func (s *Store) DownloadRange(path string, offset, size uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, exists := s.directory.Get(path)
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return s.content.Slice(file.Hash, file.Size, offset, size)
}

// Delete removes each path's file and any in-flight upload for it.
// Paths with neither are skipped.
func (s *Store) Delete(paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range paths {
		cancelled := s.assembler.Cancel(path)
		removed, err := s.directory.Remove(path)
		if err != nil {
			return fmt.Errorf("deleting %s: %w", path, err)
		}
		if cancelled || removed {
			s.logger.Info("asset deleted", "path", path, "file", removed, "upload", cancelled)
		}
	}
	return nil
}

// FileInfo is the listing form of a File.
type FileInfo struct {
	Path       string    `json:"path"`
	Size       uint64    `json:"size"`
	Headers    []Header  `json:"headers,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	Hash       string    `json:"hash"`
}

// List returns every file sorted by path.
func (s *Store) List() []FileInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := s.directory.List()
	infos := make([]FileInfo, len(files))
	for i, file := range files {
		infos[i] = FileInfo{
			Path:       file.Path,
			Size:       file.Size,
			Headers:    file.Headers,
			CreatedAt:  file.CreatedAt,
			ModifiedAt: file.ModifiedAt,
			Hash:       file.Hash.String(),
		}
	}
	return infos
}

// SetTrusted sets the trust flag. Content already stored is not
// rehashed.
func (s *Store) SetTrusted(trusted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.assembler.Trusted() != trusted {
		s.logger.Info("trust flag changed", "trusted", trusted)
	}
	s.assembler.SetTrusted(trusted)
}

// Trusted returns the trust flag.
func (s *Store) Trusted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assembler.Trusted()
}

// Resolve answers an HTTP-shaped read request. See Delivery.Resolve.
func (s *Store) Resolve(request Request) Response {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.delivery.Resolve(request)
}

// Continue serves the next window of a paginated read. See
// Delivery.Continue.
func (s *Store) Continue(token ContinuationToken) StreamingResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.delivery.Continue(token)
}

// Uploads lists in-flight uploads sorted by path.
func (s *Store) Uploads() []UploadStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assembler.InFlight()
}

// Stats summarizes the store.
type Stats struct {
	Files            int           `json:"files"`
	Hashes           int           `json:"hashes"`
	Uploads          int           `json:"uploads"`
	Trusted          bool          `json:"trusted"`
	HashAlgorithm    HashAlgorithm `json:"hash_algorithm"`
	BucketSize       uint64        `json:"bucket_size"`
	MaxResponseBytes int           `json:"max_response_bytes"`
}

// Stats returns current counts and settings.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Files:            s.directory.Len(),
		Hashes:           s.directory.Hashes(),
		Uploads:          len(s.assembler.pending),
		Trusted:          s.assembler.Trusted(),
		HashAlgorithm:    s.algorithm,
		BucketSize:       s.content.BucketSize(),
		MaxResponseBytes: s.maxResponseBytes,
	}
}

// Close closes the page store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages.Close()
}
