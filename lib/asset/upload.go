// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/bureau-foundation/assets/lib/assetmetrics"
)

const (
	// MaxFileSize is the largest declared upload size: 2 GiB.
	MaxFileSize = 2 * 1024 * 1024 * 1024

	// MaxHeaderNameLength bounds each custom header name in bytes.
	MaxHeaderNameLength = 64

	// MaxHeaderValueLength bounds each custom header value in bytes.
	MaxHeaderValueLength = 8 * 1024
)

// UploadArg is one chunk of a chunked upload. Every chunk of an
// upload repeats the same Path, Hash, Size and ChunkSize; Index
// selects which ChunkSize-aligned window Chunk fills.
type UploadArg struct {
	Path      string   `json:"path"`
	Headers   []Header `json:"headers,omitempty"`
	Hash      Hash     `json:"hash"`
	Size      uint64   `json:"size"`
	ChunkSize uint32   `json:"chunk_size"`
	Index     uint32   `json:"index"`
	Chunk     []byte   `json:"chunk"`
}

// chunkCount returns ⌈Size/ChunkSize⌉. ChunkSize must be non-zero.
func (arg *UploadArg) chunkCount() uint32 {
	return uint32((arg.Size + uint64(arg.ChunkSize) - 1) / uint64(arg.ChunkSize))
}

// window returns the buffer range [start, end) Chunk occupies.
func (arg *UploadArg) window() (start, end uint64) {
	start = uint64(arg.Index) * uint64(arg.ChunkSize)
	end = min(start+uint64(arg.ChunkSize), arg.Size)
	return start, end
}

func validatePathAndHeaders(arg *UploadArg) error {
	if arg.Path == "" {
		return invalidArgument("path is empty")
	}
	if !strings.HasPrefix(arg.Path, "/") {
		return invalidArgument("path %q must start with /", arg.Path)
	}
	for _, header := range arg.Headers {
		if len(header.Name) > MaxHeaderNameLength {
			return invalidArgument("header name %q exceeds %d bytes", header.Name, MaxHeaderNameLength)
		}
		if len(header.Value) > MaxHeaderValueLength {
			return invalidArgument("value of header %q exceeds %d bytes", header.Name, MaxHeaderValueLength)
		}
	}
	return nil
}

func validateLayout(arg *UploadArg) error {
	if arg.Size == 0 {
		return invalidArgument("size is zero")
	}
	if arg.Size > MaxFileSize {
		return invalidArgument("size %d exceeds %d", arg.Size, MaxFileSize)
	}
	if arg.ChunkSize == 0 {
		return invalidArgument("chunk size is zero")
	}
	chunks := arg.chunkCount()
	if arg.Index >= chunks {
		return invalidArgument("chunk index %d out of range for %d chunks", arg.Index, chunks)
	}
	start, end := arg.window()
	if uint64(len(arg.Chunk)) != end-start {
		return invalidArgument("chunk %d is %d bytes, want %d", arg.Index, len(arg.Chunk), end-start)
	}
	return nil
}

// PendingUpload is the assembly state of one path's in-flight upload.
// Fields are exported for snapshots; callers outside this package see
// only UploadStatus.
type PendingUpload struct {
	Path      string   `json:"path"`
	Headers   []Header `json:"headers,omitempty"`
	Hash      Hash     `json:"hash"`
	Size      uint64   `json:"size"`
	ChunkSize uint32   `json:"chunk_size"`
	Chunks    uint32   `json:"chunks"`
	Received  []bool   `json:"received"`
	Buffer    []byte   `json:"buffer"`

	receivedCount uint32
}

func newPendingUpload(arg *UploadArg) *PendingUpload {
	chunks := arg.chunkCount()
	return &PendingUpload{
		Path:      arg.Path,
		Hash:      arg.Hash,
		Size:      arg.Size,
		ChunkSize: arg.ChunkSize,
		Chunks:    chunks,
		Received:  make([]bool, chunks),
		Buffer:    make([]byte, arg.Size),
	}
}

// matches reports whether arg declares the same upload as p.
func (p *PendingUpload) matches(arg *UploadArg) bool {
	return p.Hash == arg.Hash &&
		p.Size == arg.Size &&
		p.ChunkSize == arg.ChunkSize &&
		p.Chunks == arg.chunkCount() &&
		uint64(len(p.Buffer)) == arg.Size &&
		uint32(len(p.Received)) == p.Chunks
}

func (p *PendingUpload) complete() bool {
	return p.receivedCount == p.Chunks
}

// UploadStatus describes a partial upload.
type UploadStatus struct {
	Path           string `json:"path"`
	Hash           string `json:"hash"`
	Size           uint64 `json:"size"`
	ChunkSize      uint32 `json:"chunk_size"`
	Chunks         uint32 `json:"chunks"`
	ReceivedChunks uint32 `json:"received_chunks"`
}

// Assembler collects indexed chunks into complete buffers and commits
// them to Content and Directory. Not safe for concurrent use.
type Assembler struct {
	content   *Content
	directory *Directory
	algorithm HashAlgorithm
	trusted   bool
	metrics   *assetmetrics.Metrics
	logger    *slog.Logger

	pending map[string]*PendingUpload
}

// NewAssembler creates an assembler committing into content and
// directory. algorithm hashes assembled buffers when the trust flag
// is off.
func NewAssembler(content *Content, directory *Directory, algorithm HashAlgorithm, metrics *assetmetrics.Metrics, logger *slog.Logger) *Assembler {
	return &Assembler{
		content:   content,
		directory: directory,
		algorithm: algorithm,
		metrics:   metrics,
		logger:    logger,
		pending:   make(map[string]*PendingUpload),
	}
}

// SetTrusted sets whether declared hashes are taken at face value.
// Existing content is not rehashed.
func (a *Assembler) SetTrusted(trusted bool) {
	a.trusted = trusted
}

// Trusted returns the trust flag.
func (a *Assembler) Trusted() bool {
	return a.trusted
}

// PutChunk applies one chunk. An argument that fails validation
// returns an error wrapping ErrInvalidArgument and changes nothing.
//
// When the trust flag is set and the declared hash is already
// referenced by some path, the chunk is not assembled: path is bound
// to the existing content immediately, using the existing file's size
// rather than the declared one, and any partial upload for path is
// discarded.
//
// A chunk declaring a different hash, size or chunk size than the
// path's in-flight upload discards the partial buffer and starts over.
// Resending an already received chunk overwrites the same window.
// When the last missing chunk arrives the upload is finalized before
// PutChunk returns.
func (a *Assembler) PutChunk(arg UploadArg) error {
	if err := validatePathAndHeaders(&arg); err != nil {
		return err
	}

	if a.trusted && a.directory.Referenced(arg.Hash) > 0 {
		existing, _ := a.directory.AnyPathFor(arg.Hash)
		if err := a.directory.Put(arg.Path, arg.Headers, arg.Hash, existing.Size); err != nil {
			return err
		}
		a.Cancel(arg.Path)
		a.metrics.DedupShortcut()
		a.logger.Debug("upload satisfied by existing content",
			"path", arg.Path,
			"hash", arg.Hash.String(),
			"source", existing.Path,
		)
		return nil
	}

	if err := validateLayout(&arg); err != nil {
		return err
	}

	upload, exists := a.pending[arg.Path]
	if exists && !upload.matches(&arg) {
		a.logger.Info("upload declaration changed, restarting",
			"path", arg.Path,
			"received_chunks", upload.receivedCount,
			"old_size", upload.Size,
			"new_size", arg.Size,
		)
		a.metrics.UploadRestarted()
		exists = false
	}
	if !exists {
		upload = newPendingUpload(&arg)
		a.pending[arg.Path] = upload
	}

	start, _ := arg.window()
	copy(upload.Buffer[start:], arg.Chunk)
	upload.Headers = slices.Clone(arg.Headers)
	if !upload.Received[arg.Index] {
		upload.Received[arg.Index] = true
		upload.receivedCount++
	}
	a.metrics.ChunkReceived()

	if !upload.complete() {
		return nil
	}
	return a.finalize(upload)
}

// finalize commits a fully received upload. Pages are written before
// the directory entry, and the file previously at the path is only
// replaced once they are, so a failed page write leaves the old file
// in place.
func (a *Assembler) finalize(upload *PendingUpload) error {
	hash := upload.Hash
	if !a.trusted {
		hash = a.algorithm.Sum(upload.Buffer)
	}

	stored, err := a.content.Exists(hash)
	if err != nil {
		return err
	}
	if !stored {
		if err := a.content.Store(hash, upload.Buffer); err != nil {
			return err
		}
	}
	if err := a.directory.Replace(upload.Path, upload.Headers, hash, upload.Size); err != nil {
		return fmt.Errorf("replacing file at %s: %w", upload.Path, err)
	}
	delete(a.pending, upload.Path)

	a.metrics.UploadCompleted()
	a.logger.Info("upload committed",
		"path", upload.Path,
		"hash", hash.String(),
		"size", upload.Size,
		"deduplicated", stored,
	)
	return nil
}

// Cancel discards any in-flight upload for path and reports whether
// one existed.
func (a *Assembler) Cancel(path string) bool {
	_, exists := a.pending[path]
	delete(a.pending, path)
	return exists
}

// InFlight lists partial uploads sorted by path.
func (a *Assembler) InFlight() []UploadStatus {
	statuses := make([]UploadStatus, 0, len(a.pending))
	for _, upload := range a.pending {
		statuses = append(statuses, UploadStatus{
			Path:           upload.Path,
			Hash:           upload.Hash.String(),
			Size:           upload.Size,
			ChunkSize:      upload.ChunkSize,
			Chunks:         upload.Chunks,
			ReceivedChunks: upload.receivedCount,
		})
	}
	slices.SortFunc(statuses, func(a, b UploadStatus) int {
		return strings.Compare(a.Path, b.Path)
	})
	return statuses
}

// pendingUploads returns deep copies of the in-flight records for
// snapshotting. The copies share no memory with the live records, so
// they can be encoded after the caller's lock is released.
func (a *Assembler) pendingUploads() []PendingUpload {
	uploads := make([]PendingUpload, 0, len(a.pending))
	for _, upload := range a.pending {
		copied := *upload
		copied.Headers = slices.Clone(upload.Headers)
		copied.Received = slices.Clone(upload.Received)
		copied.Buffer = slices.Clone(upload.Buffer)
		uploads = append(uploads, copied)
	}
	slices.SortFunc(uploads, func(a, b PendingUpload) int {
		return strings.Compare(a.Path, b.Path)
	})
	return uploads
}

// restore replaces the in-flight set. Records whose bitmap does not
// match their declared layout are dropped.
func (a *Assembler) restore(uploads []PendingUpload) {
	a.pending = make(map[string]*PendingUpload, len(uploads))
	for i := range uploads {
		upload := uploads[i]
		if upload.ChunkSize == 0 || uint64(len(upload.Buffer)) != upload.Size ||
			uint32(len(upload.Received)) != upload.Chunks {
			a.logger.Warn("dropping inconsistent in-flight upload from snapshot", "path", upload.Path)
			continue
		}
		upload.receivedCount = 0
		for _, received := range upload.Received {
			if received {
				upload.receivedCount++
			}
		}
		a.pending[upload.Path] = &upload
	}
}
