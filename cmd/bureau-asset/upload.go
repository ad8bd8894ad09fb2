// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"hash"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/minio/sha256-simd"
	"github.com/spf13/pflag"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/assets/lib/asset"
)

// caller is the part of service.Client the commands use.
type caller interface {
	Call(ctx context.Context, action string, fields map[string]any, result any) error
}

// uploadOptions controls how a file is split and sent.
type uploadOptions struct {
	ChunkSize  uint32
	BatchBytes uint64
	Headers    []asset.Header
	Algorithm  asset.HashAlgorithm
}

func uploadCommand() *Command {
	var (
		conn       connection
		chunkSize  string
		batchSize  string
		headers    []string
		algorithm  string
		remotePath string
	)
	return &Command{
		Name:    "upload",
		Summary: "Upload a local file to a path",
		Usage:   "bureau-asset upload <local-file> [<path>] [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("upload", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			flagSet.StringVar(&chunkSize, "chunk-size", "1MiB", "size of each chunk")
			flagSet.StringVar(&batchSize, "batch-size", "8MiB", "chunk bytes sent per request")
			flagSet.StringArrayVarP(&headers, "header", "H", nil, `response header "Name: Value" (repeatable)`)
			flagSet.StringVar(&algorithm, "hash", "sha256", "hash algorithm matching the service (sha256 or blake3)")
			return flagSet
		},
		Run: func(args []string) error {
			switch len(args) {
			case 1:
				remotePath = "/" + filepath.Base(args[0])
			case 2:
				remotePath = args[1]
			default:
				return fmt.Errorf("usage: bureau-asset upload <local-file> [<path>]")
			}

			options, err := parseUploadOptions(chunkSize, batchSize, headers, algorithm, remotePath)
			if err != nil {
				return err
			}
			client, err := conn.Client()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := uploadFile(ctx, client, args[0], remotePath, options, newProgress(os.Stderr, "uploading"))
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s  %s\n", remotePath, humanize.IBytes(result.Size), result.Hash)
			return nil
		},
	}
}

// parseUploadOptions validates the upload flags. A Content-Type
// header is derived from the remote path's extension when none is
// given.
func parseUploadOptions(chunkSize, batchSize string, headers []string, algorithm, remotePath string) (uploadOptions, error) {
	var options uploadOptions

	chunkBytes, err := humanize.ParseBytes(chunkSize)
	if err != nil {
		return options, fmt.Errorf("--chunk-size: %w", err)
	}
	if chunkBytes == 0 || chunkBytes > 1<<31 {
		return options, fmt.Errorf("--chunk-size must be between 1 byte and 2GiB")
	}
	options.ChunkSize = uint32(chunkBytes)

	options.BatchBytes, err = humanize.ParseBytes(batchSize)
	if err != nil {
		return options, fmt.Errorf("--batch-size: %w", err)
	}

	options.Algorithm, err = asset.ParseHashAlgorithm(algorithm)
	if err != nil {
		return options, err
	}

	hasContentType := false
	for _, header := range headers {
		name, value, ok := strings.Cut(header, ":")
		if !ok {
			return options, fmt.Errorf("header %q is not in Name: Value form", header)
		}
		name = strings.TrimSpace(name)
		if strings.EqualFold(name, "Content-Type") {
			hasContentType = true
		}
		options.Headers = append(options.Headers, asset.Header{Name: name, Value: strings.TrimSpace(value)})
	}
	if !hasContentType {
		if contentType := mime.TypeByExtension(filepath.Ext(remotePath)); contentType != "" {
			options.Headers = append(options.Headers, asset.Header{Name: "Content-Type", Value: contentType})
		}
	}
	return options, nil
}

// uploadResult describes a completed upload.
type uploadResult struct {
	Size uint64
	Hash asset.Hash
}

// uploadFile hashes localPath, then sends it to remotePath in chunks
// grouped into batches of roughly options.BatchBytes.
func uploadFile(ctx context.Context, client caller, localPath, remotePath string, options uploadOptions, progress *progress) (uploadResult, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return uploadResult{}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return uploadResult{}, err
	}
	size := uint64(info.Size())
	if size == 0 {
		return uploadResult{}, fmt.Errorf("%s is empty", localPath)
	}
	if size > asset.MaxFileSize {
		return uploadResult{}, fmt.Errorf("%s is %s, larger than the %s limit",
			localPath, humanize.IBytes(size), humanize.IBytes(asset.MaxFileSize))
	}

	hasher := newHasher(options.Algorithm)
	if _, err := io.Copy(hasher, file); err != nil {
		return uploadResult{}, fmt.Errorf("hashing %s: %w", localPath, err)
	}
	var digest asset.Hash
	copy(digest[:], hasher.Sum(nil))

	progress.Start(size)
	defer progress.Finish()

	chunkSize := uint64(options.ChunkSize)
	chunks := (size + chunkSize - 1) / chunkSize
	var batch []asset.UploadArg
	var batchBytes uint64
	for index := range chunks {
		offset := index * chunkSize
		buffer := make([]byte, min(chunkSize, size-offset))
		n, err := file.ReadAt(buffer, int64(offset))
		if err != nil && !(errors.Is(err, io.EOF) && n == len(buffer)) {
			return uploadResult{}, fmt.Errorf("reading %s at %d: %w", localPath, offset, err)
		}

		batch = append(batch, asset.UploadArg{
			Path:      remotePath,
			Headers:   options.Headers,
			Hash:      digest,
			Size:      size,
			ChunkSize: options.ChunkSize,
			Index:     uint32(index),
			Chunk:     buffer,
		})
		batchBytes += uint64(len(buffer))

		if batchBytes >= options.BatchBytes || index == chunks-1 {
			if err := client.Call(ctx, "upload", map[string]any{"chunks": batch}, nil); err != nil {
				return uploadResult{}, fmt.Errorf("uploading %s: %w", remotePath, err)
			}
			progress.Add(batchBytes)
			batch = nil
			batchBytes = 0
		}
	}

	return uploadResult{Size: size, Hash: digest}, nil
}

func newHasher(algorithm asset.HashAlgorithm) hash.Hash {
	if algorithm == asset.BLAKE3 {
		return blake3.New()
	}
	return sha256.New()
}
