// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/assets/lib/asset"
	"github.com/bureau-foundation/assets/lib/codec"
	"github.com/bureau-foundation/assets/lib/pagestore"
)

// storeCaller answers actions from an in-process store, passing
// results through CBOR the way the socket does.
type storeCaller struct {
	store   *asset.Store
	uploads int
	trusted bool
	calls   []string
}

func newStoreCaller(t *testing.T, maxResponseBytes int) *storeCaller {
	t.Helper()
	store, err := asset.New(asset.Config{
		Pages:            pagestore.NewMemory(),
		MaxResponseBytes: maxResponseBytes,
		Logger:           slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("asset.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return &storeCaller{store: store}
}

func (c *storeCaller) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	c.calls = append(c.calls, action)
	var reply any
	switch action {
	case "upload":
		c.uploads++
		if err := c.store.Upload(fields["chunks"].([]asset.UploadArg)); err != nil {
			return err
		}
	case "http-request":
		reply = c.store.Resolve(asset.Request{
			URL:    fields["url"].(string),
			Method: fields["method"].(string),
		})
	case "http-streaming":
		reply = c.store.Continue(fields["token"].(asset.ContinuationToken))
	case "trust":
		reply = map[string]bool{"trusted": c.trusted}
	case "set-trust":
		c.trusted = fields["trusted"].(bool)
	default:
		return fmt.Errorf("unexpected action %q", action)
	}
	if reply == nil || result == nil {
		return nil
	}
	data, err := codec.Marshal(reply)
	if err != nil {
		return err
	}
	return codec.Unmarshal(data, result)
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// quiet is a progress printer that never renders.
func quiet() *progress {
	return &progress{}
}

func TestUploadFileBatches(t *testing.T) {
	caller := newStoreCaller(t, 0)
	data := bytes.Repeat([]byte("asset-bytes-"), 1000)
	local := writeTempFile(t, "bundle.js", data)

	options := uploadOptions{ChunkSize: 1000, BatchBytes: 4000, Algorithm: asset.SHA256}
	result, err := uploadFile(context.Background(), caller, local, "/bundle.js", options, quiet())
	if err != nil {
		t.Fatalf("uploadFile: %v", err)
	}

	// 12000 bytes in 1000-byte chunks, four chunks per request.
	if caller.uploads != 3 {
		t.Errorf("upload requests = %d, want 3", caller.uploads)
	}
	if result.Size != uint64(len(data)) {
		t.Errorf("size = %d, want %d", result.Size, len(data))
	}
	if want := asset.SHA256.Sum(data); result.Hash != want {
		t.Errorf("hash = %s, want %s", result.Hash, want)
	}

	stored, err := caller.store.Download("/bundle.js")
	if err != nil || !bytes.Equal(stored, data) {
		t.Fatalf("stored content differs: %v", err)
	}
	if files := caller.store.List(); files[0].Hash != result.Hash.String() {
		t.Errorf("store hash %s, client hash %s", files[0].Hash, result.Hash)
	}
}

func TestUploadFileBLAKE3(t *testing.T) {
	caller := newStoreCaller(t, 0)
	data := []byte("hashed with blake3")
	local := writeTempFile(t, "a.txt", data)

	options := uploadOptions{ChunkSize: 4, BatchBytes: 1 << 20, Algorithm: asset.BLAKE3}
	result, err := uploadFile(context.Background(), caller, local, "/a.txt", options, quiet())
	if err != nil {
		t.Fatalf("uploadFile: %v", err)
	}
	if want := asset.BLAKE3.Sum(data); result.Hash != want {
		t.Errorf("hash = %s, want %s", result.Hash, want)
	}
}

func TestUploadFileRejectsEmpty(t *testing.T) {
	caller := newStoreCaller(t, 0)
	local := writeTempFile(t, "empty", nil)
	options := uploadOptions{ChunkSize: 4, BatchBytes: 4}
	if _, err := uploadFile(context.Background(), caller, local, "/empty", options, quiet()); err == nil {
		t.Error("uploadFile accepted an empty file")
	}
	if len(caller.calls) != 0 {
		t.Errorf("empty file produced calls %v", caller.calls)
	}
}

func TestUploadFileServiceError(t *testing.T) {
	caller := newStoreCaller(t, 0)
	local := writeTempFile(t, "a.txt", []byte("x"))
	options := uploadOptions{ChunkSize: 4, BatchBytes: 4}

	_, err := uploadFile(context.Background(), caller, local, "relative", options, quiet())
	if !errors.Is(err, asset.ErrInvalidArgument) {
		t.Errorf("uploadFile error = %v, want ErrInvalidArgument", err)
	}
}

func TestParseUploadOptions(t *testing.T) {
	options, err := parseUploadOptions("64KiB", "1MiB", []string{"Cache-Control: max-age=60"}, "", "/site/index.html")
	if err != nil {
		t.Fatalf("parseUploadOptions: %v", err)
	}
	if options.ChunkSize != 64*1024 {
		t.Errorf("chunk size = %d", options.ChunkSize)
	}
	if options.BatchBytes != 1<<20 {
		t.Errorf("batch bytes = %d", options.BatchBytes)
	}
	if options.Algorithm != asset.SHA256 {
		t.Errorf("algorithm = %q", options.Algorithm)
	}
	want := []asset.Header{
		{Name: "Cache-Control", Value: "max-age=60"},
		{Name: "Content-Type", Value: "text/html; charset=utf-8"},
	}
	if len(options.Headers) != len(want) {
		t.Fatalf("headers = %+v, want %+v", options.Headers, want)
	}
	for i := range want {
		if options.Headers[i] != want[i] {
			t.Errorf("header %d = %+v, want %+v", i, options.Headers[i], want[i])
		}
	}

	// An explicit Content-Type suppresses the derived one.
	options, err = parseUploadOptions("1KiB", "1KiB", []string{"content-type: application/wasm"}, "blake3", "/app.html")
	if err != nil {
		t.Fatalf("parseUploadOptions: %v", err)
	}
	if len(options.Headers) != 1 || options.Headers[0].Value != "application/wasm" {
		t.Errorf("headers = %+v", options.Headers)
	}

	for _, bad := range []struct{ chunk, batch, header, algorithm string }{
		{"0", "1MiB", "", ""},
		{"lots", "1MiB", "", ""},
		{"1KiB", "1MiB", "NoColon", ""},
		{"1KiB", "1MiB", "", "md5"},
	} {
		var headers []string
		if bad.header != "" {
			headers = []string{bad.header}
		}
		if _, err := parseUploadOptions(bad.chunk, bad.batch, headers, bad.algorithm, "/x"); err == nil {
			t.Errorf("parseUploadOptions(%+v) succeeded", bad)
		}
	}
}
