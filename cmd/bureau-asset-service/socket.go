// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/assets/lib/asset"
	"github.com/bureau-foundation/assets/lib/codec"
	"github.com/bureau-foundation/assets/lib/service"
	"github.com/bureau-foundation/assets/lib/version"
)

// registerActions registers all socket API actions on the server.
// Authorization is applied by the server's access policy before any
// handler runs.
func (as *AssetService) registerActions(server *service.SocketServer) {
	server.Handle("status", as.handleStatus)

	// Writes.
	server.Handle("upload", as.handleUpload)
	server.Handle("delete", as.handleDelete)
	server.Handle("set-trust", as.handleSetTrust)

	// Reads.
	server.Handle("download", as.handleDownload)
	server.Handle("download-range", as.handleDownloadRange)
	server.Handle("list", as.handleList)
	server.Handle("uploads", as.handleUploads)
	server.Handle("trust", as.handleTrust)
	server.Handle("http-request", as.handleHTTPRequest)
	server.Handle("http-streaming", as.handleHTTPStreaming)
}

// statusResponse is the response to the "status" action.
type statusResponse struct {
	UptimeSeconds float64     `cbor:"uptime_seconds"`
	Version       string      `cbor:"version"`
	Stats         asset.Stats `cbor:"stats"`
}

func (as *AssetService) handleStatus(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
	return statusResponse{
		UptimeSeconds: as.clock.Now().Sub(as.startedAt).Seconds(),
		Version:       version.Info(),
		Stats:         as.store.Stats(),
	}, nil
}

// uploadRequest carries a batch of chunks. Chunks may belong to
// different paths and are applied in order.
type uploadRequest struct {
	Chunks []asset.UploadArg `cbor:"chunks"`
}

func (as *AssetService) handleUpload(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
	var request uploadRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid upload request: %w", err)
	}
	if len(request.Chunks) == 0 {
		return nil, errors.New("upload request has no chunks")
	}

	// Chunks before a failing element stay applied, so persist
	// regardless of the outcome. In-flight buffers are left to the
	// shutdown snapshot.
	err := as.store.Upload(request.Chunks)
	as.persist(asset.SnapshotFiles)
	return nil, err
}

type deleteRequest struct {
	Paths []string `cbor:"paths"`
}

func (as *AssetService) handleDelete(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
	var request deleteRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid delete request: %w", err)
	}
	if err := as.store.Delete(request.Paths); err != nil {
		return nil, err
	}
	as.persist(asset.SnapshotFiles)
	return nil, nil
}

// trustMessage is both the "set-trust" request and the "trust"
// response.
type trustMessage struct {
	Trusted bool `cbor:"trusted"`
}

func (as *AssetService) handleSetTrust(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
	var request trustMessage
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid set-trust request: %w", err)
	}
	as.store.SetTrusted(request.Trusted)
	as.logger.Info("trust flag set", "trusted", request.Trusted, "uid", peer.UID)
	as.persist(asset.SnapshotFiles)
	return nil, nil
}

func (as *AssetService) handleTrust(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
	return trustMessage{Trusted: as.store.Trusted()}, nil
}

type downloadRequest struct {
	Path   string `cbor:"path"`
	Offset uint64 `cbor:"offset"`
	Size   uint64 `cbor:"size"`
}

type downloadResponse struct {
	Data []byte `cbor:"data"`
}

func (as *AssetService) handleDownload(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
	var request downloadRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid download request: %w", err)
	}
	data, err := as.store.Download(request.Path)
	if err != nil {
		return nil, err
	}
	return downloadResponse{Data: data}, nil
}

func (as *AssetService) handleDownloadRange(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
	var request downloadRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid download-range request: %w", err)
	}
	data, err := as.store.DownloadRange(request.Path, request.Offset, request.Size)
	if err != nil {
		return nil, err
	}
	return downloadResponse{Data: data}, nil
}

func (as *AssetService) handleList(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
	return as.store.List(), nil
}

func (as *AssetService) handleUploads(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
	return as.store.Uploads(), nil
}

// handleHTTPRequest exposes Resolve. The request fields (url, method,
// headers) sit at the top level of the CBOR message next to the
// action.
func (as *AssetService) handleHTTPRequest(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
	var request asset.Request
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid http-request: %w", err)
	}
	return as.store.Resolve(request), nil
}

type streamingRequest struct {
	Token asset.ContinuationToken `cbor:"token"`
}

func (as *AssetService) handleHTTPStreaming(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
	var request streamingRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid http-streaming request: %w", err)
	}
	return as.store.Continue(request.Token), nil
}

// persist writes the state snapshot under scope when one is
// configured. Failures are logged and do not fail the action.
func (as *AssetService) persist(scope asset.SnapshotScope) {
	if as.snapshotPath == "" {
		return
	}
	as.persistMu.Lock()
	defer as.persistMu.Unlock()
	if err := as.store.SaveSnapshot(as.snapshotPath, scope); err != nil {
		as.logger.Error("saving snapshot failed", "path", as.snapshotPath, "error", err)
	}
}
