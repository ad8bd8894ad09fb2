// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/bureau-foundation/assets/lib/asset"
)

// gateway serves assets to plain HTTP clients. It resolves each
// request through the delivery engine and then follows continuation
// tokens, writing every window to the client as it arrives.
type gateway struct {
	store  *asset.Store
	logger *slog.Logger
}

func newGateway(store *asset.Store, logger *slog.Logger) *gateway {
	return &gateway{store: store, logger: logger}
}

func (g *gateway) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	requestID := uuid.NewString()
	writer.Header().Set("X-Request-Id", requestID)

	if request.Method != http.MethodGet && request.Method != http.MethodHead {
		writer.Header().Set("Allow", "GET, HEAD")
		http.Error(writer, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := g.store.Resolve(asset.Request{
		URL:     request.URL.RequestURI(),
		Method:  request.Method,
		Headers: request.Header,
	})

	header := writer.Header()
	for name, values := range response.Headers {
		header[http.CanonicalHeaderKey(name)] = values
	}
	if request.Method == http.MethodGet && response.StatusCode != http.StatusNotModified {
		if length, ok := contentLength(response); ok {
			header.Set("Content-Length", strconv.FormatUint(length, 10))
		}
	}
	writer.WriteHeader(response.StatusCode)

	written := uint64(0)
	if len(response.Body) > 0 {
		n, err := writer.Write(response.Body)
		written += uint64(n)
		if err != nil {
			g.logger.Debug("client write failed", "request_id", requestID, "error", err)
			return
		}
	}

	token := response.Token
	for token != nil {
		if err := request.Context().Err(); err != nil {
			return
		}
		if flusher, ok := writer.(http.Flusher); ok {
			flusher.Flush()
		}
		next := g.store.Continue(token)
		if len(next.Body) == 0 {
			// The file was replaced or removed mid-stream. The
			// declared Content-Length is not met and net/http
			// closes the connection.
			g.logger.Warn("stream ended early",
				"request_id", requestID,
				"path", token["path"],
				"written", written,
			)
			return
		}
		n, err := writer.Write(next.Body)
		written += uint64(n)
		if err != nil {
			g.logger.Debug("client write failed", "request_id", requestID, "error", err)
			return
		}
		token = next.Token
	}

	g.logger.Debug("request served",
		"request_id", requestID,
		"method", request.Method,
		"url", request.URL.RequestURI(),
		"status", response.StatusCode,
		"bytes", written,
	)
}

// contentLength returns the total body length of a response whose
// body may continue through its token.
func contentLength(response asset.Response) (uint64, bool) {
	length := uint64(len(response.Body))
	if response.Token == nil {
		return length, true
	}
	start, err := strconv.ParseUint(response.Token["start"], 10, 64)
	if err != nil {
		return 0, false
	}
	end, err := strconv.ParseUint(response.Token["end"], 10, 64)
	if err != nil || end < start {
		return 0, false
	}
	return length + end - start, true
}
