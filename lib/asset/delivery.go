// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/bureau-foundation/assets/lib/assetmetrics"
)

// DefaultMaxResponseBytes is the largest body a single Resolve or
// Continue returns: 2 MiB.
const DefaultMaxResponseBytes = 2 * 1024 * 1024

// Request is an HTTP-shaped read request. URL is the request target:
// a path with an optional query string, possibly percent-encoded.
type Request struct {
	URL     string      `json:"url"`
	Method  string      `json:"method"`
	Headers http.Header `json:"headers,omitempty"`
}

// Response is the result of Resolve. A non-nil Token means Body is a
// prefix of the selected range and the remainder is available through
// Continue.
type Response struct {
	StatusCode int               `json:"status_code"`
	Headers    http.Header       `json:"headers"`
	Body       []byte            `json:"body"`
	Token      ContinuationToken `json:"token,omitempty"`
}

// StreamingResponse is the result of Continue. A nil Token ends the
// stream.
type StreamingResponse struct {
	Body  []byte            `json:"body"`
	Token ContinuationToken `json:"token,omitempty"`
}

// Delivery serves file content under a per-response size ceiling.
type Delivery struct {
	content          *Content
	directory        *Directory
	maxResponseBytes uint64
	metrics          *assetmetrics.Metrics
	logger           *slog.Logger
}

// NewDelivery creates a delivery engine. maxResponseBytes must be
// positive.
func NewDelivery(content *Content, directory *Directory, maxResponseBytes int, metrics *assetmetrics.Metrics, logger *slog.Logger) *Delivery {
	if maxResponseBytes <= 0 {
		panic(fmt.Sprintf("asset.NewDelivery: max response bytes %d must be positive", maxResponseBytes))
	}
	return &Delivery{
		content:          content,
		directory:        directory,
		maxResponseBytes: uint64(maxResponseBytes),
		metrics:          metrics,
		logger:           logger,
	}
}

// Resolve answers a read request. The root path renders a listing of
// all files. A path with no file gets 404. Otherwise the body is the
// requested range (the whole file without a Range header), truncated
// to the response ceiling with a continuation token for the rest.
func (d *Delivery) Resolve(request Request) Response {
	response := d.resolve(request)
	d.metrics.Response(response.StatusCode, len(response.Body))
	return response
}

func (d *Delivery) resolve(request Request) Response {
	rawPath, rawQuery, _ := strings.Cut(request.URL, "?")
	filePath, err := url.PathUnescape(rawPath)
	if err != nil {
		filePath = rawPath
	}
	if filePath == "" {
		filePath = "/"
	}
	query, _ := url.ParseQuery(rawQuery)
	head := strings.EqualFold(request.Method, http.MethodHead)

	if filePath == "/" {
		body, err := renderListing(d.directory.List())
		if err != nil {
			d.logger.Error("rendering listing failed", "error", err)
			return internalError()
		}
		response := Response{
			StatusCode: http.StatusOK,
			Headers:    http.Header{"Content-Type": {"text/html; charset=utf-8"}},
			Body:       body,
		}
		if head {
			response.Body = nil
		}
		return response
	}

	file, exists := d.directory.Get(filePath)
	if !exists {
		return Response{
			StatusCode: http.StatusNotFound,
			Headers:    http.Header{"Content-Type": {"text/plain"}},
			Body:       []byte("Not found"),
		}
	}

	etag := file.Hash.String()
	headers := http.Header{}
	if _, wanted := query["attachment"]; wanted {
		name := query.Get("attachment")
		if name == "" {
			name = path.Base(file.Path)
		}
		headers.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
	headers.Set("ETag", etag)
	for _, header := range file.Headers {
		headers.Set(header.Name, header.Value)
	}
	headers.Set("Accept-Ranges", "bytes")

	if match := headerValue(request.Headers, "If-None-Match"); match != "" && etagMatches(match, etag) {
		return Response{StatusCode: http.StatusNotModified, Headers: headers}
	}

	status := http.StatusOK
	start, end := uint64(0), file.Size
	if rangeHeader := headerValue(request.Headers, "Range"); rangeHeader != "" {
		requested := parseRange(rangeHeader, file.Size)
		switch requested.kind {
		case rangeAbsent:
		case rangeUnsatisfiable:
			headers.Set("Content-Range", fmt.Sprintf("bytes */%d", file.Size))
			return Response{StatusCode: http.StatusRequestedRangeNotSatisfiable, Headers: headers}
		case rangeSatisfiable:
			start, end = requested.start, requested.end
			headers.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end-1, file.Size))
			if start != 0 || end != file.Size {
				status = http.StatusPartialContent
			}
		}
	}

	if head {
		return Response{StatusCode: status, Headers: headers}
	}

	body, token, err := d.window(file, start, end, etag)
	if err != nil {
		d.logger.Error("reading content failed", "path", file.Path, "hash", etag, "error", err)
		return internalError()
	}
	return Response{StatusCode: status, Headers: headers, Body: body, Token: token}
}

// Continue serves the next window of a paginated read. Any token that
// cannot be honored yields an empty terminal response: malformed
// fields, a path that no longer exists, a path whose content changed
// since the token was issued, or offsets outside the file.
func (d *Delivery) Continue(token ContinuationToken) StreamingResponse {
	filePath, start, end, etag, ok := token.decode()
	if !ok || start == end {
		return StreamingResponse{}
	}
	file, exists := d.directory.Get(filePath)
	if !exists || file.Hash.String() != etag || end > file.Size {
		return StreamingResponse{}
	}
	body, next, err := d.window(file, start, end, etag)
	if err != nil {
		d.logger.Error("reading content failed", "path", file.Path, "hash", etag, "error", err)
		return StreamingResponse{}
	}
	d.metrics.Continuation(len(body))
	return StreamingResponse{Body: body, Token: next}
}

// window reads at most maxResponseBytes from [start, end) and returns
// a token for the remainder, if any.
func (d *Delivery) window(file File, start, end uint64, etag string) ([]byte, ContinuationToken, error) {
	stop := end
	var token ContinuationToken
	if end-start > d.maxResponseBytes {
		stop = start + d.maxResponseBytes
		token = newToken(file.Path, stop, end, etag)
	}
	body, err := d.content.Slice(file.Hash, file.Size, start, stop-start)
	if err != nil {
		return nil, nil, err
	}
	return body, token, nil
}

// headerValue looks up name case-insensitively. Request headers
// arriving over the socket protocol are not canonicalized.
func headerValue(headers http.Header, name string) string {
	if value := headers.Get(name); value != "" {
		return value
	}
	for key, values := range headers {
		if strings.EqualFold(key, name) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

func internalError() Response {
	return Response{
		StatusCode: http.StatusInternalServerError,
		Headers:    http.Header{"Content-Type": {"text/plain"}},
		Body:       []byte("Internal error"),
	}
}
