// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import "strconv"

// ContinuationToken is the caller-held state of a paginated read.
// Callers treat it as opaque and echo it back unchanged to Continue.
// The store keeps no per-stream state; everything needed to resume
// is in the token.
type ContinuationToken map[string]string

const (
	tokenPath  = "path"
	tokenStart = "start"
	tokenEnd   = "end"
	tokenETag  = "etag"
)

func newToken(path string, start, end uint64, etag string) ContinuationToken {
	return ContinuationToken{
		tokenPath:  path,
		tokenStart: strconv.FormatUint(start, 10),
		tokenEnd:   strconv.FormatUint(end, 10),
		tokenETag:  etag,
	}
}

// decode extracts the token fields. ok is false for a token missing
// any field or carrying a non-numeric or inverted offset pair.
func (t ContinuationToken) decode() (path string, start, end uint64, etag string, ok bool) {
	path, hasPath := t[tokenPath]
	startText, hasStart := t[tokenStart]
	endText, hasEnd := t[tokenEnd]
	etag, hasETag := t[tokenETag]
	if !hasPath || !hasStart || !hasEnd || !hasETag {
		return "", 0, 0, "", false
	}
	start, err := strconv.ParseUint(startText, 10, 64)
	if err != nil {
		return "", 0, 0, "", false
	}
	end, err = strconv.ParseUint(endText, 10, 64)
	if err != nil || start > end {
		return "", 0, 0, "", false
	}
	return path, start, end, etag, true
}
