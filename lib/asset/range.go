// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"strconv"
	"strings"
)

type rangeKind int

const (
	// rangeAbsent covers both a missing Range header and one that
	// does not parse. Either way the full body is served.
	rangeAbsent rangeKind = iota
	rangeSatisfiable
	rangeUnsatisfiable
)

// byteRange is a half-open interval [start, end) of file content.
type byteRange struct {
	kind       rangeKind
	start, end uint64
}

// parseRange interprets a Range header value against a file of size
// bytes. Only the first range of a multi-range request is honored.
func parseRange(header string, size uint64) byteRange {
	ranges, found := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !found {
		return byteRange{kind: rangeAbsent}
	}
	first, _, _ := strings.Cut(ranges, ",")
	startText, endText, found := strings.Cut(strings.TrimSpace(first), "-")
	if !found {
		return byteRange{kind: rangeAbsent}
	}
	startText = strings.TrimSpace(startText)
	endText = strings.TrimSpace(endText)

	if startText == "" {
		// Suffix form: the last n bytes.
		suffix, err := strconv.ParseUint(endText, 10, 64)
		if err != nil {
			return byteRange{kind: rangeAbsent}
		}
		if suffix == 0 {
			return byteRange{kind: rangeUnsatisfiable}
		}
		return byteRange{kind: rangeSatisfiable, start: size - min(suffix, size), end: size}
	}

	start, err := strconv.ParseUint(startText, 10, 64)
	if err != nil {
		return byteRange{kind: rangeAbsent}
	}
	end := size
	if endText != "" {
		last, err := strconv.ParseUint(endText, 10, 64)
		if err != nil || last < start {
			return byteRange{kind: rangeAbsent}
		}
		end = min(last+1, size)
	}
	if start >= size {
		return byteRange{kind: rangeUnsatisfiable}
	}
	return byteRange{kind: rangeSatisfiable, start: start, end: end}
}

// etagMatches reports whether an If-None-Match value names etag.
func etagMatches(ifNoneMatch, etag string) bool {
	for candidate := range strings.SplitSeq(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		candidate = strings.TrimPrefix(candidate, "W/")
		candidate = strings.Trim(candidate, `"`)
		if candidate == etag {
			return true
		}
	}
	return false
}
