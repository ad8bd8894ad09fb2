// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
)

func storeWith(t *testing.T, config Config, path string, data []byte, headers ...Header) *Store {
	t.Helper()
	store := newTestStore(t, config)
	args := chunked(path, data, 1024, Hash{})
	for i := range args {
		args[i].Headers = headers
	}
	if err := store.Upload(args); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return store
}

func TestResolveNotFound(t *testing.T) {
	store := newTestStore(t, Config{})
	response := store.Resolve(Request{URL: "/nope", Method: "GET"})
	if response.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", response.StatusCode)
	}
	if string(response.Body) != "Not found" || response.Headers.Get("Content-Type") != "text/plain" {
		t.Errorf("body %q content-type %q", response.Body, response.Headers.Get("Content-Type"))
	}
	if response.Token != nil {
		t.Error("404 carries a continuation token")
	}
}

func TestResolveListing(t *testing.T) {
	store := storeWith(t, Config{}, "/docs/<script>.txt", []byte("listing"))
	response := store.Resolve(Request{URL: "/", Method: "GET"})
	if response.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", response.StatusCode)
	}
	if !strings.HasPrefix(response.Headers.Get("Content-Type"), "text/html") {
		t.Errorf("content-type = %q", response.Headers.Get("Content-Type"))
	}
	body := string(response.Body)
	if !strings.Contains(body, "/docs/&lt;script&gt;.txt") {
		t.Error("listing does not contain the escaped path")
	}
	if strings.Contains(body, "<script>") {
		t.Error("listing contains an unescaped path")
	}
	if !strings.Contains(body, "7 B") {
		t.Error("listing does not show the human-readable size")
	}

	empty := store.Resolve(Request{URL: "", Method: "GET"})
	if empty.StatusCode != http.StatusOK || !bytes.Contains(empty.Body, []byte("<h1>Assets</h1>")) {
		t.Error("empty URL did not render the listing")
	}
}

func TestResolveHeaders(t *testing.T) {
	data := []byte("body text")
	store := storeWith(t, Config{}, "/dir/report.pdf", data,
		Header{Name: "Content-Type", Value: "application/pdf"},
		Header{Name: "Cache-Control", Value: "max-age=60"},
	)

	response := store.Resolve(Request{URL: "/dir/report.pdf", Method: "GET"})
	if response.StatusCode != http.StatusOK || !bytes.Equal(response.Body, data) {
		t.Fatalf("status %d body %q", response.StatusCode, response.Body)
	}
	for name, want := range map[string]string{
		"ETag":          SHA256.Sum(data).String(),
		"Content-Type":  "application/pdf",
		"Cache-Control": "max-age=60",
		"Accept-Ranges": "bytes",
	} {
		if got := response.Headers.Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if response.Headers.Get("Content-Disposition") != "" {
		t.Error("Content-Disposition set without attachment parameter")
	}
	if response.Headers.Get("Content-Range") != "" {
		t.Error("Content-Range set without Range header")
	}
}

func TestResolveAttachment(t *testing.T) {
	store := storeWith(t, Config{}, "/dir/my file.txt", []byte("x"))
	tests := []struct {
		url  string
		want string
	}{
		{"/dir/my%20file.txt?attachment", `attachment; filename="my file.txt"`},
		{"/dir/my%20file.txt?attachment=", `attachment; filename="my file.txt"`},
		{"/dir/my%20file.txt?attachment=saved.txt", "attachment; filename=saved.txt"},
		{"/dir/my%20file.txt?v=2&attachment=a%20b.txt", `attachment; filename="a b.txt"`},
		{"/dir/my%20file.txt?v=2", ""},
	}
	for _, test := range tests {
		response := store.Resolve(Request{URL: test.url, Method: "GET"})
		if response.StatusCode != http.StatusOK {
			t.Errorf("%s: status %d", test.url, response.StatusCode)
			continue
		}
		if got := response.Headers.Get("Content-Disposition"); got != test.want {
			t.Errorf("%s: Content-Disposition = %q, want %q", test.url, got, test.want)
		}
	}
}

func TestResolveRange(t *testing.T) {
	data := patterned(100)
	store := storeWith(t, Config{}, "/r", data)

	tests := []struct {
		header       string
		status       int
		start, end   int
		contentRange string
	}{
		{"bytes=0-9", http.StatusPartialContent, 0, 10, "bytes 0-9/100"},
		{"bytes=90-", http.StatusPartialContent, 90, 100, "bytes 90-99/100"},
		{"bytes=-5", http.StatusPartialContent, 95, 100, "bytes 95-99/100"},
		{"bytes=50-500", http.StatusPartialContent, 50, 100, "bytes 50-99/100"},
		{"bytes=0-99", http.StatusOK, 0, 100, "bytes 0-99/100"},
		{"bytes=-500", http.StatusOK, 0, 100, "bytes 0-99/100"},
		{"bytes=10-19, 30-39", http.StatusPartialContent, 10, 20, "bytes 10-19/100"},
		{"items=0-9", http.StatusOK, 0, 100, ""},
		{"bytes=abc", http.StatusOK, 0, 100, ""},
		{"bytes=9-3", http.StatusOK, 0, 100, ""},
	}
	for _, test := range tests {
		response := store.Resolve(Request{
			URL:     "/r",
			Method:  "GET",
			Headers: http.Header{"Range": {test.header}},
		})
		if response.StatusCode != test.status {
			t.Errorf("%q: status = %d, want %d", test.header, response.StatusCode, test.status)
		}
		if !bytes.Equal(response.Body, data[test.start:test.end]) {
			t.Errorf("%q: body is not bytes [%d, %d)", test.header, test.start, test.end)
		}
		if got := response.Headers.Get("Content-Range"); got != test.contentRange {
			t.Errorf("%q: Content-Range = %q, want %q", test.header, got, test.contentRange)
		}
	}
}

func TestResolveRangeUnsatisfiable(t *testing.T) {
	store := storeWith(t, Config{}, "/r", patterned(10))
	for _, header := range []string{"bytes=10-", "bytes=50-60", "bytes=-0"} {
		response := store.Resolve(Request{URL: "/r", Method: "GET", Headers: http.Header{"Range": {header}}})
		if response.StatusCode != http.StatusRequestedRangeNotSatisfiable {
			t.Errorf("%q: status = %d, want 416", header, response.StatusCode)
		}
		if got := response.Headers.Get("Content-Range"); got != "bytes */10" {
			t.Errorf("%q: Content-Range = %q", header, got)
		}
		if len(response.Body) != 0 {
			t.Errorf("%q: 416 has a body", header)
		}
	}
}

func TestResolveRangeHeaderCaseInsensitive(t *testing.T) {
	data := patterned(10)
	store := storeWith(t, Config{}, "/r", data)
	response := store.Resolve(Request{URL: "/r", Method: "GET", Headers: http.Header{"range": {"bytes=2-3"}}})
	if response.StatusCode != http.StatusPartialContent || !bytes.Equal(response.Body, data[2:4]) {
		t.Errorf("status %d body %v", response.StatusCode, response.Body)
	}
}

func TestResolveNotModified(t *testing.T) {
	data := []byte("cached")
	store := storeWith(t, Config{}, "/c", data)
	etag := SHA256.Sum(data).String()

	for _, match := range []string{etag, `"` + etag + `"`, `W/"` + etag + `", "other"`, "*"} {
		response := store.Resolve(Request{URL: "/c", Method: "GET", Headers: http.Header{"If-None-Match": {match}}})
		if response.StatusCode != http.StatusNotModified || len(response.Body) != 0 {
			t.Errorf("If-None-Match %q: status %d body %d bytes", match, response.StatusCode, len(response.Body))
		}
	}
	response := store.Resolve(Request{URL: "/c", Method: "GET", Headers: http.Header{"If-None-Match": {`"stale"`}}})
	if response.StatusCode != http.StatusOK {
		t.Errorf("stale If-None-Match: status %d, want 200", response.StatusCode)
	}
}

func TestResolveHead(t *testing.T) {
	store := storeWith(t, Config{MaxResponseBytes: 4}, "/h", patterned(10))
	response := store.Resolve(Request{URL: "/h", Method: "HEAD"})
	if response.StatusCode != http.StatusOK || len(response.Body) != 0 || response.Token != nil {
		t.Errorf("HEAD: status %d body %d bytes token %v", response.StatusCode, len(response.Body), response.Token)
	}
	if response.Headers.Get("ETag") == "" {
		t.Error("HEAD response missing ETag")
	}
}

// drain follows continuation tokens from an initial response until
// the stream ends, returning the concatenated body and the number of
// Continue calls.
func drain(t *testing.T, store *Store, response Response, window int) ([]byte, int) {
	t.Helper()
	body := append([]byte(nil), response.Body...)
	token := response.Token
	calls := 0
	for token != nil {
		next := store.Continue(token)
		calls++
		if len(next.Body) > window {
			t.Fatalf("continuation returned %d bytes, ceiling is %d", len(next.Body), window)
		}
		if next.Token != nil && len(next.Body) == 0 {
			t.Fatal("non-terminal continuation with an empty body")
		}
		body = append(body, next.Body...)
		token = next.Token
		if calls > 1000 {
			t.Fatal("continuation did not terminate")
		}
	}
	return body, calls
}

func TestResolvePaginationCompleteness(t *testing.T) {
	for _, test := range []struct {
		size, window int
	}{
		{10, 10}, {11, 10}, {30, 10}, {31, 10}, {1000, 7}, {5, 100},
	} {
		data := patterned(test.size)
		store := storeWith(t, Config{MaxResponseBytes: test.window, BucketSize: 8}, "/p", data)

		response := store.Resolve(Request{URL: "/p", Method: "GET"})
		if response.StatusCode != http.StatusOK {
			t.Fatalf("size %d: status %d", test.size, response.StatusCode)
		}
		if len(response.Body) > test.window {
			t.Fatalf("size %d: first body %d bytes exceeds ceiling %d", test.size, len(response.Body), test.window)
		}
		if (response.Token != nil) != (test.size > test.window) {
			t.Errorf("size %d window %d: token presence %v", test.size, test.window, response.Token != nil)
		}
		body, calls := drain(t, store, response, test.window)
		if !bytes.Equal(body, data) {
			t.Errorf("size %d window %d: reassembled body differs", test.size, test.window)
		}
		wantCalls := (test.size - 1) / test.window
		if calls != wantCalls {
			t.Errorf("size %d window %d: %d continuations, want %d", test.size, test.window, calls, wantCalls)
		}
	}
}

func TestResolveRangePagination(t *testing.T) {
	data := patterned(100)
	store := storeWith(t, Config{MaxResponseBytes: 16}, "/rp", data)
	response := store.Resolve(Request{URL: "/rp", Method: "GET", Headers: http.Header{"Range": {"bytes=20-69"}}})
	if response.StatusCode != http.StatusPartialContent {
		t.Fatalf("status %d", response.StatusCode)
	}
	if got := response.Headers.Get("Content-Range"); got != "bytes 20-69/100" {
		t.Errorf("Content-Range = %q", got)
	}
	body, _ := drain(t, store, response, 16)
	if !bytes.Equal(body, data[20:70]) {
		t.Error("paginated range differs from the requested bytes")
	}
}

func TestContinueTerminalCases(t *testing.T) {
	data := patterned(40)
	store := storeWith(t, Config{MaxResponseBytes: 10}, "/t", data)
	etag := SHA256.Sum(data).String()
	valid := newToken("/t", 10, 40, etag)

	if next := store.Continue(valid); !bytes.Equal(next.Body, data[10:20]) || next.Token == nil {
		t.Fatalf("valid token: body %v token %v", next.Body, next.Token)
	}

	tests := map[string]ContinuationToken{
		"nil":           nil,
		"missing end":   {"path": "/t", "start": "10", "etag": etag},
		"bad start":     {"path": "/t", "start": "x", "end": "40", "etag": etag},
		"inverted":      {"path": "/t", "start": "30", "end": "20", "etag": etag},
		"stream ended":  newToken("/t", 40, 40, etag),
		"unknown path":  newToken("/gone", 10, 40, etag),
		"etag mismatch": newToken("/t", 10, 40, "0000"),
		"past size":     newToken("/t", 10, 41, etag),
	}
	for name, token := range tests {
		next := store.Continue(token)
		if len(next.Body) != 0 || next.Token != nil {
			t.Errorf("%s: body %d bytes token %v, want empty terminal", name, len(next.Body), next.Token)
		}
	}
}

func TestContinueAfterReplacementEnds(t *testing.T) {
	store := storeWith(t, Config{MaxResponseBytes: 4}, "/swap", []byte("original content"))
	response := store.Resolve(Request{URL: "/swap", Method: "GET"})
	if response.Token == nil {
		t.Fatal("expected a continuation token")
	}
	if err := store.Upload(chunked("/swap", []byte("replacement bytes"), 8, Hash{})); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	next := store.Continue(response.Token)
	if len(next.Body) != 0 || next.Token != nil {
		t.Errorf("stale token served %q", next.Body)
	}
}

func TestResolvePercentDecodedPath(t *testing.T) {
	store := storeWith(t, Config{}, "/a b/ü.txt", []byte("decoded"))
	response := store.Resolve(Request{URL: "/a%20b/%C3%BC.txt", Method: "GET"})
	if response.StatusCode != http.StatusOK || string(response.Body) != "decoded" {
		t.Errorf("status %d body %q", response.StatusCode, response.Body)
	}
	bad := store.Resolve(Request{URL: "/a%zz", Method: "GET"})
	if bad.StatusCode != http.StatusNotFound {
		t.Errorf("undecodable path: status %d, want 404", bad.StatusCode)
	}
}
