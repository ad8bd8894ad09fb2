// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/assets/lib/codec"
	"github.com/bureau-foundation/assets/lib/testutil"
)

// sendRequest connects to a Unix socket, sends a CBOR request, and
// returns the decoded response envelope.
func sendRequest(t *testing.T, socketPath string, request any) Response {
	t.Helper()

	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to socket: %v", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		t.Fatalf("writing request: %v", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return response
}

// decodeData unmarshals the Data field of a response into the given
// target. Fails the test if decoding fails.
func decodeData(t *testing.T, response Response, target any) {
	t.Helper()
	if len(response.Data) == 0 {
		t.Fatal("response has no data to decode")
	}
	if err := codec.Unmarshal(response.Data, target); err != nil {
		t.Fatalf("decoding response data: %v", err)
	}
}

// testLogger routes server logs through t.Log. Every test joins the
// server's goroutines before returning.
func testLogger(t *testing.T) *slog.Logger {
	return testutil.Logger(t)
}

// startServer runs server.Serve until the test ends and waits for the
// socket to be bound. The returned channel receives Serve's result.
func startServer(t *testing.T, server *SocketServer) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx)
	}()
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "socket server did not bind")
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, serveDone, 5*time.Second, "Serve did not return")
	})
	return cancel, serveDone
}

func TestSocketServerStatus(t *testing.T) {
	socketPath := testutil.SocketPath(t, "test.sock")
	server := NewSocketServer(socketPath, testLogger(t), nil)

	server.Handle("status", func(ctx context.Context, peer Peer, raw []byte) (any, error) {
		return map[string]any{
			"files":   42,
			"uploads": 3,
		}, nil
	})
	startServer(t, server)

	response := sendRequest(t, socketPath, map[string]string{"action": "status"})
	if !response.OK {
		t.Fatalf("expected ok=true, got error %q", response.Error)
	}

	var data map[string]any
	decodeData(t, response, &data)
	if data["files"] != uint64(42) {
		t.Errorf("expected files=42, got %v (%T)", data["files"], data["files"])
	}
	if data["uploads"] != uint64(3) {
		t.Errorf("expected uploads=3, got %v (%T)", data["uploads"], data["uploads"])
	}
}

func TestSocketServerPeerCredentials(t *testing.T) {
	socketPath := testutil.SocketPath(t, "peer.sock")
	server := NewSocketServer(socketPath, testLogger(t), nil)

	server.Handle("whoami", func(ctx context.Context, peer Peer, raw []byte) (any, error) {
		return peer, nil
	})
	startServer(t, server)

	response := sendRequest(t, socketPath, map[string]string{"action": "whoami"})
	var peer Peer
	decodeData(t, response, &peer)
	if !peer.Known {
		t.Fatal("peer credentials not reported over a unix socket")
	}
	if peer.UID != uint32(os.Getuid()) {
		t.Errorf("peer uid = %d, want %d", peer.UID, os.Getuid())
	}
	if peer.PID != int32(os.Getpid()) {
		t.Errorf("peer pid = %d, want %d", peer.PID, os.Getpid())
	}
}

func TestSocketServerAuthorizer(t *testing.T) {
	socketPath := testutil.SocketPath(t, "auth.sock")
	var seen []string
	var mu sync.Mutex
	authorizer := AuthorizerFunc(func(peer Peer, action string) error {
		mu.Lock()
		seen = append(seen, action)
		mu.Unlock()
		if action == "forbidden" {
			return fmt.Errorf("uid %d may not %s", peer.UID, action)
		}
		return nil
	})
	server := NewSocketServer(socketPath, testLogger(t), authorizer)

	handlerCalled := false
	server.Handle("forbidden", func(ctx context.Context, peer Peer, raw []byte) (any, error) {
		handlerCalled = true
		return nil, nil
	})
	server.Handle("allowed", func(ctx context.Context, peer Peer, raw []byte) (any, error) {
		return nil, nil
	})
	startServer(t, server)

	denied := sendRequest(t, socketPath, map[string]string{"action": "forbidden"})
	if denied.OK {
		t.Error("expected ok=false for denied action")
	}
	if handlerCalled {
		t.Error("handler ran for a denied action")
	}
	if allowed := sendRequest(t, socketPath, map[string]string{"action": "allowed"}); !allowed.OK {
		t.Errorf("allowed action failed: %s", allowed.Error)
	}

	// Unknown actions are rejected before authorization.
	sendRequest(t, socketPath, map[string]string{"action": "nonexistent"})
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Errorf("authorizer consulted for %v, want forbidden and allowed only", seen)
	}
}

func TestSocketServerUnknownAction(t *testing.T) {
	socketPath := testutil.SocketPath(t, "test.sock")
	server := NewSocketServer(socketPath, testLogger(t), nil)
	server.Handle("status", func(ctx context.Context, peer Peer, raw []byte) (any, error) {
		return nil, nil
	})
	startServer(t, server)

	response := sendRequest(t, socketPath, map[string]string{"action": "nonexistent"})
	if response.OK {
		t.Errorf("expected ok=false, got true")
	}
	if response.Error == "" {
		t.Error("expected error message for unknown action")
	}
}

func TestSocketServerMissingAction(t *testing.T) {
	socketPath := testutil.SocketPath(t, "test.sock")
	server := NewSocketServer(socketPath, testLogger(t), nil)
	startServer(t, server)

	response := sendRequest(t, socketPath, map[string]string{"foo": "bar"})
	if response.OK {
		t.Errorf("expected ok=false, got true")
	}
	if response.Error != "missing required field: action" {
		t.Errorf("unexpected error %q", response.Error)
	}
}

func TestSocketServerInvalidCBOR(t *testing.T) {
	socketPath := testutil.SocketPath(t, "test.sock")
	server := NewSocketServer(socketPath, testLogger(t), nil)
	startServer(t, server)

	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer conn.Close()

	// Send garbage bytes that aren't valid CBOR.
	conn.Write([]byte{0xff, 0xfe, 0xfd, 0xfc, 0xfb})
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if response.OK {
		t.Errorf("expected ok=false for invalid CBOR, got true")
	}
}

func TestSocketServerRequestTooLarge(t *testing.T) {
	socketPath := testutil.SocketPath(t, "test.sock")
	server := NewSocketServer(socketPath, testLogger(t), nil)
	server.MaxRequestSize = 128
	server.Handle("upload", func(ctx context.Context, peer Peer, raw []byte) (any, error) {
		return nil, nil
	})
	startServer(t, server)

	response := sendRequest(t, socketPath, map[string]any{
		"action": "upload",
		"chunk":  make([]byte, 1024),
	})
	if response.OK {
		t.Error("expected oversized request to be rejected")
	}
}

func TestSocketServerHandlerError(t *testing.T) {
	socketPath := testutil.SocketPath(t, "test.sock")
	server := NewSocketServer(socketPath, testLogger(t), nil)
	server.Handle("fail", func(ctx context.Context, peer Peer, raw []byte) (any, error) {
		return nil, fmt.Errorf("something broke")
	})
	startServer(t, server)

	response := sendRequest(t, socketPath, map[string]string{"action": "fail"})
	if response.OK {
		t.Errorf("expected ok=false, got true")
	}
	if response.Error != "something broke" {
		t.Errorf("expected error='something broke', got %q", response.Error)
	}
}

func TestSocketServerNilResult(t *testing.T) {
	socketPath := testutil.SocketPath(t, "test.sock")
	server := NewSocketServer(socketPath, testLogger(t), nil)
	server.Handle("noop", func(ctx context.Context, peer Peer, raw []byte) (any, error) {
		return nil, nil
	})
	startServer(t, server)

	response := sendRequest(t, socketPath, map[string]string{"action": "noop"})
	if !response.OK {
		t.Errorf("expected ok=true, got false")
	}
	if len(response.Data) != 0 {
		t.Errorf("expected no data in response, got %d bytes", len(response.Data))
	}
}

func TestSocketServerConcurrentRequests(t *testing.T) {
	socketPath := testutil.SocketPath(t, "test.sock")
	server := NewSocketServer(socketPath, testLogger(t), nil)
	server.Handle("echo", func(ctx context.Context, peer Peer, raw []byte) (any, error) {
		var request struct {
			Value int `cbor:"value"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return map[string]any{"value": request.Value}, nil
	})
	startServer(t, server)

	const concurrency = 20
	var clientWg sync.WaitGroup
	for i := range concurrency {
		clientWg.Add(1)
		go func() {
			defer clientWg.Done()
			response := sendRequest(t, socketPath, map[string]any{
				"action": "echo",
				"value":  i,
			})
			if !response.OK {
				t.Errorf("request %d: expected ok=true", i)
				return
			}
			var data map[string]any
			if err := codec.Unmarshal(response.Data, &data); err != nil {
				t.Errorf("request %d: decoding: %v", i, err)
				return
			}
			if data["value"] != uint64(i) {
				t.Errorf("request %d: expected value=%d, got %v", i, i, data["value"])
			}
		}()
	}
	clientWg.Wait()
}

func TestSocketServerGracefulShutdown(t *testing.T) {
	socketPath := testutil.SocketPath(t, "test.sock")
	server := NewSocketServer(socketPath, testLogger(t), nil)

	// Handler that blocks until released.
	handlerStarted := make(chan struct{})
	handlerRelease := make(chan struct{})
	server.Handle("slow", func(ctx context.Context, peer Peer, raw []byte) (any, error) {
		close(handlerStarted)
		<-handlerRelease
		return map[string]any{"completed": true}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx)
	}()
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "socket server did not bind")

	responseChan := make(chan Response, 1)
	go func() {
		responseChan <- sendRequest(t, socketPath, map[string]string{"action": "slow"})
	}()

	// Wait for the handler to start, then release it and cancel.
	testutil.RequireClosed(t, handlerStarted, 5*time.Second, "handler did not start")
	close(handlerRelease)
	cancel()

	// The slow request should still complete.
	response := testutil.RequireReceive(t, responseChan, 5*time.Second, "in-flight request did not complete")
	if !response.OK {
		t.Errorf("expected ok=true for in-flight request, got false")
	}
	var data map[string]any
	decodeData(t, response, &data)
	if data["completed"] != true {
		t.Errorf("expected completed=true, got %v", data["completed"])
	}

	if err := testutil.RequireReceive(t, serveDone, 5*time.Second, "Serve did not return after cancellation"); err != nil {
		t.Errorf("Serve returned error: %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket file not cleaned up after Serve returned")
	}
}

func TestSocketServerDuplicateHandlerPanics(t *testing.T) {
	server := NewSocketServer("/tmp/test.sock", testLogger(t), nil)
	server.Handle("foo", func(ctx context.Context, peer Peer, raw []byte) (any, error) {
		return nil, nil
	})

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate handler registration")
		}
	}()
	server.Handle("foo", func(ctx context.Context, peer Peer, raw []byte) (any, error) {
		return nil, nil
	})
}

func TestServeConnOverPipe(t *testing.T) {
	server := NewSocketServer("/unused", testLogger(t), nil)
	server.Handle("whoami", func(ctx context.Context, peer Peer, raw []byte) (any, error) {
		return map[string]any{"known": peer.Known}, nil
	})

	client, serverConn := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.ServeConn(context.Background(), serverConn)
	}()

	if err := codec.NewEncoder(client).Encode(map[string]string{"action": "whoami"}); err != nil {
		t.Fatalf("writing request: %v", err)
	}
	var response Response
	if err := codec.NewDecoder(client).Decode(&response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	client.Close()
	testutil.RequireClosed(t, done, 5*time.Second, "ServeConn did not return")

	var data map[string]any
	decodeData(t, response, &data)
	if data["known"] != false {
		t.Errorf("expected unknown peer over net.Pipe, got %v", data["known"])
	}
}

func TestPeerCredentialsUnsupported(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	if _, err := PeerCredentials(server); !errors.Is(err, ErrUnsupportedConn) {
		t.Errorf("PeerCredentials(pipe) error = %v, want ErrUnsupportedConn", err)
	}
}
