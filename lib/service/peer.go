// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Peer identifies the process on the other end of a Unix socket
// connection, as reported by the kernel (SO_PEERCRED). Known is false
// when the connection is not a Unix socket, as with net.Pipe in tests.
type Peer struct {
	PID   int32
	UID   uint32
	GID   uint32
	Known bool
}

// ErrUnsupportedConn is returned by PeerCredentials for connections
// that are not Unix domain sockets.
var ErrUnsupportedConn = errors.New("peer credentials require a unix socket")

// PeerCredentials reads the kernel-verified credentials of the peer
// connected to conn.
func PeerCredentials(conn net.Conn) (Peer, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return Peer{}, ErrUnsupportedConn
	}
	rawConn, err := unixConn.SyscallConn()
	if err != nil {
		return Peer{}, fmt.Errorf("accessing socket: %w", err)
	}

	var credentials *unix.Ucred
	var credentialsErr error
	if err := rawConn.Control(func(fd uintptr) {
		credentials, credentialsErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return Peer{}, fmt.Errorf("accessing socket descriptor: %w", err)
	}
	if credentialsErr != nil {
		return Peer{}, fmt.Errorf("reading SO_PEERCRED: %w", credentialsErr)
	}
	return Peer{
		PID:   credentials.Pid,
		UID:   credentials.Uid,
		GID:   credentials.Gid,
		Known: true,
	}, nil
}

// Authorizer decides whether peer may invoke action. A non-nil error
// is returned to the client as the failure message.
type Authorizer interface {
	Authorize(peer Peer, action string) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(peer Peer, action string) error

func (f AuthorizerFunc) Authorize(peer Peer, action string) error {
	return f(peer, action)
}
