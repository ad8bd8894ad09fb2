// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides shared infrastructure for Bureau services.
//
// A service is a standalone Go binary exposing a CBOR request-response
// API on a Unix socket, optionally alongside an HTTP listener. This
// package extracts the scaffolding every service needs:
//
//   - Socket server: one CBOR request and one {ok, error, data}
//     response per connection, action dispatch, connection timeouts,
//     and graceful shutdown.
//   - Peer credentials: the kernel-reported pid/uid/gid of the socket
//     peer (SO_PEERCRED), handed to an Authorizer before each action.
//   - Client: the matching one-shot socket client.
//   - HTTP server: TCP listener lifecycle with readiness signalling
//     and graceful shutdown.
//   - Logger: the JSON slog handler on stderr shared by all services.
//
// Services compose these utilities in their own main() function rather
// than subclassing a framework. The package provides building blocks,
// not a runtime.
package service
