// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers: bounded channel
// waits, short socket paths, and a logger routed through t.Log.
package testutil
