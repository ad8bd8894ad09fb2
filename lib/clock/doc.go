// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for testability.
//
// The asset directory stamps every file with creation and modification
// times. Production code takes a Clock instead of calling time.Now so
// that tests can pin those timestamps:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	store := asset.NewStore(asset.Config{Clock: c, ...})
//	c.Advance(time.Minute)
package clock
