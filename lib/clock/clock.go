// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the current time. Production code injects Real();
// tests inject Fake() and move time explicitly with Advance.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}
