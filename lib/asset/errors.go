// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks a rejected upload argument. The store
	// is unchanged; the caller may correct and resubmit.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound marks a path with no stored file.
	ErrNotFound = errors.New("not found")

	// ErrRange marks a slice request outside the content bounds.
	ErrRange = errors.New("range out of bounds")

	// ErrMissingPage marks content whose pages are not all present.
	// With synchronous page writes this only occurs after external
	// damage to the page table.
	ErrMissingPage = errors.New("missing content page")
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
