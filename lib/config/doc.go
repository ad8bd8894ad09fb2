// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the asset
// service.
//
// Configuration is loaded from a single file specified by either the
// BUREAU_ASSETS_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks and no automatic file
// search. Command-line flags may override individual values after
// loading; environment variables never do.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production defaults to synchronous
// badger writes.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${BUREAU_ROOT}, and ${VAR:-default} patterns are expanded.
//
// This package depends on no other Bureau packages.
package config
