// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-asset is the command-line client for bureau-asset-service.
//
// It talks to the service over its Unix socket:
//
//	bureau-asset upload ./dist/index.html /index.html
//	bureau-asset download /index.html -o index.html
//	bureau-asset list
//	bureau-asset delete /old.js /old.css
//	bureau-asset trust on
//
// Uploads are hashed locally, split into chunks and sent in batches.
// Downloads follow the service's continuation tokens so files larger
// than one response window stream to disk.
package main
