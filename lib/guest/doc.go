// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package guest is the calling end of the tunnel. A [Session] presents
// the host's version-control operations in the guest's virtual
// namespace: paths in outgoing working directories and path arguments
// are rewritten from virtual to real before a request is sent, and
// paths in text output are rewritten from real to virtual before the
// result is returned. Binary output is never rewritten.
//
// The path mapping table is built lazily from one workspace-paths call
// on first use and kept for the life of the session. Folders the host
// opens after that are not picked up.
//
// Lookup misses are not errors: a path with no mapping passes through
// unchanged. [pathmap.Table.Misses] counts them.
package guest
