// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for the scmtunnel
// binaries. It holds the one raw stderr write that happens outside the
// structured logger: reporting the error that ended main(), which may
// predate the logger.
package process
