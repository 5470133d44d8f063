// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspace provides the host-side filesystem capabilities the
// tunnel host consumes: the list of collaboration folders, the set of
// repositories inside them, and file-existence checks.
//
// Folders come either from an explicit list or from a VS Code style
// ".code-workspace" file, which is JSON with comments and trailing
// commas. A folder's index is its position in that list and is stable
// for the life of the process.
package workspace
