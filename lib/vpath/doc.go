// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package vpath implements the virtual address scheme shared by the
// tunnel host and guest.
//
// Each collaboration root folder is given a root alias "/~<index>",
// where index is the folder's stable position for the session. A real
// path under that folder is addressed as the alias followed by the
// path relative to the folder root, always with forward slashes:
//
//	folder 0 = /home/alice/project
//	/home/alice/project           -> /~0
//	/home/alice/project/src/a.go  -> /~0/src/a.go
//
// The index is the only identifier embedded in a virtual path, so
// folder indices must be unique within a [Scheme].
//
// Conversion never fails loudly. A path outside every folder, or a
// virtual path with an unknown index or a malformed prefix, is
// returned unchanged with ok=false. Callers treat such paths as
// already belonging to the other namespace.
package vpath
