// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package scm is the execution capability behind the tunnel: it runs
// version-control commands on the host and describes their arguments
// and results.
//
// Command arguments are a tagged variant ([Argument]) rather than bare
// strings. Flags are opaque and never rewritten; the literal "--"
// separator divides flags from path arguments; everything after it is
// path-bearing. [ParseArguments] applies that rule to a plain argv.
//
// [GitRunner] executes git through os/exec. The context passed to Run
// is bound to the child process, so cancelling a tunnel request kills
// the git process it started.
package scm
