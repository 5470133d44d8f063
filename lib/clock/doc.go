// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the wall clock for code that measures
// durations. Production code injects [Real]; tests inject [Fake] and
// move time explicitly with Advance.
//
// Socket deadlines are not routed through this package: they are
// enforced by the kernel against real time.
package clock
