// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pathmap holds the guest's bidirectional table between real
// host paths ("local") and virtual paths ("shared"), and the
// substitution engine that rewrites every known path embedded in a
// larger string.
//
// Substitution uses a [Replacer]: a byte trie over every known path
// with separator-insensitive matching ('/' and '\' are equivalent).
// At each position the longest known path wins, and a match is only
// taken when it sits on path boundaries on both sides, so an entry for
// "/home/a" never rewrites part of "/home/ab", and "/~1" never rewrites
// part of "/~10". Text is scanned once, left to right, and replaced
// output is never rescanned, so nothing is translated twice.
//
// Lookups that find no entry leave their input unchanged. That is the
// intended policy (unmapped paths live outside the shared namespace),
// but a miss can also mean an encoding mismatch, so the table counts
// misses and logs each at debug level.
package pathmap
