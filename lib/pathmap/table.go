// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathmap

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bureau-foundation/scmtunnel/lib/vpath"
)

// Entry pairs one real path with its virtual path.
type Entry struct {
	Local  string
	Shared string
}

// Table is the bidirectional mapping for one guest session. It is
// built once from the host's folder list and never mutated; the miss
// counter is the only field written after construction.
type Table struct {
	localToShared map[string]string
	sharedToLocal map[string]string

	localMatcher  *Replacer
	sharedMatcher *Replacer

	misses atomic.Int64
	logger *slog.Logger
}

// NewTable builds a Table from entries. Paths are cleaned before use.
// Two entries claiming the same local or shared path are rejected: the
// table must round-trip in both directions.
func NewTable(entries []Entry, logger *slog.Logger) (*Table, error) {
	table := &Table{
		localToShared: make(map[string]string, len(entries)),
		sharedToLocal: make(map[string]string, len(entries)),
		logger:        logger,
	}
	for _, entry := range entries {
		local := vpath.Clean(entry.Local)
		shared := vpath.Clean(entry.Shared)
		if local == "" || shared == "" {
			return nil, fmt.Errorf("mapping entry %+v has an empty side", entry)
		}
		if existing, duplicate := table.localToShared[local]; duplicate && existing != shared {
			return nil, fmt.Errorf("local path %q maps to both %q and %q", local, existing, shared)
		}
		if existing, duplicate := table.sharedToLocal[shared]; duplicate && existing != local {
			return nil, fmt.Errorf("shared path %q maps to both %q and %q", shared, existing, local)
		}
		table.localToShared[local] = shared
		table.sharedToLocal[shared] = local
	}
	table.localMatcher = NewReplacer(table.localToShared)
	table.sharedMatcher = NewReplacer(table.sharedToLocal)
	return table, nil
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.localToShared)
}

// Entries returns the table's entries in no particular order.
func (t *Table) Entries() []Entry {
	entries := make([]Entry, 0, len(t.localToShared))
	for local, shared := range t.localToShared {
		entries = append(entries, Entry{Local: local, Shared: shared})
	}
	return entries
}

// ToShared looks up the virtual path for an exact local path. On a
// miss it returns local unchanged and false.
func (t *Table) ToShared(local string) (string, bool) {
	if shared, ok := t.localToShared[vpath.Clean(local)]; ok {
		return shared, true
	}
	t.recordMiss("local", local)
	return local, false
}

// ToLocal looks up the real path for an exact virtual path. On a miss
// it returns shared unchanged and false.
func (t *Table) ToLocal(shared string) (string, bool) {
	if local, ok := t.sharedToLocal[vpath.Clean(shared)]; ok {
		return local, true
	}
	t.recordMiss("shared", shared)
	return shared, false
}

// MatchesShared reports whether text contains any known virtual path.
func (t *Table) MatchesShared(text string) bool {
	return t.sharedMatcher.Match(text)
}

// MatchesLocal reports whether text contains any known real path.
func (t *Table) MatchesLocal(text string) bool {
	return t.localMatcher.Match(text)
}

// ReplaceShared rewrites every known virtual path in text to its real
// path. Used on outgoing command arguments.
func (t *Table) ReplaceShared(text string) string {
	replaced, _ := t.sharedMatcher.Replace(text)
	return replaced
}

// ReplaceLocal rewrites every known real path in text to its virtual
// path. Used on incoming command output.
func (t *Table) ReplaceLocal(text string) string {
	replaced, _ := t.localMatcher.Replace(text)
	return replaced
}

// Misses returns how many exact lookups have fallen back to the input.
func (t *Table) Misses() int64 {
	return t.misses.Load()
}

func (t *Table) recordMiss(direction, input string) {
	t.misses.Add(1)
	if t.logger != nil {
		t.logger.Debug("path mapping miss", "direction", direction, "path", input)
	}
}
