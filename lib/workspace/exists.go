// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ExistenceChecker answers whether a file exists inside a repository.
type ExistenceChecker interface {
	Exists(ctx context.Context, repoPath, fileName string, ensureCase bool) (bool, error)
}

// FileSystem checks existence against the host's real filesystem.
type FileSystem struct{}

// Exists reports whether fileName (relative to repoPath) exists. With
// ensureCase, every path component must match an on-disk entry
// exactly, which matters on case-insensitive filesystems where Stat
// succeeds for any casing.
func (FileSystem) Exists(ctx context.Context, repoPath, fileName string, ensureCase bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	target := filepath.Join(filepath.FromSlash(repoPath), filepath.FromSlash(fileName))
	if _, err := os.Stat(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", target, err)
	}
	if !ensureCase {
		return true, nil
	}
	return exactCase(filepath.FromSlash(repoPath), filepath.FromSlash(fileName))
}

// exactCase walks relative one component at a time below base, checking
// each component against the directory listing.
func exactCase(base, relative string) (bool, error) {
	current := base
	for _, component := range strings.Split(filepath.Clean(relative), string(filepath.Separator)) {
		if component == "" || component == "." {
			continue
		}
		if component == ".." {
			current = filepath.Dir(current)
			continue
		}
		entries, err := os.ReadDir(current)
		if err != nil {
			return false, fmt.Errorf("listing %s: %w", current, err)
		}
		found := false
		for _, entry := range entries {
			if entry.Name() == component {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
		current = filepath.Join(current, component)
	}
	return true, nil
}
