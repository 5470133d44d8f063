// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/scmtunnel/lib/vpath"
)

// Repository is a repository known to the host, keyed by its real root.
type Repository struct {
	// Path is the real path of the repository's working tree root.
	Path string

	// IsRoot is true when the repository root is itself a workspace
	// folder root.
	IsRoot bool

	// IsClosed is true when the repository was discovered but the host
	// has closed it.
	IsClosed bool
}

// RepositorySource enumerates the host's known repositories.
type RepositorySource interface {
	Repositories(ctx context.Context) ([]Repository, error)
}

// defaultMaxDepth bounds how far below a folder root discovery looks.
const defaultMaxDepth = 3

// skippedDirectories are never descended into during discovery.
var skippedDirectories = map[string]bool{
	".git":         true,
	"node_modules": true,
	".hg":          true,
	".svn":         true,
}

// Discoverer finds repositories by walking each folder for ".git"
// entries (directories for ordinary clones, files for worktrees and
// submodules).
type Discoverer struct {
	Folders FolderSource

	// MaxDepth is the deepest directory level searched below each
	// folder root. Zero uses defaultMaxDepth.
	MaxDepth int

	// Closed lists repository roots reported with IsClosed set.
	Closed []string

	Logger *slog.Logger
}

// Repositories walks every folder in index order. Results are in walk
// order and each repository appears once even when folders nest.
func (d *Discoverer) Repositories(ctx context.Context) ([]Repository, error) {
	maxDepth := d.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	closed := make(map[string]bool, len(d.Closed))
	for _, path := range d.Closed {
		closed[vpath.Clean(path)] = true
	}

	folders := d.Folders.Folders()
	folderRoots := make(map[string]bool, len(folders))
	for _, folder := range folders {
		folderRoots[vpath.Clean(folder.Path)] = true
	}

	seen := make(map[string]bool)
	var repositories []Repository
	for _, folder := range folders {
		root := filepath.FromSlash(folder.Path)
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if path == root {
					return err
				}
				if d.Logger != nil {
					d.Logger.Debug("skipping unreadable directory", "path", path, "error", err)
				}
				return fs.SkipDir
			}
			if !entry.IsDir() {
				return nil
			}
			if path != root && skippedDirectories[entry.Name()] {
				return fs.SkipDir
			}
			if depth(root, path) > maxDepth {
				return fs.SkipDir
			}
			if !hasGitEntry(path) {
				return nil
			}
			clean := vpath.Clean(path)
			if seen[clean] {
				return nil
			}
			seen[clean] = true
			repositories = append(repositories, Repository{
				Path:     clean,
				IsRoot:   folderRoots[clean],
				IsClosed: closed[clean],
			})
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if d.Logger != nil {
				d.Logger.Warn("repository discovery failed for folder",
					"folder", folder.Path,
					"error", err,
				)
			}
		}
	}
	return repositories, nil
}

func hasGitEntry(dir string) bool {
	_, err := os.Lstat(filepath.Join(dir, ".git"))
	return err == nil
}

func depth(root, path string) int {
	relative, err := filepath.Rel(root, path)
	if err != nil || relative == "." {
		return 0
	}
	return strings.Count(relative, string(filepath.Separator)) + 1
}

// StaticRepositories is a fixed repository list.
type StaticRepositories []Repository

// Repositories returns the list.
func (s StaticRepositories) Repositories(context.Context) ([]Repository, error) {
	return s, nil
}
