// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/scmtunnel/lib/vpath"
)

// FolderSource reports the currently open collaboration folders.
type FolderSource interface {
	Folders() []vpath.Folder
}

// StaticFolders is a fixed folder list.
type StaticFolders []vpath.Folder

// Folders returns the list.
func (s StaticFolders) Folders() []vpath.Folder {
	return s
}

// FoldersFromPaths assigns indices to paths in order. Relative paths
// are resolved against the current directory.
func FoldersFromPaths(paths []string) (StaticFolders, error) {
	folders := make(StaticFolders, 0, len(paths))
	for index, path := range paths {
		absolute, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolving folder %q: %w", path, err)
		}
		folders = append(folders, vpath.Folder{Index: index, Path: vpath.Clean(absolute)})
	}
	return folders, nil
}

// workspaceFile is the subset of a .code-workspace file we read.
type workspaceFile struct {
	Folders []struct {
		Path string `json:"path"`
		URI  string `json:"uri"`
		Name string `json:"name"`
	} `json:"folders"`
}

// LoadWorkspaceFile reads folders from a .code-workspace file. Folder
// entries may give a "path" (relative to the workspace file's
// directory, or absolute) or a file "uri".
func LoadWorkspaceFile(path string) (StaticFolders, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workspace file: %w", err)
	}
	folders, err := ParseWorkspaceFile(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("workspace file %s: %w", path, err)
	}
	return folders, nil
}

// ParseWorkspaceFile parses .code-workspace content. Relative folder
// paths are resolved against baseDir.
func ParseWorkspaceFile(data []byte, baseDir string) (StaticFolders, error) {
	var parsed workspaceFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &parsed); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}

	paths := make([]string, 0, len(parsed.Folders))
	for i, folder := range parsed.Folders {
		switch {
		case folder.Path != "":
			path := folder.Path
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			paths = append(paths, path)
		case folder.URI != "":
			path, err := vpath.PathFromURI(folder.URI)
			if err != nil {
				return nil, fmt.Errorf("folder %d: %w", i, err)
			}
			paths = append(paths, path)
		default:
			return nil, fmt.Errorf("folder %d has neither path nor uri", i)
		}
	}
	return FoldersFromPaths(paths)
}
