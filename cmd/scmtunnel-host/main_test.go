// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/scmtunnel/lib/config"
	"github.com/bureau-foundation/scmtunnel/lib/workspace"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func TestResolveFoldersPrecedence(t *testing.T) {
	dir := t.TempDir()
	workspacePath := filepath.Join(dir, "project.code-workspace")
	content := `{
	// comment
	"folders": [{"path": "api"}, {"path": "web"},],
}`
	if err := os.WriteFile(workspacePath, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	folders, err := resolveFolders(config.HostConfig{Folders: []string{"/src/one"}, WorkspaceFile: workspacePath})
	if err != nil {
		t.Fatalf("resolveFolders: %v", err)
	}
	if len(folders) != 1 || folders[0].Path != "/src/one" {
		t.Errorf("explicit folders did not win: %+v", folders)
	}

	folders, err = resolveFolders(config.HostConfig{WorkspaceFile: workspacePath})
	if err != nil {
		t.Fatalf("resolveFolders: %v", err)
	}
	if len(folders) != 2 || folders[1].Path != filepath.ToSlash(filepath.Join(dir, "web")) || folders[1].Index != 1 {
		t.Errorf("workspace file folders = %+v", folders)
	}

	if _, err := resolveFolders(config.HostConfig{}); err == nil {
		t.Error("resolveFolders with no source succeeded")
	}
}

func TestNewServiceFromConfig(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "repo", ".git"), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	folders, err := workspace.FoldersFromPaths([]string{root})
	if err != nil {
		t.Fatalf("FoldersFromPaths: %v", err)
	}

	hostConfig := config.Default().Host
	service, err := newService(hostConfig, folders, testLogger())
	if err != nil {
		t.Fatalf("newService: %v", err)
	}
	response, err := service.RepositoriesInFolder(context.Background(), "share:///~0")
	if err != nil {
		t.Fatalf("RepositoriesInFolder: %v", err)
	}
	if len(response.Repositories) != 1 || response.Repositories[0].Path != "/~0/repo" {
		t.Errorf("repositories = %+v", response.Repositories)
	}

	hostConfig.Compression.Text = "brotli"
	if _, err := newService(hostConfig, folders, testLogger()); err == nil {
		t.Error("newService accepted an unknown compression")
	}
}
