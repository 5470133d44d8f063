// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"github.com/bureau-foundation/scmtunnel/lib/codec"
	"github.com/bureau-foundation/scmtunnel/lib/scm"
)

// Action names. These are protocol constants shared by both peers.
const (
	ActionRunCommand           = "run-command"
	ActionRepositoriesInFolder = "repositories-in-folder"
	ActionFileExists           = "file-exists"
	ActionWorkspacePaths       = "workspace-paths"
)

// Actions lists every action a host serves.
var Actions = []string{
	ActionRunCommand,
	ActionRepositoriesInFolder,
	ActionFileExists,
	ActionWorkspacePaths,
}

// RunCommandRequest asks the host to run one command.
type RunCommandRequest struct {
	Options scm.Options    `cbor:"options"`
	Args    []scm.Argument `cbor:"args"`
}

// RunCommandResponse carries the command's standard output. Binary
// output must reach the caller byte-for-byte; only text output is
// eligible for path rewriting.
type RunCommandResponse struct {
	Payload  codec.Payload `cbor:"payload"`
	IsBinary bool          `cbor:"is_binary"`
}

// RepositoriesInFolderRequest names a folder by its shared URI.
type RepositoriesInFolderRequest struct {
	FolderURI string `cbor:"folder_uri"`
}

// RepositoryDescriptor is a repository in virtual form.
type RepositoryDescriptor struct {
	FolderURI string `cbor:"folder_uri"`
	Path      string `cbor:"path"`
	IsRoot    bool   `cbor:"is_root"`
	IsClosed  bool   `cbor:"is_closed"`
}

// RepositoriesInFolderResponse lists the repositories under the
// requested folder, in the host's iteration order.
type RepositoriesInFolderResponse struct {
	Repositories []RepositoryDescriptor `cbor:"repositories"`
}

// FileExistsOptions tunes a file-exists check.
type FileExistsOptions struct {
	EnsureCase bool `cbor:"ensure_case"`
}

// FileExistsRequest asks whether fileName exists under repoPath.
type FileExistsRequest struct {
	RepoPath string            `cbor:"repo_path"`
	FileName string            `cbor:"file_name"`
	Options  FileExistsOptions `cbor:"options"`
}

// FileExistsResponse is the answer to a FileExistsRequest.
type FileExistsResponse struct {
	Exists bool `cbor:"exists"`
}

// PathPair is one folder's real and virtual URI.
type PathPair struct {
	LocalURI  string `cbor:"local_uri"`
	SharedURI string `cbor:"shared_uri"`
}

// WorkspacePathsResponse lists every open folder. The action takes no
// request body.
type WorkspacePathsResponse struct {
	Paths []PathPair `cbor:"paths"`
}
