// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package guest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/bureau-foundation/scmtunnel/lib/pathmap"
	"github.com/bureau-foundation/scmtunnel/lib/scm"
	"github.com/bureau-foundation/scmtunnel/lib/tunnel"
	"github.com/bureau-foundation/scmtunnel/lib/vpath"
)

// rootAlias is the virtual root of the first workspace folder. Path
// arguments given relative to it arrive with a leading separator that
// must be dropped.
var rootAlias = vpath.RootAlias(0)

// Session is one guest's view of a host. Safe for concurrent use.
type Session struct {
	caller    tunnel.Caller
	logger    *slog.Logger
	table     atomic.Pointer[pathmap.Table]
	available atomic.Bool
}

// NewSession returns a Session that reaches the host through caller.
func NewSession(caller tunnel.Caller, logger *slog.Logger) *Session {
	return &Session{caller: caller, logger: logger}
}

// EnsureMapped returns the session's mapping table, building it with
// one workspace-paths call if it does not exist yet. Concurrent first
// calls may each build a table; they are built from the same answer
// and the last one stored wins.
func (s *Session) EnsureMapped(ctx context.Context) (*pathmap.Table, error) {
	if table := s.table.Load(); table != nil {
		return table, nil
	}

	var response tunnel.WorkspacePathsResponse
	if err := s.caller.Call(ctx, tunnel.ActionWorkspacePaths, nil, &response); err != nil {
		return nil, err
	}

	entries := make([]pathmap.Entry, 0, len(response.Paths))
	for _, pair := range response.Paths {
		local, err := vpath.PathFromURI(pair.LocalURI)
		if err != nil {
			return nil, fmt.Errorf("workspace path: %w", err)
		}
		shared, err := vpath.PathFromURI(pair.SharedURI)
		if err != nil {
			return nil, fmt.Errorf("workspace path: %w", err)
		}
		entries = append(entries, pathmap.Entry{Local: local, Shared: shared})
	}
	table, err := pathmap.NewTable(entries, s.logger)
	if err != nil {
		return nil, fmt.Errorf("building path mapping: %w", err)
	}

	s.logger.Debug("path mapping built", "folders", table.Len())
	s.table.Store(table)
	return table, nil
}

// RunCommand runs a command on the host. The working directory and
// every path argument are translated to real paths; text output is
// translated back to virtual paths. Host failures are returned
// unchanged, as *tunnel.RemoteError.
func (s *Session) RunCommand(ctx context.Context, options scm.Options, arguments []scm.Argument) (scm.Result, error) {
	table, err := s.EnsureMapped(ctx)
	if err != nil {
		return scm.Result{}, err
	}

	request := tunnel.RunCommandRequest{
		Options: options,
		Args:    rewriteArguments(table, options.Cwd, arguments),
	}
	if options.Cwd != "" {
		request.Options.Cwd, _ = table.ToLocal(options.Cwd)
	}

	var response tunnel.RunCommandResponse
	if err := s.caller.Call(ctx, tunnel.ActionRunCommand, request, &response); err != nil {
		return scm.Result{}, err
	}

	output, err := response.Payload.Open()
	if err != nil {
		return scm.Result{}, fmt.Errorf("run-command output: %w", err)
	}
	if response.IsBinary {
		return scm.Result{Output: output, Binary: true}, nil
	}
	if len(output) > 0 {
		output = []byte(table.ReplaceLocal(string(output)))
	}
	return scm.Result{Output: output}, nil
}

// rewriteArguments returns a copy of arguments with every path
// argument translated to real paths. Flags and the separator are
// opaque. cwd is the working directory as the caller gave it, in
// virtual form.
func rewriteArguments(table *pathmap.Table, cwd string, arguments []scm.Argument) []scm.Argument {
	stripLeading := cwd == rootAlias
	rewritten := make([]scm.Argument, len(arguments))
	for i, argument := range arguments {
		if argument.Kind == scm.KindPath {
			value := argument.Value
			if stripLeading && startsWithSeparator(value) {
				value = value[1:]
			}
			argument.Value = table.ReplaceShared(value)
		}
		rewritten[i] = argument
	}
	return rewritten
}

func startsWithSeparator(value string) bool {
	return strings.HasPrefix(value, "/") || strings.HasPrefix(value, `\`)
}

// RepositoriesInFolder lists the host's repositories under the folder
// named by a shared URI. Each handle calls onChange, which may be nil,
// from NotifyChanged.
func (s *Session) RepositoriesInFolder(ctx context.Context, folderURI string, onChange func(*Repository)) ([]*Repository, error) {
	var response tunnel.RepositoriesInFolderResponse
	err := s.caller.Call(ctx, tunnel.ActionRepositoriesInFolder, tunnel.RepositoriesInFolderRequest{
		FolderURI: folderURI,
	}, &response)
	if err != nil {
		return nil, err
	}

	repositories := make([]*Repository, 0, len(response.Repositories))
	for _, descriptor := range response.Repositories {
		repositories = append(repositories, newRepository(descriptor, onChange))
	}
	return repositories, nil
}

// FileExists asks the host whether fileName exists in the repository
// at repoPath. A virtual repoPath is translated first.
func (s *Session) FileExists(ctx context.Context, repoPath, fileName string, options tunnel.FileExistsOptions) (bool, error) {
	table, err := s.EnsureMapped(ctx)
	if err != nil {
		return false, err
	}
	if table.MatchesShared(repoPath) {
		repoPath = table.ReplaceShared(repoPath)
	}

	var response tunnel.FileExistsResponse
	err = s.caller.Call(ctx, tunnel.ActionFileExists, tunnel.FileExistsRequest{
		RepoPath: repoPath,
		FileName: fileName,
		Options:  options,
	}, &response)
	if err != nil {
		return false, err
	}
	return response.Exists, nil
}

// SetAvailable records whether the host is reachable. The transition
// is logged and otherwise has no effect.
func (s *Session) SetAvailable(available bool) {
	if s.available.Swap(available) != available {
		s.logger.Info("guest service availability changed", "available", available)
	}
}

// Available reports the last value passed to SetAvailable.
func (s *Session) Available() bool {
	return s.available.Load()
}
