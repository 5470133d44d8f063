// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package host is the authoritative end of the tunnel. It runs on the
// peer that owns the filesystem and the git binary, answers the four
// tunnel actions, and executes commands in real-path space. It never
// rewrites command arguments or output: translating paths into the
// virtual namespace is the guest's job.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/bureau-foundation/scmtunnel/lib/codec"
	"github.com/bureau-foundation/scmtunnel/lib/scm"
	"github.com/bureau-foundation/scmtunnel/lib/tunnel"
	"github.com/bureau-foundation/scmtunnel/lib/vpath"
	"github.com/bureau-foundation/scmtunnel/lib/workspace"
)

// Config wires the host to its capabilities.
type Config struct {
	Runner       scm.Runner
	Repositories workspace.RepositorySource
	Files        workspace.ExistenceChecker
	Folders      workspace.FolderSource
	Logger       *slog.Logger

	// CompressionThreshold is the output size in bytes at or above
	// which command output is compressed. Zero disables compression.
	CompressionThreshold int

	// TextCompression and BinaryCompression select the algorithm for
	// text and binary output above the threshold.
	TextCompression   codec.Compression
	BinaryCompression codec.Compression
}

// Service implements the host side of every tunnel action.
type Service struct {
	config    Config
	logger    *slog.Logger
	available atomic.Bool
}

// NewService returns a Service. Every capability in config is
// required.
func NewService(config Config) (*Service, error) {
	switch {
	case config.Runner == nil:
		return nil, fmt.Errorf("host: Runner is required")
	case config.Repositories == nil:
		return nil, fmt.Errorf("host: Repositories is required")
	case config.Files == nil:
		return nil, fmt.Errorf("host: Files is required")
	case config.Folders == nil:
		return nil, fmt.Errorf("host: Folders is required")
	case config.Logger == nil:
		return nil, fmt.Errorf("host: Logger is required")
	}
	return &Service{config: config, logger: config.Logger}, nil
}

// Register installs the service's handlers on server.
func (s *Service) Register(server *tunnel.Server) {
	server.Handle(tunnel.ActionRunCommand, tunnel.Typed(s.runCommand))
	server.Handle(tunnel.ActionRepositoriesInFolder, tunnel.Typed(s.repositoriesInFolder))
	server.Handle(tunnel.ActionFileExists, tunnel.Typed(s.fileExists))
	server.Handle(tunnel.ActionWorkspacePaths, func(ctx context.Context, _ []byte) (any, error) {
		return s.WorkspacePaths(ctx)
	})
}

// SetAvailable records whether the workspace is currently shared. The
// transition is logged and otherwise has no effect.
func (s *Service) SetAvailable(available bool) {
	if s.available.Swap(available) != available {
		s.logger.Info("host service availability changed", "available", available)
	}
}

// Available reports the last value passed to SetAvailable.
func (s *Service) Available() bool {
	return s.available.Load()
}

func (s *Service) runCommand(ctx context.Context, request tunnel.RunCommandRequest) (any, error) {
	return s.RunCommand(ctx, request.Options, request.Args)
}

// RunCommand executes arguments verbatim. Execution failures are
// returned unchanged and reach the guest as remote errors.
func (s *Service) RunCommand(ctx context.Context, options scm.Options, arguments []scm.Argument) (tunnel.RunCommandResponse, error) {
	result, err := s.config.Runner.Run(ctx, options, arguments)
	if err != nil {
		return tunnel.RunCommandResponse{}, err
	}

	compression := codec.CompressionNone
	if s.config.CompressionThreshold > 0 && len(result.Output) >= s.config.CompressionThreshold {
		compression = s.config.TextCompression
		if result.Binary {
			compression = s.config.BinaryCompression
		}
	}
	payload, err := codec.SealPayload(result.Output, compression)
	if err != nil {
		return tunnel.RunCommandResponse{}, fmt.Errorf("encoding command output: %w", err)
	}
	return tunnel.RunCommandResponse{Payload: payload, IsBinary: result.Binary}, nil
}

func (s *Service) repositoriesInFolder(ctx context.Context, request tunnel.RepositoriesInFolderRequest) (any, error) {
	return s.RepositoriesInFolder(ctx, request.FolderURI)
}

// RepositoriesInFolder lists the repositories rooted at or below the
// folder named by a shared URI, in the repository source's order.
func (s *Service) RepositoriesInFolder(ctx context.Context, folderURI string) (tunnel.RepositoriesInFolderResponse, error) {
	scheme, err := s.scheme()
	if err != nil {
		return tunnel.RepositoriesInFolderResponse{}, err
	}

	virtual, err := vpath.PathFromURI(folderURI)
	if err != nil {
		return tunnel.RepositoriesInFolderResponse{}, err
	}
	realPath, _ := scheme.ToReal(virtual)
	prefix := comparisonKey(realPath)

	repositories, err := s.config.Repositories.Repositories(ctx)
	if err != nil {
		return tunnel.RepositoriesInFolderResponse{}, fmt.Errorf("listing repositories: %w", err)
	}

	response := tunnel.RepositoriesInFolderResponse{
		Repositories: []tunnel.RepositoryDescriptor{},
	}
	for _, repository := range repositories {
		if !underPrefix(comparisonKey(repository.Path), prefix) {
			continue
		}
		folder, ok := scheme.Contains(repository.Path)
		if !ok {
			s.logger.Debug("skipping repository outside every shared folder",
				"path", repository.Path,
				"request_id", tunnel.RequestID(ctx),
			)
			continue
		}
		shared, _ := scheme.ToVirtual(repository.Path)
		response.Repositories = append(response.Repositories, tunnel.RepositoryDescriptor{
			FolderURI: vpath.SharedURI(vpath.RootAlias(folder.Index)),
			Path:      shared,
			IsRoot:    repository.IsRoot,
			IsClosed:  repository.IsClosed,
		})
	}
	return response, nil
}

// comparisonKey normalizes a path for prefix comparison: forward
// slashes, lower case, no trailing separator.
func comparisonKey(p string) string {
	return strings.TrimRight(strings.ToLower(vpath.ToSlash(p)), "/")
}

// underPrefix reports whether p is prefix itself or a descendant. A
// sibling sharing the prefix as a string ("/home/ab" for "/home/a")
// does not count.
func underPrefix(p, prefix string) bool {
	return strings.HasPrefix(p+"/", prefix+"/")
}

func (s *Service) fileExists(ctx context.Context, request tunnel.FileExistsRequest) (any, error) {
	return s.FileExists(ctx, request.RepoPath, request.FileName, request.Options)
}

// FileExists delegates to the existence capability with the real
// repository path the guest sent.
func (s *Service) FileExists(ctx context.Context, repoPath, fileName string, options tunnel.FileExistsOptions) (tunnel.FileExistsResponse, error) {
	exists, err := s.config.Files.Exists(ctx, repoPath, fileName, options.EnsureCase)
	if err != nil {
		return tunnel.FileExistsResponse{}, err
	}
	return tunnel.FileExistsResponse{Exists: exists}, nil
}

// WorkspacePaths returns the real and shared URI of every open folder,
// ordered by folder index.
func (s *Service) WorkspacePaths(ctx context.Context) (tunnel.WorkspacePathsResponse, error) {
	scheme, err := s.scheme()
	if err != nil {
		return tunnel.WorkspacePathsResponse{}, err
	}
	folders := scheme.Folders()
	response := tunnel.WorkspacePathsResponse{Paths: make([]tunnel.PathPair, 0, len(folders))}
	for _, folder := range folders {
		response.Paths = append(response.Paths, tunnel.PathPair{
			LocalURI:  vpath.LocalURI(folder.Path),
			SharedURI: vpath.SharedURI(vpath.RootAlias(folder.Index)),
		})
	}
	return response, nil
}

// scheme builds the address scheme from the current folder list. The
// folder source may change between calls, so nothing is cached.
func (s *Service) scheme() (*vpath.Scheme, error) {
	scheme, err := vpath.NewScheme(s.config.Folders.Folders())
	if err != nil {
		return nil, fmt.Errorf("workspace folders: %w", err)
	}
	return scheme, nil
}
