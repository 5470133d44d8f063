// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Scmtunnel-host serves a workspace's git repositories to guests over
// the tunnel. It listens on a Unix socket (or a TCP address), runs git
// in real-path space, and answers folder, repository, and file-exists
// queries.
//
// Workspace folders come from --folder flags, the config file's
// host.folders list, or a .code-workspace file, in that order of
// precedence. Folder indices follow the order given.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/scmtunnel/lib/clock"
	"github.com/bureau-foundation/scmtunnel/lib/codec"
	"github.com/bureau-foundation/scmtunnel/lib/config"
	"github.com/bureau-foundation/scmtunnel/lib/host"
	"github.com/bureau-foundation/scmtunnel/lib/logging"
	"github.com/bureau-foundation/scmtunnel/lib/process"
	"github.com/bureau-foundation/scmtunnel/lib/scm"
	"github.com/bureau-foundation/scmtunnel/lib/tunnel"
	"github.com/bureau-foundation/scmtunnel/lib/version"
	"github.com/bureau-foundation/scmtunnel/lib/workspace"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath    string
		socketPath    string
		listenAddress string
		folders       []string
		workspaceFile string
		logLevel      string
	)

	flagSet := pflag.NewFlagSet("scmtunnel-host", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to scmtunnel.yaml (default: $SCMTUNNEL_CONFIG)")
	flagSet.StringVar(&socketPath, "socket", "", "Unix socket to listen on (overrides host.socket)")
	flagSet.StringVar(&listenAddress, "listen", "", "TCP address to listen on instead of a Unix socket")
	flagSet.StringArrayVar(&folders, "folder", nil, "workspace folder to share (repeatable; overrides host.folders)")
	flagSet.StringVar(&workspaceFile, "workspace-file", "", "read workspace folders from a .code-workspace file")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides logging.level)")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("scmtunnel-host")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if socketPath != "" {
		cfg.Host.Socket = socketPath
	}
	if listenAddress != "" {
		cfg.Host.Listen = listenAddress
	}
	if len(folders) > 0 {
		cfg.Host.Folders = folders
	}
	if workspaceFile != "" {
		cfg.Host.WorkspaceFile = workspaceFile
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	cfg.ExpandVariables()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return err
	}
	logger = logger.With("component", "scmtunnel-host")

	folderSource, err := resolveFolders(cfg.Host)
	if err != nil {
		return err
	}
	for _, folder := range folderSource.Folders() {
		logger.Info("sharing folder", "index", folder.Index, "path", folder.Path)
	}

	service, err := newService(cfg.Host, folderSource, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	network, address := "unix", cfg.Host.Socket
	if cfg.Host.Listen != "" {
		network, address = "tcp", cfg.Host.Listen
	}
	listener, err := tunnel.Listen(network, address)
	if err != nil {
		return err
	}

	server := tunnel.NewServer(logger)
	server.AllowUIDs(cfg.Host.AllowedUIDs)
	server.Use(tunnel.LoggingMiddleware(logger, clock.Real()))
	service.Register(server)

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx, listener)
	}()

	service.SetAvailable(true)
	logger.Info("host running", "network", network, "address", address, "version", version.Info())

	<-ctx.Done()
	service.SetAvailable(false)
	logger.Info("shutting down")

	if err := <-serveDone; err != nil {
		logger.Error("tunnel server error", "error", err)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func resolveFolders(hostConfig config.HostConfig) (workspace.StaticFolders, error) {
	switch {
	case len(hostConfig.Folders) > 0:
		return workspace.FoldersFromPaths(hostConfig.Folders)
	case hostConfig.WorkspaceFile != "":
		return workspace.LoadWorkspaceFile(hostConfig.WorkspaceFile)
	default:
		return nil, fmt.Errorf("no workspace folders: pass --folder or --workspace-file, or set host.folders")
	}
}

func newService(hostConfig config.HostConfig, folders workspace.FolderSource, logger *slog.Logger) (*host.Service, error) {
	textCompression, err := codec.ParseCompression(hostConfig.Compression.Text)
	if err != nil {
		return nil, err
	}
	binaryCompression, err := codec.ParseCompression(hostConfig.Compression.Binary)
	if err != nil {
		return nil, err
	}

	runner := scm.NewGitRunner(hostConfig.Git.Binary)
	runner.Env = hostConfig.Git.Env

	return host.NewService(host.Config{
		Runner: runner,
		Repositories: &workspace.Discoverer{
			Folders:  folders,
			MaxDepth: hostConfig.Discovery.MaxDepth,
			Closed:   hostConfig.Discovery.Closed,
			Logger:   logger,
		},
		Files:                workspace.FileSystem{},
		Folders:              folders,
		Logger:               logger,
		CompressionThreshold: hostConfig.Compression.Threshold,
		TextCompression:      textCompression,
		BinaryCompression:    binaryCompression,
	})
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `scmtunnel-host: serve a workspace's git repositories to remote guests.

Guests see each workspace folder as /~<index>; this process sees and
runs git against the real paths.

Usage:
  scmtunnel-host [flags]

Flags:
%s
Configuration is read from --config or $SCMTUNNEL_CONFIG.
`, flagSet.FlagUsages())
}
