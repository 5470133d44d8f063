// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Scmtunnel-guest runs git operations against a remote scmtunnel-host
// as if the repositories were local. Paths are given and printed in the
// virtual namespace: /~0 is the host's first workspace folder, /~1 the
// second, and so on.
//
//	scmtunnel-guest run --cwd /~0 -- status --porcelain
//	scmtunnel-guest run --cwd /~0 -- diff -- /~0/README.md
//	scmtunnel-guest repos share:///~0
//	scmtunnel-guest exists /~1 go.mod --ensure-case
//	scmtunnel-guest paths
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/scmtunnel/lib/clock"
	"github.com/bureau-foundation/scmtunnel/lib/config"
	"github.com/bureau-foundation/scmtunnel/lib/guest"
	"github.com/bureau-foundation/scmtunnel/lib/logging"
	"github.com/bureau-foundation/scmtunnel/lib/process"
	"github.com/bureau-foundation/scmtunnel/lib/scm"
	"github.com/bureau-foundation/scmtunnel/lib/tunnel"
	"github.com/bureau-foundation/scmtunnel/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

// environment is what every subcommand needs.
type environment struct {
	caller  tunnel.Caller
	session *guest.Session
	logger  *slog.Logger
	stdout  io.Writer
}

type command struct {
	summary string
	run     func(ctx context.Context, env *environment, args []string) error
}

var commands = map[string]command{
	"run":    {"run a git command on the host", runCommand},
	"repos":  {"list repositories under a folder URI", reposCommand},
	"exists": {"check whether a file exists in a repository", existsCommand},
	"paths":  {"list the host's workspace folders", pathsCommand},
}

var commandOrder = []string{"run", "repos", "exists", "paths"}

func run() error {
	var (
		configPath     string
		socketPath     string
		connectAddress string
		logLevel       string
	)

	flagSet := pflag.NewFlagSet("scmtunnel-guest", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&configPath, "config", "", "path to scmtunnel.yaml (default: $SCMTUNNEL_CONFIG)")
	flagSet.StringVar(&socketPath, "socket", "", "host's Unix socket (overrides guest.socket)")
	flagSet.StringVar(&connectAddress, "connect", "", "host's TCP address (overrides guest.connect)")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides logging.level)")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("scmtunnel-guest")
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
	args := flagSet.Args()
	if len(args) == 0 {
		printHelp(flagSet)
		return fmt.Errorf("no command given")
	}
	selected, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if socketPath != "" {
		cfg.Guest.Socket = socketPath
		cfg.Guest.Connect = ""
	}
	if connectAddress != "" {
		cfg.Guest.Connect = connectAddress
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
	logger = logger.With("component", "scmtunnel-guest", "command", args[0])

	network, address := "unix", cfg.Guest.Socket
	if cfg.Guest.Connect != "" {
		network, address = "tcp", cfg.Guest.Connect
	}
	client := tunnel.NewClient(network, address, logger, clock.Real())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if timeout := cfg.GuestTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return selected.run(ctx, &environment{
		caller:  client,
		session: guest.NewSession(client, logger),
		logger:  logger,
		stdout:  os.Stdout,
	}, args[1:])
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func runCommand(ctx context.Context, env *environment, args []string) error {
	var options scm.Options
	var environmentPairs []string
	var colorMode string

	flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&options.Cwd, "cwd", "", "working directory, virtual (/~0/...) or real")
	flagSet.BoolVar(&options.Binary, "binary", false, "treat output as binary (no path rewriting)")
	flagSet.StringArrayVar(&environmentPairs, "env", nil, "NAME=VALUE added to git's environment (repeatable)")
	flagSet.StringVar(&colorMode, "color", "never", "highlight patch output: auto, always, never")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	color, err := colorEnabled(colorMode, os.Stdout)
	if err != nil {
		return err
	}
	argv := flagSet.Args()
	if len(argv) == 0 {
		return fmt.Errorf("run: no git arguments given")
	}
	if len(environmentPairs) > 0 {
		options.Env = make(map[string]string, len(environmentPairs))
		for _, pair := range environmentPairs {
			name, value, ok := strings.Cut(pair, "=")
			if !ok || name == "" {
				return fmt.Errorf("run: --env %q is not NAME=VALUE", pair)
			}
			options.Env[name] = value
		}
	}

	arguments := scm.ParseArguments(argv)
	started := time.Now()
	result, err := env.session.RunCommand(ctx, options, arguments)
	if err != nil {
		return err
	}
	env.logger.Debug("command finished",
		"bytes", len(result.Output),
		"binary", result.Binary,
		"duration", time.Since(started),
	)
	output := result.Output
	if color {
		output = highlightPatch(arguments, result)
	}
	_, err = env.stdout.Write(output)
	return err
}

func reposCommand(ctx context.Context, env *environment, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("repos: expected one folder URI, got %d arguments", len(args))
	}
	repositories, err := env.session.RepositoriesInFolder(ctx, args[0], nil)
	if err != nil {
		return err
	}
	for _, repository := range repositories {
		flags := ""
		if repository.IsRoot {
			flags += " root"
		}
		if repository.IsClosed {
			flags += " closed"
		}
		fmt.Fprintf(env.stdout, "%s\t%s%s\n", repository.Path, repository.FolderURI, flags)
	}
	return nil
}

func existsCommand(ctx context.Context, env *environment, args []string) error {
	var options tunnel.FileExistsOptions
	flagSet := pflag.NewFlagSet("exists", pflag.ContinueOnError)
	flagSet.BoolVar(&options.EnsureCase, "ensure-case", false, "require an exact-case match")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 2 {
		return fmt.Errorf("exists: expected REPO FILE, got %d arguments", flagSet.NArg())
	}
	exists, err := env.session.FileExists(ctx, flagSet.Arg(0), flagSet.Arg(1), options)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, exists)
	return nil
}

func pathsCommand(ctx context.Context, env *environment, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("paths: unexpected argument %q", args[0])
	}
	var response tunnel.WorkspacePathsResponse
	if err := env.caller.Call(ctx, tunnel.ActionWorkspacePaths, nil, &response); err != nil {
		return err
	}
	for _, pair := range response.Paths {
		fmt.Fprintf(env.stdout, "%s\t%s\n", pair.SharedURI, pair.LocalURI)
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `scmtunnel-guest: run git on a remote scmtunnel-host.

Usage:
  scmtunnel-guest [flags] <command> [arguments]

Commands:
`)
	for _, name := range commandOrder {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(os.Stderr, `
Flags:
%s
Configuration is read from --config or $SCMTUNNEL_CONFIG.
`, flagSet.FlagUsages())
}
