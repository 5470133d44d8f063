// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// Options controls a single command execution.
type Options struct {
	// Cwd is the working directory. Empty means the runner's default.
	Cwd string `cbor:"cwd,omitempty"`

	// Env holds extra environment variables layered over the host
	// process environment.
	Env map[string]string `cbor:"env,omitempty"`

	// Binary requests raw output. The guest returns binary output
	// without rewriting paths in it.
	Binary bool `cbor:"binary,omitempty"`
}

// Result is a command's standard output.
type Result struct {
	Output []byte
	Binary bool
}

// Text returns the output as a string.
func (r Result) Text() string {
	return string(r.Output)
}

// Runner executes version-control commands. Implementations must
// honor ctx cancellation.
type Runner interface {
	Run(ctx context.Context, options Options, arguments []Argument) (Result, error)
}

// ExitError describes a command that ran and exited non-zero.
type ExitError struct {
	Command  string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s %s: exit status %d (stderr: %s)",
		e.Command, strings.Join(e.Args, " "), e.ExitCode, e.Stderr)
}

// GitRunner runs commands through a git binary.
type GitRunner struct {
	// Binary is the git executable. Empty means "git" from PATH.
	Binary string

	// Dir is the working directory used when Options.Cwd is empty.
	Dir string

	// Env is added to every command's environment. Options.Env takes
	// precedence over it.
	Env map[string]string
}

// NewGitRunner returns a GitRunner for the given binary. An empty
// binary uses "git" from PATH.
func NewGitRunner(binary string) *GitRunner {
	return &GitRunner{Binary: binary}
}

// Run executes git with the given arguments. Stdout is the result;
// stderr is captured and reported in the error on failure. The result
// is flagged binary only when options.Binary asks for it; text output
// in a legacy encoding is still text.
func (r *GitRunner) Run(ctx context.Context, options Options, arguments []Argument) (Result, error) {
	if err := ValidateArguments(arguments); err != nil {
		return Result{}, err
	}
	argv := Argv(arguments)

	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, r.binary(), argv...)
	command.Dir = r.Dir
	if options.Cwd != "" {
		command.Dir = options.Cwd
	}
	command.Env = mergeEnvironment(mergeEnvironment(os.Environ(), r.Env), options.Env)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("git %s: %w", strings.Join(argv, " "), ctx.Err())
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return Result{}, &ExitError{
				Command:  "git",
				Args:     argv,
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(stderr.String()),
			}
		}
		return Result{}, fmt.Errorf("git %s in %s: %w", strings.Join(argv, " "), command.Dir, err)
	}

	output := stdout.Bytes()
	return Result{
		Output: output,
		Binary: options.Binary,
	}, nil
}

func (r *GitRunner) binary() string {
	if r.Binary == "" {
		return "git"
	}
	return r.Binary
}

// mergeEnvironment overlays extra onto base. Keys are applied in sorted
// order so the resulting environment is deterministic.
func mergeEnvironment(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	merged := make([]string, 0, len(base)+len(extra))
	for _, entry := range base {
		name, _, _ := strings.Cut(entry, "=")
		if _, overridden := extra[name]; overridden {
			continue
		}
		merged = append(merged, entry)
	}
	for _, key := range keys {
		merged = append(merged, key+"="+extra[key])
	}
	return merged
}
