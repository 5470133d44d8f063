// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/alecthomas/chroma/v2/quick"
	"golang.org/x/term"

	"github.com/bureau-foundation/scmtunnel/lib/scm"
)

// patchCommands produce output in unified diff format.
var patchCommands = map[string]bool{
	"diff":         true,
	"show":         true,
	"log":          true,
	"format-patch": true,
}

// colorEnabled resolves a --color mode against the output file.
func colorEnabled(mode string, stdout *os.File) (bool, error) {
	switch mode {
	case "auto":
		return term.IsTerminal(int(stdout.Fd())), nil
	case "always":
		return true, nil
	case "never":
		return false, nil
	default:
		return false, fmt.Errorf("--color must be auto, always, or never; got %q", mode)
	}
}

// highlightPatch returns output syntax-highlighted as a diff when the
// git subcommand produces patches. Binary output and other commands
// are returned unchanged, as is any output chroma fails to tokenize.
func highlightPatch(arguments []scm.Argument, result scm.Result) []byte {
	if result.Binary || len(result.Output) == 0 || !patchCommands[subcommand(arguments)] {
		return result.Output
	}
	var buffer bytes.Buffer
	if err := quick.Highlight(&buffer, string(result.Output), "diff", "terminal256", "monokai"); err != nil {
		return result.Output
	}
	return buffer.Bytes()
}

// subcommand returns the first argument that is not an option.
func subcommand(arguments []scm.Argument) string {
	for _, argument := range arguments {
		if argument.Kind != scm.KindFlag {
			return ""
		}
		if len(argument.Value) > 0 && argument.Value[0] != '-' {
			return argument.Value
		}
	}
	return ""
}
