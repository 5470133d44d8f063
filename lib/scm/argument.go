// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scm

import "fmt"

// ArgumentKind tags an Argument.
type ArgumentKind string

const (
	// KindFlag is an opaque flag or value. Never path-translated.
	KindFlag ArgumentKind = "flag"

	// KindSeparator is the literal "--" that ends flag parsing.
	KindSeparator ArgumentKind = "separator"

	// KindPath is a path-bearing argument after the separator.
	KindPath ArgumentKind = "path"
)

// SeparatorToken is the literal separator argument.
const SeparatorToken = "--"

// Argument is one command-line token and its role.
type Argument struct {
	Kind  ArgumentKind `cbor:"kind"`
	Value string       `cbor:"value"`
}

// Flag returns a flag argument.
func Flag(value string) Argument { return Argument{Kind: KindFlag, Value: value} }

// Path returns a path argument.
func Path(value string) Argument { return Argument{Kind: KindPath, Value: value} }

// Separator returns the "--" argument.
func Separator() Argument { return Argument{Kind: KindSeparator, Value: SeparatorToken} }

// ParseArguments classifies a plain argv. Tokens before the first
// "--" are flags, the first "--" is the separator, and every token
// after it is a path, including any later "--".
func ParseArguments(argv []string) []Argument {
	arguments := make([]Argument, 0, len(argv))
	seenSeparator := false
	for _, token := range argv {
		switch {
		case seenSeparator:
			arguments = append(arguments, Path(token))
		case token == SeparatorToken:
			seenSeparator = true
			arguments = append(arguments, Separator())
		default:
			arguments = append(arguments, Flag(token))
		}
	}
	return arguments
}

// Argv flattens arguments back to the strings passed to the binary.
func Argv(arguments []Argument) []string {
	argv := make([]string, len(arguments))
	for i, argument := range arguments {
		argv[i] = argument.Value
	}
	return argv
}

// ValidateArguments checks that every argument has a known kind and
// that the separator, if present, is the literal "--".
func ValidateArguments(arguments []Argument) error {
	for i, argument := range arguments {
		switch argument.Kind {
		case KindFlag, KindPath:
		case KindSeparator:
			if argument.Value != SeparatorToken {
				return fmt.Errorf("argument %d: separator must be %q, got %q", i, SeparatorToken, argument.Value)
			}
		default:
			return fmt.Errorf("argument %d: unknown kind %q", i, argument.Kind)
		}
	}
	return nil
}
