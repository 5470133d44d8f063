// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vpath

import (
	"fmt"
	"net/url"
	"regexp"
)

const (
	// LocalScheme is the URI scheme for real host paths.
	LocalScheme = "file"

	// SharedScheme is the URI scheme for virtual paths.
	SharedScheme = "share"
)

// drivePath matches the "/C:/..." form a Windows path takes inside a
// file URI.
var drivePath = regexp.MustCompile(`^/[A-Za-z]:(/|$)`)

// schemePattern matches a URI scheme prefix. Requiring two characters
// keeps Windows drive letters ("C:\src") from parsing as a scheme.
var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]+:`)

// LocalURI returns the file URI for a real path.
func LocalURI(p string) string {
	p = ToSlash(p)
	if len(p) >= 2 && p[1] == ':' {
		p = "/" + p
	}
	return (&url.URL{Scheme: LocalScheme, Path: p}).String()
}

// SharedURI returns the share URI for a virtual path.
func SharedURI(p string) string {
	return (&url.URL{Scheme: SharedScheme, Path: ToSlash(p)}).String()
}

// PathFromURI extracts the filesystem path from a file or share URI.
// A string with no scheme is taken to be a path already. Other
// schemes are an error.
func PathFromURI(uri string) (string, error) {
	if !schemePattern.MatchString(uri) {
		return ToSlash(uri), nil
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parsing URI %q: %w", uri, err)
	}
	switch parsed.Scheme {
	case LocalScheme, SharedScheme:
	default:
		return "", fmt.Errorf("URI %q: unsupported scheme %q", uri, parsed.Scheme)
	}
	p := parsed.Path
	if drivePath.MatchString(p) {
		p = p[1:]
	}
	return p, nil
}
