// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vpath

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// rootPattern recognizes a path rooted under some alias: a leading
// separator, "~", one or more digits, then end of string or another
// separator.
var rootPattern = regexp.MustCompile(`^[/\\]~(\d+)(?:[/\\]|$)`)

// aliasPattern recognizes a bare root alias with nothing after it.
var aliasPattern = regexp.MustCompile(`^[/\\]~\d+$`)

// Folder is one collaboration root as the host sees it.
type Folder struct {
	Index int
	Path  string
}

// RootAlias returns the virtual path of folder index's root.
func RootAlias(index int) string {
	return "/~" + strconv.Itoa(index)
}

// IsRootAlias reports whether p is exactly a root alias such as "/~0".
func IsRootAlias(p string) bool {
	return aliasPattern.MatchString(p)
}

// IsRooted reports whether p is a root alias or a path beneath one.
func IsRooted(p string) bool {
	return rootPattern.MatchString(p)
}

// ParseRoot splits a rooted virtual path into its folder index and the
// remainder after the alias and its separator. The remainder keeps
// whatever separators the caller used.
func ParseRoot(p string) (index int, rest string, ok bool) {
	match := rootPattern.FindStringSubmatchIndex(p)
	if match == nil {
		return 0, "", false
	}
	index, err := strconv.Atoi(p[match[2]:match[3]])
	if err != nil {
		// Digit run too long for an int.
		return 0, "", false
	}
	return index, p[match[1]:], true
}

// ToSlash converts every backslash in p to a forward slash. Unlike
// filepath.ToSlash this is independent of the running OS: a Windows
// host's paths must normalize the same way on a Linux guest.
func ToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// Clean normalizes an absolute path for use as a table key or folder
// root: forward slashes, lexically cleaned, no trailing separator
// except for "/" itself.
func Clean(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean(ToSlash(p))
}

// trimTrailing drops trailing separators without any other cleaning.
func trimTrailing(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" && p != "" {
		return "/"
	}
	return trimmed
}

// Scheme converts between real paths and virtual paths for a fixed
// set of folders. A Scheme is immutable and safe for concurrent use.
type Scheme struct {
	// byLength holds folders ordered by root length, longest first,
	// so nested folders resolve to the innermost one.
	byLength []Folder
	byIndex  map[int]Folder
}

// NewScheme builds a Scheme. Folder roots are cleaned. Duplicate or
// negative indices are rejected since the index is the only identity
// a virtual path carries.
func NewScheme(folders []Folder) (*Scheme, error) {
	scheme := &Scheme{
		byLength: make([]Folder, 0, len(folders)),
		byIndex:  make(map[int]Folder, len(folders)),
	}
	for _, folder := range folders {
		if folder.Index < 0 {
			return nil, fmt.Errorf("folder %q has negative index %d", folder.Path, folder.Index)
		}
		if existing, duplicate := scheme.byIndex[folder.Index]; duplicate {
			return nil, fmt.Errorf("folders %q and %q share index %d", existing.Path, folder.Path, folder.Index)
		}
		if folder.Path == "" {
			return nil, fmt.Errorf("folder %d has an empty path", folder.Index)
		}
		folder.Path = Clean(folder.Path)
		scheme.byIndex[folder.Index] = folder
		scheme.byLength = append(scheme.byLength, folder)
	}
	sort.SliceStable(scheme.byLength, func(i, j int) bool {
		return len(scheme.byLength[i].Path) > len(scheme.byLength[j].Path)
	})
	return scheme, nil
}

// Folders returns the scheme's folders ordered by index.
func (s *Scheme) Folders() []Folder {
	folders := make([]Folder, 0, len(s.byIndex))
	for _, folder := range s.byIndex {
		folders = append(folders, folder)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Index < folders[j].Index })
	return folders
}

// Folder returns the folder with the given index.
func (s *Scheme) Folder(index int) (Folder, bool) {
	folder, ok := s.byIndex[index]
	return folder, ok
}

// Contains returns the innermost folder containing real.
func (s *Scheme) Contains(real string) (Folder, bool) {
	normalized := trimTrailing(ToSlash(real))
	for _, folder := range s.byLength {
		if relativeTo(folder.Path, normalized) != nil {
			return folder, true
		}
	}
	return Folder{}, false
}

// ToVirtual converts a real path to its virtual form. A path equal to
// a folder root becomes the bare alias. A path outside every folder is
// returned unchanged with ok=false.
func (s *Scheme) ToVirtual(real string) (string, bool) {
	normalized := trimTrailing(ToSlash(real))
	for _, folder := range s.byLength {
		relative := relativeTo(folder.Path, normalized)
		if relative == nil {
			continue
		}
		return canonicalVirtual(RootAlias(folder.Index) + "/" + *relative), true
	}
	return real, false
}

// canonicalVirtual is the normalization applied after the raw
// alias+relative join. The raw join of a folder root yields "/~i/";
// the canonical form of the root is the bare alias "/~i".
func canonicalVirtual(raw string) string {
	if index, rest, ok := ParseRoot(raw); ok && rest == "" {
		return RootAlias(index)
	}
	return raw
}

// relativeTo returns the part of p below root, or nil when p is not
// root or a descendant of it. The comparison respects component
// boundaries: "/home/ab" is not below "/home/a".
func relativeTo(root, p string) *string {
	if p == root {
		empty := ""
		return &empty
	}
	prefix := root
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if !strings.HasPrefix(p, prefix) {
		return nil
	}
	relative := p[len(prefix):]
	return &relative
}

// ToReal converts a virtual path to the real path it names. A bare
// alias is given a trailing separator first so "/~1" can never be read
// as a prefix of "/~10". Paths that are not rooted under an alias, or
// whose index is unknown, are returned unchanged with ok=false.
func (s *Scheme) ToReal(virtual string) (string, bool) {
	lookup := virtual
	if IsRootAlias(lookup) {
		lookup += "/"
	}
	index, rest, ok := ParseRoot(lookup)
	if !ok {
		return virtual, false
	}
	folder, known := s.byIndex[index]
	if !known {
		return virtual, false
	}
	rest = ToSlash(rest)
	if rest == "" {
		return folder.Path, true
	}
	return strings.TrimSuffix(folder.Path, "/") + "/" + rest, true
}
