// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathmap

import "strings"

// Replacer rewrites every occurrence of a known path inside a string.
// A Replacer is immutable after construction and safe for concurrent
// use.
type Replacer struct {
	root         *trieNode
	replacements map[string]replacement
}

// replacement is the text written for one key. When the key ends in a
// separator (the filesystem root "/"), the match must be followed by a
// path segment and the text carries the separator the key consumed.
// When the text itself ends in a separator, one separator following
// the match is absorbed so "/~0/usr" maps to "/usr" rather than "//usr".
type replacement struct {
	text            string
	absorbSeparator bool
}

type trieNode struct {
	children map[byte]*trieNode
	// key is the canonical path ending at this node, or "" when no
	// path ends here.
	key string
}

// NewReplacer builds a Replacer from a map of path to replacement.
// Keys are matched with '/' and '\' treated as the same byte. Empty
// keys are ignored. A key ending in a separator, such as the root "/",
// only matches where a path segment follows it.
func NewReplacer(replacements map[string]string) *Replacer {
	replacer := &Replacer{
		root:         &trieNode{},
		replacements: make(map[string]replacement, len(replacements)),
	}
	for key, value := range replacements {
		if key == "" {
			continue
		}
		canonical := canonicalKey(key)
		keyIsDirectory := strings.HasSuffix(canonical, "/")
		text := value
		if keyIsDirectory && !endsWithSeparator(text) {
			text += "/"
		}
		replacer.replacements[canonical] = replacement{
			text:            text,
			absorbSeparator: endsWithSeparator(text) && !keyIsDirectory,
		}
		node := replacer.root
		for i := 0; i < len(canonical); i++ {
			if node.children == nil {
				node.children = make(map[byte]*trieNode)
			}
			child, exists := node.children[canonical[i]]
			if !exists {
				child = &trieNode{}
				node.children[canonical[i]] = child
			}
			node = child
		}
		node.key = canonical
	}
	return replacer
}

// Len returns the number of known paths.
func (r *Replacer) Len() int {
	return len(r.replacements)
}

// Match reports whether text contains at least one known path.
func (r *Replacer) Match(text string) bool {
	for i := 0; i < len(text); i++ {
		if _, end := r.longestAt(text, i); end > 0 {
			return true
		}
	}
	return false
}

// Replace returns text with every known path replaced, and the number
// of replacements made.
func (r *Replacer) Replace(text string) (string, int) {
	if len(r.replacements) == 0 || text == "" {
		return text, 0
	}

	var builder strings.Builder
	count := 0
	copied := 0
	for i := 0; i < len(text); {
		key, end := r.longestAt(text, i)
		if end == 0 {
			i++
			continue
		}
		if count == 0 {
			builder.Grow(len(text))
		}
		builder.WriteString(text[copied:i])
		replaced := r.replacements[key]
		builder.WriteString(replaced.text)
		if replaced.absorbSeparator && end < len(text) && canonicalByte(text[end]) == '/' {
			end++
		}
		count++
		i = end
		copied = end
	}
	if count == 0 {
		return text, 0
	}
	builder.WriteString(text[copied:])
	return builder.String(), count
}

// longestAt finds the longest known path starting at text[start] that
// sits on path boundaries. It returns the canonical key and the end
// offset, or end=0 when nothing matches.
func (r *Replacer) longestAt(text string, start int) (string, int) {
	if start > 0 && isNameByte(text[start-1]) {
		return "", 0
	}
	var bestKey string
	bestEnd := 0
	node := r.root
	for i := start; i < len(text); i++ {
		child, exists := node.children[canonicalByte(text[i])]
		if !exists {
			break
		}
		node = child
		if node.key != "" && endsOnBoundary(text, i+1, node.key) {
			bestKey = node.key
			bestEnd = i + 1
		}
	}
	return bestKey, bestEnd
}

// endsOnBoundary reports whether a match ending at end is a whole path
// rather than a prefix of a longer path component. A key ending in a
// separator already sits on a boundary, but must be followed by a
// path segment: otherwise the root "/" would match every lone slash.
func endsOnBoundary(text string, end int, key string) bool {
	if strings.HasSuffix(key, "/") {
		return end < len(text) && isNameByte(text[end])
	}
	if end == len(text) {
		return true
	}
	return !isNameByte(text[end])
}

// isNameByte reports whether b can continue a path component. Bytes
// of multi-byte UTF-8 sequences count, so non-ASCII names are never
// split. '.' counts too, so "/home/a." is read as the name "a." and a
// path ending a sentence is left alone; rewriting it would also rewrite
// "/home/a.old".
func isNameByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b >= 0x80:
		return true
	}
	switch b {
	case '.', '_', '-', '~', '+', '@', '%':
		return true
	}
	return false
}

func endsWithSeparator(s string) bool {
	return s != "" && canonicalByte(s[len(s)-1]) == '/'
}

func canonicalByte(b byte) byte {
	if b == '\\' {
		return '/'
	}
	return b
}

func canonicalKey(key string) string {
	return strings.ReplaceAll(key, `\`, "/")
}
