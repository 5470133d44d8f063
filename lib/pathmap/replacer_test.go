// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathmap

import "testing"

func TestReplacerLongestMatchWins(t *testing.T) {
	replacer := NewReplacer(map[string]string{
		"/home/a":     "/~0",
		"/home/a/sub": "/~0/sub",
		"/home/a/lib": "/~1",
	})

	tests := []struct {
		input string
		want  string
		count int
	}{
		{"/home/a/sub/file.txt", "/~0/sub/file.txt", 1},
		{"/home/a/lib/x.c", "/~1/x.c", 1},
		{"/home/a/other", "/~0/other", 1},
		{"/home/a", "/~0", 1},
		{"cd /home/a && ls /home/a/lib", "cd /~0 && ls /~1", 2},
		{"M\t/home/a/sub/x\n?? /home/a/y\n", "M\t/~0/sub/x\n?? /~0/y\n", 2},
	}
	for _, test := range tests {
		got, count := replacer.Replace(test.input)
		if got != test.want || count != test.count {
			t.Errorf("Replace(%q) = (%q, %d), want (%q, %d)", test.input, got, count, test.want, test.count)
		}
	}
}

func TestReplacerRespectsBoundaries(t *testing.T) {
	replacer := NewReplacer(map[string]string{
		"/home/a": "/~0",
		"/~1":     "/srv/one",
	})

	unchanged := []string{
		"/home/ab/file",
		"/home/a.txt",
		"built in /home/a.",
		"/x/home/a/file",
		"prefix/home/a",
		"/~10/file",
		"/~1abc",
	}
	for _, input := range unchanged {
		if got, count := replacer.Replace(input); got != input || count != 0 {
			t.Errorf("Replace(%q) = (%q, %d), want unchanged", input, got, count)
		}
	}

	if got, _ := replacer.Replace("/~1/file and /~10/file"); got != "/srv/one/file and /~10/file" {
		t.Errorf("mixed alias replace = %q", got)
	}
	if got, _ := replacer.Replace("'/home/a'"); got != "'/~0'" {
		t.Errorf("quoted replace = %q", got)
	}
}

func TestReplacerSeparatorInsensitive(t *testing.T) {
	replacer := NewReplacer(map[string]string{`C:\src\proj`: "/~0"})

	for _, input := range []string{`C:\src\proj\main.go`, "C:/src/proj/main.go"} {
		got, count := replacer.Replace(input)
		if count != 1 || got[:3] != "/~0" {
			t.Errorf("Replace(%q) = (%q, %d)", input, got, count)
		}
	}
}

func TestReplacerNoDoubleTranslation(t *testing.T) {
	// The replacement of the first path contains the second key. It
	// must not be rewritten again.
	replacer := NewReplacer(map[string]string{
		"/a": "/b",
		"/b": "/c",
	})
	if got, _ := replacer.Replace("/a /b"); got != "/b /c" {
		t.Errorf("Replace = %q, want \"/b /c\"", got)
	}
}

func TestReplacerEmpty(t *testing.T) {
	replacer := NewReplacer(nil)
	if replacer.Match("/home/a") {
		t.Error("empty replacer should match nothing")
	}
	if got, count := replacer.Replace("/home/a"); got != "/home/a" || count != 0 {
		t.Errorf("empty Replace = (%q, %d)", got, count)
	}
}

func TestReplacerMatch(t *testing.T) {
	replacer := NewReplacer(map[string]string{"/~0": "/home/a"})
	if !replacer.Match("see /~0/x") {
		t.Error("Match should find /~0/x")
	}
	if replacer.Match("see /~01") {
		t.Error("Match should not find /~0 inside /~01")
	}
}

func TestReplacerNonASCIINames(t *testing.T) {
	replacer := NewReplacer(map[string]string{"/home/a": "/~0"})
	if got, _ := replacer.Replace("/home/aé/x"); got != "/home/aé/x" {
		t.Errorf("non-ASCII continuation rewritten: %q", got)
	}
	if got, _ := replacer.Replace("/home/a/é"); got != "/~0/é" {
		t.Errorf("non-ASCII child = %q", got)
	}
}
