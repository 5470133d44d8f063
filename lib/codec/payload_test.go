// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestSealPayloadRoundtrip(t *testing.T) {
	text := []byte(strings.Repeat("diff --git a/file.txt b/file.txt\n+added line\n", 200))
	binary := bytes.Repeat([]byte{0x00, 0x01, 0x02, 0x03, 0xFF, 0xFE}, 500)

	tests := []struct {
		name        string
		raw         []byte
		compression Compression
	}{
		{"none", text, CompressionNone},
		{"zstd text", text, CompressionZstd},
		{"lz4 binary", binary, CompressionLZ4},
		{"zstd binary", binary, CompressionZstd},
		{"empty", nil, CompressionZstd},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			payload, err := SealPayload(test.raw, test.compression)
			if err != nil {
				t.Fatalf("SealPayload: %v", err)
			}
			if payload.Size != len(test.raw) {
				t.Errorf("Size = %d, want %d", payload.Size, len(test.raw))
			}

			// Push through the wire codec the way the tunnel does.
			data, err := Marshal(payload)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var received Payload
			if err := Unmarshal(data, &received); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}

			opened, err := received.Open()
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if !bytes.Equal(opened, test.raw) {
				t.Errorf("opened payload differs from input (%d vs %d bytes)", len(opened), len(test.raw))
			}
		})
	}
}

func TestSealPayloadCompressesRepetitiveText(t *testing.T) {
	text := []byte(strings.Repeat("M  src/main.go\n", 1000))
	payload, err := SealPayload(text, CompressionZstd)
	if err != nil {
		t.Fatalf("SealPayload: %v", err)
	}
	if payload.Compression != CompressionZstd {
		t.Fatalf("Compression = %v, want zstd", payload.Compression)
	}
	if len(payload.Data) >= len(text) {
		t.Errorf("compressed size %d not smaller than %d", len(payload.Data), len(text))
	}
}

func TestSealPayloadIncompressibleFallsBack(t *testing.T) {
	// Too short for either compressor to win.
	raw := []byte("ok")
	for _, compression := range []Compression{CompressionLZ4, CompressionZstd} {
		payload, err := SealPayload(raw, compression)
		if err != nil {
			t.Fatalf("SealPayload(%v): %v", compression, err)
		}
		if payload.Compression != CompressionNone {
			t.Errorf("SealPayload(%v) compression = %v, want none", compression, payload.Compression)
		}
		if !bytes.Equal(payload.Data, raw) {
			t.Errorf("SealPayload(%v) data = %q", compression, payload.Data)
		}
	}
}

func TestOpenDetectsDigestMismatch(t *testing.T) {
	payload, err := SealPayload([]byte("/home/a/file.txt\n"), CompressionNone)
	if err != nil {
		t.Fatalf("SealPayload: %v", err)
	}
	tampered := bytes.Clone(payload.Data)
	tampered[0] = '#'
	payload.Data = tampered

	if _, err := payload.Open(); !errors.Is(err, ErrDigestMismatch) {
		t.Errorf("Open error = %v, want ErrDigestMismatch", err)
	}
}

func TestOpenRejectsSizeMismatch(t *testing.T) {
	payload := Payload{Data: []byte("abc"), Size: 4}
	if _, err := payload.Open(); err == nil {
		t.Error("Open should reject a size mismatch")
	}
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		parsed, err := ParseCompression(c.String())
		if err != nil {
			t.Fatalf("ParseCompression(%q): %v", c.String(), err)
		}
		if parsed != c {
			t.Errorf("ParseCompression(%q) = %v", c.String(), parsed)
		}
	}
	if _, err := ParseCompression("brotli"); err == nil {
		t.Error("ParseCompression should reject unknown names")
	}
}
