// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

// Compression identifies how a Payload's bytes are encoded on the
// wire. Values are protocol constants shared by host and guest.
type Compression uint8

const (
	// CompressionNone carries the bytes as-is.
	CompressionNone Compression = 0

	// CompressionLZ4 is block-mode LZ4. Used for binary command
	// output (blob contents, packfiles) where ratio matters less than
	// speed.
	CompressionLZ4 Compression = 1

	// CompressionZstd is zstd at the default level. Used for text
	// output (diffs, logs, status porcelain), which compresses well.
	CompressionZstd Compression = 2
)

// String returns the human-readable name of a compression value.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses the config-file spelling of a compression
// value. The empty string means none.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// DigestSize is the length of a payload digest in bytes.
const DigestSize = 32

// ErrDigestMismatch is returned by Payload.Open when the decoded bytes
// do not hash to the digest the sender recorded.
var ErrDigestMismatch = errors.New("payload digest mismatch")

// errIncompressible signals that compression did not shrink the data.
// SealPayload falls back to CompressionNone when it sees this.
var errIncompressible = errors.New("data is incompressible")

// Payload is a byte string in transit. Size and Digest describe the
// uncompressed bytes.
type Payload struct {
	Data        []byte      `cbor:"data"`
	Compression Compression `cbor:"compression,omitempty"`
	Size        int         `cbor:"size"`
	Digest      []byte      `cbor:"digest,omitempty"`
}

// SealPayload wraps raw for transmission using the requested
// compression. If the compressor cannot shrink the data the payload is
// sent uncompressed; the caller never sees an incompressible error.
func SealPayload(raw []byte, compression Compression) (Payload, error) {
	payload := Payload{
		Data:   raw,
		Size:   len(raw),
		Digest: Digest(raw),
	}

	var compressed []byte
	var err error
	switch compression {
	case CompressionNone:
		return payload, nil
	case CompressionLZ4:
		compressed, err = compressLZ4(raw)
	case CompressionZstd:
		compressed, err = compressZstd(raw)
	default:
		return Payload{}, fmt.Errorf("unsupported compression %d", compression)
	}
	if errors.Is(err, errIncompressible) {
		return payload, nil
	}
	if err != nil {
		return Payload{}, err
	}

	payload.Data = compressed
	payload.Compression = compression
	return payload, nil
}

// Open decompresses the payload and verifies its digest. A payload
// without a digest is accepted unverified.
func (p Payload) Open() ([]byte, error) {
	var raw []byte
	var err error
	switch p.Compression {
	case CompressionNone:
		if len(p.Data) != p.Size {
			return nil, fmt.Errorf("uncompressed payload: size %d does not match expected %d", len(p.Data), p.Size)
		}
		raw = p.Data
	case CompressionLZ4:
		raw, err = decompressLZ4(p.Data, p.Size)
	case CompressionZstd:
		raw, err = decompressZstd(p.Data, p.Size)
	default:
		return nil, fmt.Errorf("unsupported compression %d", p.Compression)
	}
	if err != nil {
		return nil, err
	}

	if len(p.Digest) > 0 && !bytes.Equal(p.Digest, Digest(raw)) {
		return nil, ErrDigestMismatch
	}
	return raw, nil
}

// Digest returns the blake3 digest of data.
func Digest(data []byte) []byte {
	sum := blake3.Sum256(data)
	return sum[:]
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != size {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
	}
	return destination, nil
}

// zstd.Encoder and zstd.Decoder are safe for concurrent EncodeAll and
// DecodeAll calls, so one of each serves every connection.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, size int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != size {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
	}
	return result, nil
}
