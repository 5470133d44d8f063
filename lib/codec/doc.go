// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the wire format for the scmtunnel protocol.
//
// Every tunnel request and response is a single CBOR value. The encoder
// uses Core Deterministic Encoding (RFC 8949 §4.2), so the same request
// always produces the same bytes, which keeps captured traffic diffable
// in tests.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For sockets:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Command output travels as a [Payload]: raw bytes, optionally
// compressed (zstd for text, lz4 for binary output), with a blake3
// digest of the uncompressed bytes so the receiver can detect a
// corrupted transfer before handing output to its caller.
//
// Protocol types use `cbor` struct tags only. They never appear in JSON.
package codec
