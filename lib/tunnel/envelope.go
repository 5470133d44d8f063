// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/scmtunnel/lib/codec"
)

// Request is the wire envelope for every call.
type Request struct {
	Action    string `cbor:"action"`
	RequestID string `cbor:"request_id,omitempty"`

	// TimeoutMillis, when positive, bounds how long the server lets
	// the handler run. The handler's context is cancelled at the
	// deadline.
	TimeoutMillis int64 `cbor:"timeout_ms,omitempty"`

	// Body is the action-specific request, encoded separately so the
	// server can route on Action before decoding it.
	Body codec.RawMessage `cbor:"body,omitempty"`
}

// Response is the wire envelope for every reply.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// ErrServiceUnavailable is wrapped by every error that means the
// tunnel endpoint could not be reached at all.
var ErrServiceUnavailable = errors.New("tunnel service unavailable")

// RemoteError is a failure reported by the other peer. The message is
// the handler's error text, unmodified.
type RemoteError struct {
	Action    string
	RequestID string
	Message   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error on %q: %s", e.Action, e.Message)
}

type requestIDKey struct{}

// WithRequestID returns a context carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID carried by ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
