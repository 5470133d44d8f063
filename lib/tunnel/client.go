// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/scmtunnel/lib/clock"
	"github.com/bureau-foundation/scmtunnel/lib/codec"
)

// Caller issues tunnel requests. *Client implements it; tests
// substitute in-memory fakes.
type Caller interface {
	Call(ctx context.Context, action string, request, result any) error
}

// dialTimeout bounds the connect phase only.
const dialTimeout = 5 * time.Second

// defaultResponseTimeout is how long the client waits for a response
// when the caller's context has no deadline.
const defaultResponseTimeout = 5 * time.Minute

// maxResponseSize bounds a single response. Command output (a large
// diff or blob) dominates; payloads above the host's compression
// threshold arrive compressed.
const maxResponseSize = 256 * 1024 * 1024

// Client sends requests to a tunnel server. Each Call opens a new
// connection, matching the server's one-request-per-connection model.
type Client struct {
	network string
	address string
	logger  *slog.Logger
	clock   clock.Clock
}

// NewClient returns a client for the server at network/address
// ("unix" and a socket path, or "tcp" and host:port).
func NewClient(network, address string, logger *slog.Logger, clk clock.Clock) *Client {
	return &Client{
		network: network,
		address: address,
		logger:  logger,
		clock:   clk,
	}
}

// Call sends request under action and decodes the response data into
// result. A nil request sends no body; a nil result discards data.
//
// Returns *RemoteError when the server answers ok=false, and an error
// wrapping ErrServiceUnavailable when the server cannot be reached.
// If ctx has a deadline, it is forwarded so the server stops the
// handler at the same time the client gives up.
func (c *Client) Call(ctx context.Context, action string, request, result any) error {
	envelope := Request{
		Action:    action,
		RequestID: uuid.NewString(),
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("calling %q: %w", action, context.DeadlineExceeded)
		}
		envelope.TimeoutMillis = remaining.Milliseconds()
	}
	if request != nil {
		body, err := codec.Marshal(request)
		if err != nil {
			return fmt.Errorf("encoding %q request: %w", action, err)
		}
		envelope.Body = body
	}

	started := c.clock.Now()
	response, err := c.send(ctx, envelope)
	elapsed := c.clock.Now().Sub(started)
	if err != nil {
		c.logger.Debug("tunnel call failed",
			"action", action,
			"request_id", envelope.RequestID,
			"duration", elapsed,
			"error", err,
		)
		return fmt.Errorf("calling %q on %s: %w", action, c.address, err)
	}
	c.logger.Debug("tunnel call",
		"action", action,
		"request_id", envelope.RequestID,
		"ok", response.OK,
		"duration", elapsed,
	)

	if !response.OK {
		return &RemoteError{
			Action:    action,
			RequestID: envelope.RequestID,
			Message:   response.Error,
		}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding %q response: %w", action, err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, envelope Request) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, c.network, c.address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
	defer conn.Close()

	// Closing the connection unblocks the read if ctx ends first.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := codec.NewEncoder(conn).Encode(envelope); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	// Half-close so the server's read side sees EOF cleanly.
	switch typed := conn.(type) {
	case *net.UnixConn:
		typed.CloseWrite()
	case *net.TCPConn:
		typed.CloseWrite()
	}

	deadline := time.Now().Add(defaultResponseTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok {
		deadline = ctxDeadline
	}
	conn.SetReadDeadline(deadline)

	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}
