// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/bureau-foundation/scmtunnel/lib/codec"
)

// HandlerFunc processes the body of one request. Return a value to
// send as response data, or an error to send as a failure. A nil
// value yields {ok: true} with no data.
type HandlerFunc func(ctx context.Context, body []byte) (any, error)

// Middleware wraps a handler for one action. Middleware is applied in
// registration order, so the first registered is outermost.
type Middleware func(action string, next HandlerFunc) HandlerFunc

// Typed adapts a function taking a decoded request struct into a
// HandlerFunc. An empty body decodes to the zero request.
func Typed[Req any](fn func(ctx context.Context, request Req) (any, error)) HandlerFunc {
	return func(ctx context.Context, body []byte) (any, error) {
		var request Req
		if len(body) > 0 {
			if err := codec.Unmarshal(body, &request); err != nil {
				notation, diagErr := codec.Diagnose(body)
				if diagErr != nil {
					notation = "<malformed CBOR>"
				}
				return nil, fmt.Errorf("invalid request body %s: %w", notation, err)
			}
		}
		return fn(ctx, request)
	}
}

// Server serves the tunnel protocol on a stream listener. Each
// connection handles exactly one request-response cycle.
type Server struct {
	handlers   map[string]HandlerFunc
	middleware []Middleware
	logger     *slog.Logger

	allowedUIDs []uint32

	// activeConnections tracks in-flight handlers. Serve waits for
	// them before returning.
	activeConnections sync.WaitGroup
}

// NewServer creates a server. Register middleware with Use and
// actions with Handle before calling Serve.
func NewServer(logger *slog.Logger) *Server {
	return &Server{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// Use appends middleware. It applies to actions registered afterwards.
func (s *Server) Use(middleware Middleware) {
	s.middleware = append(s.middleware, middleware)
}

// Handle registers the handler for action. Panics on a duplicate.
func (s *Server) Handle(action string, handler HandlerFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("tunnel.Server: duplicate handler for action %q", action))
	}
	for i := len(s.middleware) - 1; i >= 0; i-- {
		handler = s.middleware[i](action, handler)
	}
	s.handlers[action] = handler
}

// Listen opens a listener for Serve. For "unix", any stale socket
// file at address is removed first.
func Listen(network, address string) (net.Listener, error) {
	if network == "unix" {
		if err := os.Remove(address); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing stale socket %s: %w", address, err)
		}
	}
	listener, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("listening on %s %s: %w", network, address, err)
	}
	return listener, nil
}

// Serve accepts connections until ctx is cancelled, then closes the
// listener and waits for active handlers. Handler contexts derive from
// ctx, so cancelling it also cancels running commands.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	defer listener.Close()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("tunnel server listening",
		"network", listener.Addr().Network(),
		"address", listener.Addr().String(),
	)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// readTimeout is how long the server waits for the request after the
// client connects.
const readTimeout = 30 * time.Second

// writeTimeout bounds writing the response. Command output can be
// large, so this is generous.
const writeTimeout = 2 * time.Minute

// maxRequestSize bounds a single request. Requests carry arguments and
// paths, never file contents.
const maxRequestSize = 1024 * 1024

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var request Request
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&request); err != nil {
		if errors.Is(err, io.EOF) {
			// Connected and sent nothing (a liveness probe).
			return
		}
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}
	// The request is read before authorizing so a refused client sees
	// the error response rather than a reset connection.
	if err := s.authorizePeer(conn); err != nil {
		s.writeError(conn, err.Error())
		return
	}
	if request.Action == "" {
		s.writeError(conn, "missing required field: action")
		return
	}

	handler, exists := s.handlers[request.Action]
	if !exists {
		s.writeError(conn, fmt.Sprintf("unknown action %q", request.Action))
		return
	}

	handlerCtx := WithRequestID(ctx, request.RequestID)
	if request.TimeoutMillis > 0 {
		var cancel context.CancelFunc
		handlerCtx, cancel = context.WithTimeout(handlerCtx, time.Duration(request.TimeoutMillis)*time.Millisecond)
		defer cancel()
	}

	result, err := handler(handlerCtx, []byte(request.Body))
	if err != nil {
		s.writeError(conn, err.Error())
		return
	}
	s.writeSuccess(conn, result)
}

// writeError sends {ok: false, error: message}. Write failures are
// logged at debug: the connection is closing either way.
func (s *Server) writeError(conn net.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{OK: false, Error: message}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

func (s *Server) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, fmt.Sprintf("internal: marshaling response: %v", err))
			return
		}
		response.Data = data
	}

	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		if clientGone(err) {
			s.logger.Debug("client disconnected before response", "error", err)
			return
		}
		s.logger.Warn("failed to write success response", "error", err)
	}
}

// clientGone reports whether a write failed because the client closed
// its end (a cancelled call, usually) rather than for a reason worth
// reporting such as a write timeout.
func clientGone(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
