// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tunnel is the request/response transport between the guest
// and the host, and the registry of the four actions that travel over
// it.
//
// Each connection carries exactly one exchange. The client writes a
// CBOR [Request] envelope naming the action, a request ID, and the
// action's body; the server dispatches to the registered handler and
// writes a [Response] of {ok, error, data}. CBOR is self-delimiting,
// so no framing is needed. The transport is any stream socket: Unix
// sockets for a host and guest sharing a machine (or a forwarded
// socket), TCP for the rest.
//
// Handler failures cross the wire as opaque messages and surface on
// the client as [*RemoteError]. The client never retries. A client
// that cannot reach the server returns an error wrapping
// [ErrServiceUnavailable].
//
// Cross-cutting concerns (request logging, timing) are [Middleware]
// applied at registration time by the server, not by the handlers.
package tunnel
