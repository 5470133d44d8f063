// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"errors"
	"fmt"
	"net"
	"slices"
)

// PeerCredentials identify the process on the other end of a Unix
// socket connection.
type PeerCredentials struct {
	PID int32
	UID uint32
	GID uint32
}

// errPeerCredentialsUnsupported is returned by peerCredentials on
// platforms without SO_PEERCRED.
var errPeerCredentialsUnsupported = errors.New("peer credentials not supported on this platform")

// AllowUIDs restricts Unix socket connections to peers running as one
// of uids. Connections whose credentials cannot be read are refused.
// TCP connections are not affected. An empty list allows every peer.
func (s *Server) AllowUIDs(uids []uint32) {
	s.allowedUIDs = slices.Clone(uids)
}

// authorizePeer checks a connection against the allowed UIDs.
func (s *Server) authorizePeer(conn net.Conn) error {
	if len(s.allowedUIDs) == 0 {
		return nil
	}
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}
	credentials, err := peerCredentials(unixConn)
	if err != nil {
		return fmt.Errorf("reading peer credentials: %w", err)
	}
	if !slices.Contains(s.allowedUIDs, credentials.UID) {
		s.logger.Warn("refusing tunnel peer",
			"uid", credentials.UID,
			"pid", credentials.PID,
		)
		return fmt.Errorf("peer uid %d is not permitted", credentials.UID)
	}
	return nil
}
