// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package tunnel

import "net"

func peerCredentials(*net.UnixConn) (PeerCredentials, error) {
	return PeerCredentials{}, errPeerCredentialsUnsupported
}
