// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the scmtunnel
// binaries.
//
// Configuration is loaded from a single file specified by either the
// SCMTUNNEL_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks and no automatic file
// search. Command-line flags override individual values after loading;
// that merge happens in the binaries, not here.
//
// One file configures both ends: the host reads the host section, the
// guest reads the guest section, and both read logging. An environment
// section (development, production) overrides logging when
// [Config].Environment matches.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${XDG_RUNTIME_DIR}, and ${VAR:-default} patterns are
// expanded.
//
// This package depends on no other scmtunnel packages.
package config
