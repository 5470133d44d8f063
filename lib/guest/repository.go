// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package guest

import "github.com/bureau-foundation/scmtunnel/lib/tunnel"

// Repository is the guest's handle on a host repository. Its paths are
// virtual.
type Repository struct {
	FolderURI string
	Path      string
	IsRoot    bool
	IsClosed  bool

	onChange func(*Repository)
}

func newRepository(descriptor tunnel.RepositoryDescriptor, onChange func(*Repository)) *Repository {
	return &Repository{
		FolderURI: descriptor.FolderURI,
		Path:      descriptor.Path,
		IsRoot:    descriptor.IsRoot,
		IsClosed:  descriptor.IsClosed,
		onChange:  onChange,
	}
}

// NotifyChanged reports a change in the repository to the callback
// supplied when the handle was created.
func (r *Repository) NotifyChanged() {
	if r.onChange != nil {
		r.onChange(r)
	}
}
