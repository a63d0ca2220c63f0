// Copyright 2018 Sourced Technologies, S.L.
// SPDX-License-Identifier: Apache-2.0

// Package filemode defines the set of valid file modes for tree entries,
// mirroring the POSIX mode bits used by the object store.
package filemode

import (
	"fmt"
	"io/fs"
	"strconv"
)

// A FileMode represents the kind and permission bits of a tree entry.
// It stores the same bit pattern as a Unix st_mode, plus a private bit
// (Fragments) the tree builder uses to mark entries that carry only a
// partial, owned slice of a file's content.
type FileMode uint32

const (
	Empty      FileMode = 0
	Dir        FileMode = 0040000
	Regular    FileMode = 0100644
	Deprecated FileMode = 0100644
	Executable FileMode = 0100755
	Symlink    FileMode = 0120000
	Submodule  FileMode = 0160000

	// Fragments marks a blob whose content was assembled from a subset of
	// a file's hunks rather than the file in full.
	Fragments FileMode = 1 << 31

	modeMask   FileMode = 0170000
	modeRegular FileMode = 0100000
)

// New parses the octal mode string used in tree object encoding.
func New(s string) (FileMode, error) {
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return Empty, fmt.Errorf("malformed mode %q: %w", s, err)
	}
	return FileMode(n), nil
}

// NewFromOS translates a Go fs.FileMode, as returned by Lstat, into the
// tree entry mode it corresponds to.
func NewFromOS(m fs.FileMode) (FileMode, error) {
	switch {
	case m.IsRegular():
		if m&0111 != 0 {
			return Executable, nil
		}
		return Regular, nil
	case m.IsDir():
		return Dir, nil
	case m&fs.ModeSymlink != 0:
		return Symlink, nil
	default:
		return Empty, fmt.Errorf("no equivalent file mode for %v", m)
	}
}

// Origin strips the Fragments bit, returning the mode the entry would carry
// if it represented the file's full content.
func (m FileMode) Origin() FileMode {
	return m &^ Fragments
}

// IsFragments reports whether m marks a partial, owned blob.
func (m FileMode) IsFragments() bool {
	return m&Fragments != 0
}

// IsMalformed reports whether m is not one of the recognized modes.
func (m FileMode) IsMalformed() bool {
	switch m.Origin() {
	case Empty, Dir, Regular, Executable, Symlink, Submodule:
		return false
	default:
		return true
	}
}

// IsFile reports whether m addresses file content (blob), as opposed to a
// tree or submodule link.
func (m FileMode) IsFile() bool {
	switch m.Origin() {
	case Regular, Executable, Symlink:
		return true
	default:
		return false
	}
}

// Bytes returns the canonical octal encoding of m, as written into a tree
// object (no leading zeros, no Fragments bit).
func (m FileMode) Bytes() []byte {
	return []byte(strconv.FormatUint(uint64(m.Origin()), 8))
}

// String implements fmt.Stringer.
func (m FileMode) String() string {
	return strconv.FormatUint(uint64(m.Origin()), 8)
}

// ToOSFileMode translates m into the closest Go fs.FileMode.
func (m FileMode) ToOSFileMode() (fs.FileMode, error) {
	switch m.Origin() {
	case Dir:
		return fs.ModeDir | 0755, nil
	case Symlink:
		return fs.ModeSymlink | 0777, nil
	case Regular:
		return 0644, nil
	case Executable:
		return 0755, nil
	case Submodule:
		return fs.ModeDir | 0755, nil
	case Empty:
		return 0, nil
	default:
		return 0, fmt.Errorf("malformed file mode: %v", m)
	}
}
