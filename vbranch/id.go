package vbranch

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/antgroup/zeta-workspace/vbranch/verrors"
)

// NewID mints a fresh opaque 128-bit branch identifier.
func NewID() ID {
	var id ID
	_, _ = rand.Read(id[:])
	// Set the RFC 4122 version/variant bits so String renders a
	// conventional UUID even though nothing downstream parses version.
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}

// String renders id in canonical UUID form (8-4-4-4-12 hex).
func (id ID) String() string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", id[0:4], id[4:6], id[6:8], id[8:10], id[10:16])
}

// ParseID parses a canonical UUID string back into an ID.
func ParseID(s string) (ID, error) {
	var clean string
	for _, r := range s {
		if r == '-' {
			continue
		}
		clean += string(r)
	}
	if len(clean) != 32 {
		return ID{}, verrors.NewErrIo(fmt.Sprintf("malformed branch id %q", s))
	}
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return ID{}, verrors.NewErrIo(fmt.Sprintf("malformed branch id %q: %v", s, err))
	}
	var id ID
	copy(id[:], raw)
	return id, nil
}
