// Package vbranch defines the persistent virtual-branch and target records
// (spec.md §3) shared by every component that reads or mutates them.
package vbranch

import (
	"github.com/antgroup/zeta-workspace/modules/plumbing"
	"github.com/antgroup/zeta-workspace/vbranch/ownership"
)

// ID is an opaque 128-bit virtual-branch identifier, rendered as a UUID in
// its textual and persisted forms.
type ID [16]byte

func (id ID) IsZero() bool {
	return id == ID{}
}

// Branch is the persistent virtual-branch record of spec.md §3. Field names
// mirror the spec's snake_case vocabulary translated to Go idiom; TOML tags
// (vbranch/store) restore the snake_case form on disk.
type Branch struct {
	ID    ID
	Name  string
	Notes string
	Order int

	Applied     bool
	InWorkspace bool

	Upstream     string // optional remote ref name
	UpstreamHead plumbing.Hash

	Head plumbing.Hash // tip of this branch's committed work
	Tree plumbing.Hash // tree of the last committed head, used to detect divergence

	Ownership ownership.List

	// StashTree holds the tree built by vbranch/lifecycle.Unapply (T(b) at
	// the moment the branch left the workspace), restored by Apply. Zero
	// when the branch has nothing stashed, e.g. right after creation or
	// after a successful Apply.
	StashTree plumbing.Hash

	// SelectedForChanges is non-nil when this branch is the default
	// destination for hunks the classifier cannot otherwise place.
	SelectedForChanges *int64 // unix millis, nil if unset

	// Conflicted is set by the integration fold (§4.F) or merge_upstream
	// (§4.I) when this branch's tree could not be merged cleanly. It is
	// never set by move/reorder/squash, which abort atomically instead.
	Conflicted bool

	CreatedTimestampMs int64
	UpdatedTimestampMs int64
}

// Clone returns a deep copy safe to mutate independently of b.
func (b *Branch) Clone() *Branch {
	if b == nil {
		return nil
	}
	out := *b
	out.Ownership = append(ownership.List{}, b.Ownership...)
	if b.SelectedForChanges != nil {
		v := *b.SelectedForChanges
		out.SelectedForChanges = &v
	}
	return &out
}

// Target is the persistent per-project target record of spec.md §3: the
// remote ref and base commit every virtual branch conceptually forks from.
type Target struct {
	Branch         string // remote ref, e.g. "refs/remotes/origin/main"
	RemoteURL      string
	SHA            plumbing.Hash
	PushRemoteName string // optional
}
