// Package lifecycle implements spec.md §4.H: the apply/unapply/convert
// transitions a virtual branch goes through as it joins or leaves the
// single shared working tree. unapply/apply round-trip a branch's
// uncommitted content through vbranch.Branch.StashTree, reusing the same
// tree-writing path vbranch/treebuilder uses for T(b); convert_to_real_branch
// reuses the teacher's branch-naming/collision-detection shape from
// pkg/zeta/branch.go, reimplemented against this core's own branch record.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/antgroup/zeta-workspace/modules/plumbing"
	"github.com/antgroup/zeta-workspace/vbranch"
	"github.com/antgroup/zeta-workspace/vbranch/capability"
	"github.com/antgroup/zeta-workspace/vbranch/treebuilder"
	"github.com/antgroup/zeta-workspace/vbranch/verrors"
)

// NameConflictPolicy selects how convert_to_real_branch resolves a ref name
// that already exists (spec.md §4.H).
type NameConflictPolicy int

const (
	PolicyRename NameConflictPolicy = iota
	PolicyOverwrite
)

// claimedElsewhere returns the set of paths any of others claims, so unapply
// never reverts a path another applied branch still owns alongside this
// one's now-departing claims.
func claimedElsewhere(others []*vbranch.Branch) map[string]bool {
	out := map[string]bool{}
	for _, o := range others {
		for _, c := range o.Ownership {
			out[c.Path] = true
		}
	}
	return out
}

// Unapply implements unapply(b) (spec.md §4.H): b's current T(b) is
// preserved as a stash tree so Apply can restore it later, and the working
// tree reverts b's wholly-owned paths back to b.Head's content. Paths also
// claimed by another still-applied branch are left untouched; reconciling
// those is §4.F's job on the next integration run, not unapply's.
func Unapply(ctx context.Context, store capability.ObjectStore, wt capability.WorkTree, headTree *capability.Tree, b *vbranch.Branch, stillApplied []*vbranch.Branch, now time.Time) (*vbranch.Branch, error) {
	tb, err := treebuilder.Build(ctx, store, wt, headTree, b)
	if err != nil {
		return nil, err
	}
	stashHash, err := store.WriteTree(ctx, tb)
	if err != nil {
		return nil, err
	}

	sharedPaths := claimedElsewhere(stillApplied)
	for _, claim := range b.Ownership {
		if sharedPaths[claim.Path] {
			continue
		}
		entry, ok := headTree.Entry(claim.Path)
		if !ok {
			if err := wt.RemoveFile(ctx, claim.Path); err != nil {
				return nil, err
			}
			continue
		}
		content, err := store.ReadBlob(ctx, entry.Hash)
		if err != nil {
			return nil, err
		}
		if err := wt.WriteFile(ctx, claim.Path, content, entry.Mode); err != nil {
			return nil, err
		}
	}

	out := b.Clone()
	out.StashTree = stashHash
	out.Applied = false
	out.InWorkspace = false
	out.UpdatedTimestampMs = now.UnixMilli()
	return out, nil
}

// Apply implements apply(b) (spec.md §4.H): b's stashed content (if any) is
// restored into the shared working tree. A conflict against the currently
// folded integration tree marks the branch conflicted but still applies,
// leaving inline markers, matching merge_upstream's same "mark, don't
// abort" rule (§4.I).
func Apply(ctx context.Context, store capability.ObjectStore, wt capability.WorkTree, base, integrationTree *capability.Tree, b *vbranch.Branch, now time.Time) (*vbranch.Branch, error) {
	out := b.Clone()

	stash := &capability.Tree{}
	if !out.StashTree.IsZero() {
		t, err := store.ReadTree(ctx, out.StashTree)
		if err != nil {
			return nil, err
		}
		stash = t
	}

	merged, conflicts, err := store.MergeTrees(ctx, base, integrationTree, stash)
	if err != nil {
		return nil, err
	}
	out.Conflicted = len(conflicts) > 0

	for _, claim := range b.Ownership {
		entry, ok := merged.Entry(claim.Path)
		if !ok {
			if err := wt.RemoveFile(ctx, claim.Path); err != nil {
				return nil, err
			}
			continue
		}
		content, err := store.ReadBlob(ctx, entry.Hash)
		if err != nil {
			return nil, err
		}
		if err := wt.WriteFile(ctx, claim.Path, content, entry.Mode); err != nil {
			return nil, err
		}
	}

	out.StashTree = plumbing.ZeroHash
	out.Applied = true
	out.InWorkspace = true
	out.UpdatedTimestampMs = now.UnixMilli()
	return out, nil
}

// ConvertToRealBranch implements convert_to_real_branch(b, policy) (spec.md
// §4.H): it creates (or replaces) a named ref at b.Head, resolving a name
// collision per policy, and returns the ref name the caller should now
// treat as b's permanent home. Dropping the virtual-branch record itself is
// the caller's responsibility (vbranch/store.Remove), same as §4.F being
// the caller's responsibility after this returns.
func ConvertToRealBranch(ctx context.Context, store capability.ObjectStore, refPrefix, name string, head plumbing.Hash, policy NameConflictPolicy) (refName string, err error) {
	candidate := refPrefix + name
	exists, err := store.RefExists(ctx, candidate)
	if err != nil {
		return "", err
	}
	if !exists {
		if err := store.CreateRef(ctx, candidate, head); err != nil {
			return "", err
		}
		return candidate, nil
	}

	switch policy {
	case PolicyOverwrite:
		old, err := store.ResolveRef(ctx, candidate)
		if err != nil {
			return "", err
		}
		if err := store.UpdateRef(ctx, candidate, head, old); err != nil {
			return "", err
		}
		return candidate, nil
	case PolicyRename:
		for i := 2; ; i++ {
			renamed := fmt.Sprintf("%s-%d", candidate, i)
			taken, err := store.RefExists(ctx, renamed)
			if err != nil {
				return "", err
			}
			if !taken {
				if err := store.CreateRef(ctx, renamed, head); err != nil {
					return "", err
				}
				return renamed, nil
			}
		}
	default:
		return "", verrors.NewErrIo(fmt.Sprintf("convert_to_real_branch: unknown name-conflict policy %d", policy))
	}
}

// DeleteBranch implements delete_branch(b) (spec.md §4.H): permitted only
// when b is not currently applied. Removing the persisted record itself is
// vbranch/store's job.
func DeleteBranch(b *vbranch.Branch) error {
	if b.Applied {
		return verrors.ErrAlreadyApplied
	}
	return nil
}
