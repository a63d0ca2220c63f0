// Package integration implements spec.md §4.F: folding every applied
// virtual branch's tentative tree onto the base into one synthetic commit,
// so the revision store always sees a single consistent HEAD while N
// branches coexist uncommitted. The commit-construction shape (a plain
// object.Commit literal with an explicit parent list, written through
// ObjectStore.WriteCommit) mirrors the octopus merge commit built by the
// teacher's worktree_merge.go.
package integration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/antgroup/zeta-workspace/modules/plumbing"
	"github.com/antgroup/zeta-workspace/modules/zeta/object"
	"github.com/antgroup/zeta-workspace/vbranch"
	"github.com/antgroup/zeta-workspace/vbranch/capability"
	"github.com/antgroup/zeta-workspace/vbranch/treebuilder"
	"github.com/antgroup/zeta-workspace/vbranch/verrors"
)

// Banner is the fixed first line of every synthetic integration commit's
// message. verify_branch rejects any HEAD whose top commit lacks it.
const Banner = "zeta-workspace: virtual-branch integration commit"

// Identity is the author/committer recorded on the synthetic commit. The
// integration commit has no human author; it represents the union of N
// branches, so a fixed system identity is used rather than any one
// branch's own committer.
var Identity = object.Signature{Name: "zeta-workspace", Email: "workspace@zeta-workspace.local"}

// Result reports the outcome of one integration run.
type Result struct {
	Commit     plumbing.Hash
	Tree       *capability.Tree
	Conflicted []vbranch.ID
}

// Fold builds the union tree of every applied branch's T(b), folded onto
// base in order (spec.md §4.F steps 2-3). A three-way merge conflict marks
// that branch conflicted and leaves inline conflict markers in the folded
// tree; it never aborts the fold (spec.md §7: "merge conflicts in §4.F are
// not errors").
func Fold(ctx context.Context, store capability.ObjectStore, wt capability.WorkTree, base *capability.Tree, applied []*vbranch.Branch) (*capability.Tree, []vbranch.ID, error) {
	ordered := append([]*vbranch.Branch{}, applied...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	acc := base
	var conflicted []vbranch.ID
	for _, b := range ordered {
		headTree, err := headTreeOf(ctx, store, b)
		if err != nil {
			return nil, nil, err
		}
		tb, err := treebuilder.Build(ctx, store, wt, headTree, b)
		if err != nil {
			return nil, nil, err
		}
		merged, conflicts, err := store.MergeTrees(ctx, base, acc, tb)
		if err != nil {
			return nil, nil, err
		}
		if len(conflicts) > 0 {
			conflicted = append(conflicted, b.ID)
		}
		acc = merged
	}
	return acc, conflicted, nil
}

func headTreeOf(ctx context.Context, store capability.ObjectStore, b *vbranch.Branch) (*capability.Tree, error) {
	if b.Head.IsZero() {
		return &capability.Tree{}, nil
	}
	c, err := store.ReadCommit(ctx, b.Head)
	if err != nil {
		return nil, err
	}
	return store.ReadTree(ctx, c.Tree)
}

// Message renders the integration commit message: Banner, a blank line,
// then one "- name (head)" line per applied branch in order.
func Message(applied []*vbranch.Branch) string {
	ordered := append([]*vbranch.Branch{}, applied...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	var b strings.Builder
	b.WriteString(Banner)
	b.WriteString("\n\n")
	for _, br := range ordered {
		fmt.Fprintf(&b, "- %s (%s)\n", br.Name, br.Head.String())
	}
	return b.String()
}

// Run performs the full spec.md §4.F procedure: fold every applied
// branch's T(b) onto base, write the synthetic commit with parents
// [base, b1.head, b2.head, …], update headRef, and check the result out
// into the working tree.
func Run(ctx context.Context, store capability.ObjectStore, wt capability.WorkTree, headRef string, baseSHA plumbing.Hash, applied []*vbranch.Branch, now time.Time) (*Result, error) {
	var base *capability.Tree
	if !baseSHA.IsZero() {
		baseCommit, err := store.ReadCommit(ctx, baseSHA)
		if err != nil {
			return nil, err
		}
		base, err = store.ReadTree(ctx, baseCommit.Tree)
		if err != nil {
			return nil, err
		}
	} else {
		base = &capability.Tree{}
	}

	tree, conflicted, err := Fold(ctx, store, wt, base, applied)
	if err != nil {
		return nil, err
	}
	treeHash, err := store.WriteTree(ctx, tree)
	if err != nil {
		return nil, err
	}

	ordered := append([]*vbranch.Branch{}, applied...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })
	parents := []plumbing.Hash{baseSHA}
	for _, b := range ordered {
		if !b.Head.IsZero() {
			parents = append(parents, b.Head)
		}
	}

	sig := object.Signature{Name: Identity.Name, Email: Identity.Email, When: now}
	commit := &object.Commit{
		Tree:      treeHash,
		Author:    sig,
		Committer: sig,
		Parents:   parents,
		Message:   Message(applied),
	}
	commitHash, err := store.WriteCommit(ctx, commit)
	if err != nil {
		return nil, err
	}

	old, _ := store.ResolveRef(ctx, headRef)
	exists, err := store.RefExists(ctx, headRef)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := store.UpdateRef(ctx, headRef, commitHash, old); err != nil {
			return nil, err
		}
	} else {
		if err := store.CreateRef(ctx, headRef, commitHash); err != nil {
			return nil, err
		}
	}
	if err := wt.Checkout(ctx, tree); err != nil {
		return nil, err
	}

	var conflictedIDs []vbranch.ID
	conflictedIDs = append(conflictedIDs, conflicted...)
	return &Result{Commit: commitHash, Tree: tree, Conflicted: conflictedIDs}, nil
}

// VerifyBranch implements spec.md §10's verify_branch: HEAD's top commit
// must carry Banner as its message's first line. Exported as a first-class
// operation so callers invoke it before any mutating operation, the same
// role open_with_verify plays around every Controller method in the
// original source.
func VerifyBranch(ctx context.Context, store capability.ObjectStore, headRef string) error {
	head, err := store.ResolveRef(ctx, headRef)
	if err != nil {
		return err
	}
	c, err := store.ReadCommit(ctx, head)
	if err != nil {
		return err
	}
	firstLine := c.Message
	if i := strings.IndexByte(firstLine, '\n'); i != -1 {
		firstLine = firstLine[:i]
	}
	if firstLine != Banner {
		return verrors.NewErrNotOnIntegration(headRef)
	}
	return nil
}
