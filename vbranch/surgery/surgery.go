// Package surgery implements spec.md §4.G: the per-branch commit-graph
// operations (commit, amend, undo, reset, insert-blank, reorder, squash,
// update-message, move-commit, move-commit-file). Descendant rewriting is
// expressed as a cherry-pick chain over object.Commit, the same shape the
// teacher's rebaseInternal loop uses (three-way merge of a commit's own
// parent tree, the new parent's tree, and the commit's own tree), adapted
// here from "rebase one branch onto another" to "rewrite one branch's own
// ancestry in place".
package surgery

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/antgroup/zeta-workspace/hunkdiff"
	"github.com/antgroup/zeta-workspace/modules/plumbing"
	"github.com/antgroup/zeta-workspace/modules/plumbing/filemode"
	"github.com/antgroup/zeta-workspace/modules/zeta/object"
	"github.com/antgroup/zeta-workspace/vbranch"
	"github.com/antgroup/zeta-workspace/vbranch/capability"
	"github.com/antgroup/zeta-workspace/vbranch/ownership"
	"github.com/antgroup/zeta-workspace/vbranch/treebuilder"
	"github.com/antgroup/zeta-workspace/vbranch/verrors"
)

// Options carries the collaborators a mutating operation threads through:
// hooks and a signer are both optional, matching the teacher's own pattern
// of treating hook/signing configuration as caller-supplied, not global.
type Options struct {
	Hooks    capability.Hooks
	RunHooks bool
	Signer   capability.Signer
	SignKey  capability.SigningKey
	Sign     bool
}

func readTree(ctx context.Context, store capability.ObjectStore, h plumbing.Hash) (*capability.Tree, error) {
	if h.IsZero() {
		return &capability.Tree{}, nil
	}
	c, err := store.ReadCommit(ctx, h)
	if err != nil {
		return nil, err
	}
	return store.ReadTree(ctx, c.Tree)
}

// ReapplyCommit re-applies c onto newParent via a three-way merge of c's
// own parent tree (the common ancestor), newParent's tree (ours), and c's
// own tree (theirs) — exactly the merge-tree call in the teacher's
// rebaseInternal loop, generalized to rewriting a branch's own history
// instead of rebasing onto another branch.
func ReapplyCommit(ctx context.Context, store capability.ObjectStore, c *object.Commit, newParent plumbing.Hash) (plumbing.Hash, error) {
	var parentOld plumbing.Hash
	if len(c.Parents) > 0 {
		parentOld = c.Parents[0]
	}
	baseTree, err := readTree(ctx, store, parentOld)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	oursTree, err := readTree(ctx, store, newParent)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	theirsCommit, err := store.ReadCommit(ctx, c.Hash)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	theirsTree, err := store.ReadTree(ctx, theirsCommit.Tree)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	merged, conflicts, err := store.MergeTrees(ctx, baseTree, oursTree, theirsTree)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if len(conflicts) > 0 {
		return plumbing.ZeroHash, verrors.NewErrMergeConflict(conflicts)
	}
	treeHash, err := store.WriteTree(ctx, merged)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	nc := &object.Commit{
		Tree:         treeHash,
		Author:       c.Author,
		Committer:    c.Committer,
		Parents:      []plumbing.Hash{newParent},
		ExtraHeaders: c.ExtraHeaders,
		Message:      c.Message,
	}
	return store.WriteCommit(ctx, nc)
}

// RewriteDescendants reapplies chain (oldest first) onto newParent in
// turn, threading each rewritten commit as the next one's parent.
func RewriteDescendants(ctx context.Context, store capability.ObjectStore, newParent plumbing.Hash, chain []*object.Commit) (plumbing.Hash, error) {
	cur := newParent
	for _, c := range chain {
		next, err := ReapplyCommit(ctx, store, c, cur)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		cur = next
	}
	return cur, nil
}

// LinearChain walks parent-first (following only the first parent, since a
// single branch's own commit chain inside this core is never a merge) from
// tip back to base exclusive, returning commits oldest-first.
func LinearChain(ctx context.Context, store capability.ObjectStore, tip, base plumbing.Hash) ([]*object.Commit, error) {
	var chain []*object.Commit
	cur := tip
	for !cur.IsZero() && cur != base {
		c, err := store.ReadCommit(ctx, cur)
		if err != nil {
			return nil, err
		}
		chain = append(chain, c)
		if len(c.Parents) == 0 {
			break
		}
		cur = c.Parents[0]
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func indexOfHash(chain []*object.Commit, h plumbing.Hash) int {
	for i, c := range chain {
		if c.Hash == h {
			return i
		}
	}
	return -1
}

// Commit implements commit(b, message, claim_filter?, signing?, run_hooks?)
// (spec.md §4.G). claimFilter selects which of b's owned hunks are folded
// into the new commit; nil means all of them.
func Commit(ctx context.Context, store capability.ObjectStore, wt capability.WorkTree, b *vbranch.Branch, message string, claimFilter ownership.List, opts Options, now time.Time) (*vbranch.Branch, error) {
	effective := b.Ownership
	if claimFilter != nil {
		effective = claimFilter
	}

	headTree, err := readTree(ctx, store, b.Head)
	if err != nil {
		return nil, err
	}
	tmp := b.Clone()
	tmp.Ownership = effective
	tree, err := treebuilder.Build(ctx, store, wt, headTree, tmp)
	if err != nil {
		return nil, err
	}

	if opts.Hooks != nil && opts.RunHooks {
		stdout, rejected, err := opts.Hooks.RunPreCommit(ctx, tree)
		if err != nil {
			return nil, err
		}
		if rejected {
			return nil, verrors.NewErrCommitHookRejected(stdout)
		}
		rewritten, stdout, rejected, err := opts.Hooks.RunCommitMsg(ctx, message)
		if err != nil {
			return nil, err
		}
		if rejected {
			return nil, verrors.NewErrCommitMsgHookRejected(stdout)
		}
		if rewritten != "" {
			message = rewritten
		}
	}

	treeHash, err := store.WriteTree(ctx, tree)
	if err != nil {
		return nil, err
	}
	sig := object.Signature{Name: "virtual-branch", Email: "virtual-branch@zeta-workspace.local", When: now}
	nc := &object.Commit{
		Tree:      treeHash,
		Author:    sig,
		Committer: sig,
		Parents:   []plumbing.Hash{b.Head},
		Message:   message,
	}
	if opts.Sign && opts.Signer != nil {
		var encoded bytes.Buffer
		if err := nc.Encode(&encoded); err != nil {
			return nil, err
		}
		sig, err := opts.Signer.Sign(ctx, encoded.Bytes(), opts.SignKey)
		if err != nil {
			return nil, err
		}
		nc.ExtraHeaders = append(nc.ExtraHeaders, &object.ExtraHeader{K: "gpgsig", V: string(sig)})
	}
	commitHash, err := store.WriteCommit(ctx, nc)
	if err != nil {
		return nil, err
	}

	out := b.Clone()
	out.Head = commitHash
	out.Tree = treeHash
	for _, claim := range effective {
		out.Ownership = ownership.Minus(out.Ownership, claim)
	}
	out.UpdatedTimestampMs = now.UnixMilli()
	if opts.Hooks != nil && opts.RunHooks {
		opts.Hooks.RunPostCommit(ctx, commitHash)
	}
	return out, nil
}

// Amend implements amend(b, commit, claim) (spec.md §4.G): commit must be
// b's current tip. The claim's hunks are folded into that commit's tree,
// same as treebuilder.Build would for an uncommitted branch, and removed
// from b's outstanding ownership.
func Amend(ctx context.Context, store capability.ObjectStore, wt capability.WorkTree, b *vbranch.Branch, commit plumbing.Hash, claim ownership.Claim, now time.Time) (*vbranch.Branch, error) {
	if commit != b.Head {
		return nil, verrors.ErrAmendOnlyTip
	}
	c, err := store.ReadCommit(ctx, commit)
	if err != nil {
		return nil, err
	}
	headTree, err := store.ReadTree(ctx, c.Tree)
	if err != nil {
		return nil, err
	}
	tmp := b.Clone()
	tmp.Ownership = ownership.List{claim}
	newTree, err := treebuilder.Build(ctx, store, wt, headTree, tmp)
	if err != nil {
		return nil, err
	}
	treeHash, err := store.WriteTree(ctx, newTree)
	if err != nil {
		return nil, err
	}
	nc := &object.Commit{
		Tree:         treeHash,
		Author:       c.Author,
		Committer:    c.Committer,
		Parents:      c.Parents,
		ExtraHeaders: c.ExtraHeaders,
		Message:      c.Message,
	}
	newHash, err := store.WriteCommit(ctx, nc)
	if err != nil {
		return nil, err
	}
	out := b.Clone()
	out.Head = newHash
	out.Tree = treeHash
	out.Ownership = ownership.Minus(out.Ownership, claim)
	out.UpdatedTimestampMs = now.UnixMilli()
	return out, nil
}

// UndoCommit implements undo_commit(b, commit) (spec.md §4.G): commit must
// be b's current tip. Its diff against its own parent reappears as b's
// uncommitted hunks.
func UndoCommit(ctx context.Context, store capability.ObjectStore, b *vbranch.Branch, commit plumbing.Hash, now time.Time) (*vbranch.Branch, error) {
	if commit != b.Head {
		return nil, verrors.ErrAmendOnlyTip
	}
	c, err := store.ReadCommit(ctx, commit)
	if err != nil {
		return nil, err
	}
	var parent plumbing.Hash
	if len(c.Parents) > 0 {
		parent = c.Parents[0]
	}
	parentTree, err := readTree(ctx, store, parent)
	if err != nil {
		return nil, err
	}
	commitTree, err := store.ReadTree(ctx, c.Tree)
	if err != nil {
		return nil, err
	}
	hunks, err := diffTrees(ctx, store, parentTree, commitTree)
	if err != nil {
		return nil, err
	}

	out := b.Clone()
	out.Head = parent
	for _, h := range hunks {
		out.Ownership = ownership.Take(out.Ownership, h.Path, h.NewRange, h.Hash)
	}
	out.UpdatedTimestampMs = now.UnixMilli()
	return out, nil
}

// ResetBranch implements reset_branch(b, target) (spec.md §4.G): target
// must be reachable from b.Head. Every commit after target, up to and
// including b.Head, reappears as b's uncommitted hunks.
func ResetBranch(ctx context.Context, store capability.ObjectStore, b *vbranch.Branch, target plumbing.Hash, now time.Time) (*vbranch.Branch, error) {
	ok, err := store.IsAncestor(ctx, target, b.Head)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, verrors.ErrMoveCommitUnreachable
	}
	chain, err := LinearChain(ctx, store, b.Head, target)
	if err != nil {
		return nil, err
	}

	out := b.Clone()
	// Oldest-first chain order doesn't matter for hunk re-addition: each
	// commit's own diff against its immediate parent is independent.
	for _, c := range chain {
		var parent plumbing.Hash
		if len(c.Parents) > 0 {
			parent = c.Parents[0]
		}
		parentTree, err := readTree(ctx, store, parent)
		if err != nil {
			return nil, err
		}
		commitTree, err := store.ReadTree(ctx, c.Tree)
		if err != nil {
			return nil, err
		}
		hunks, err := diffTrees(ctx, store, parentTree, commitTree)
		if err != nil {
			return nil, err
		}
		for _, h := range hunks {
			out.Ownership = ownership.Take(out.Ownership, h.Path, h.NewRange, h.Hash)
		}
	}
	out.Head = target
	out.UpdatedTimestampMs = now.UnixMilli()
	return out, nil
}

// InsertBlankCommit implements insert_blank_commit(b, anchor, offset)
// (spec.md §4.G): offset<0 inserts immediately before anchor, offset>=0
// immediately after. Descendants are re-created preserving message/author.
func InsertBlankCommit(ctx context.Context, store capability.ObjectStore, b *vbranch.Branch, anchor plumbing.Hash, offset int, author object.Signature, now time.Time) (*vbranch.Branch, error) {
	chain, err := LinearChain(ctx, store, b.Head, plumbing.ZeroHash)
	if err != nil {
		return nil, err
	}
	idx := indexOfHash(chain, anchor)
	if idx < 0 {
		return nil, verrors.ErrMoveCommitUnreachable
	}

	var blankParent plumbing.Hash
	var rewrite []*object.Commit
	if offset < 0 {
		if idx > 0 {
			blankParent = chain[idx-1].Hash
		}
		rewrite = chain[idx:]
	} else {
		blankParent = anchor
		rewrite = chain[idx+1:]
	}

	parentTree, err := readTree(ctx, store, blankParent)
	if err != nil {
		return nil, err
	}
	treeHash, err := store.WriteTree(ctx, parentTree)
	if err != nil {
		return nil, err
	}
	blank := &object.Commit{
		Tree:      treeHash,
		Author:    author,
		Committer: author,
		Parents:   []plumbing.Hash{blankParent},
		Message:   "",
	}
	blankHash, err := store.WriteCommit(ctx, blank)
	if err != nil {
		return nil, err
	}

	newHead, err := RewriteDescendants(ctx, store, blankHash, rewrite)
	if err != nil {
		return nil, err
	}
	out := b.Clone()
	out.Head = newHead
	out.UpdatedTimestampMs = now.UnixMilli()
	return out, nil
}

// ReorderCommit implements reorder_commit(b, commit, offset) (spec.md
// §4.G): moves commit by offset positions (negative earlier). On conflict
// it returns a nil branch and ErrReorderConflict; b itself is never
// mutated.
func ReorderCommit(ctx context.Context, store capability.ObjectStore, b *vbranch.Branch, commit plumbing.Hash, offset int, now time.Time) (*vbranch.Branch, error) {
	chain, err := LinearChain(ctx, store, b.Head, plumbing.ZeroHash)
	if err != nil {
		return nil, err
	}
	idx := indexOfHash(chain, commit)
	if idx < 0 {
		return nil, verrors.ErrMoveCommitUnreachable
	}
	newIdx := idx + offset
	if newIdx < 0 {
		newIdx = 0
	}
	if newIdx > len(chain)-1 {
		newIdx = len(chain) - 1
	}
	if newIdx == idx {
		return b.Clone(), nil
	}

	reordered := append([]*object.Commit{}, chain...)
	moved := reordered[idx]
	reordered = append(reordered[:idx], reordered[idx+1:]...)
	tail := append([]*object.Commit{moved}, reordered[newIdx:]...)
	reordered = append(reordered[:newIdx], tail...)

	changeFrom := min(idx, newIdx)
	var base plumbing.Hash
	if changeFrom > 0 {
		base = chain[changeFrom-1].Hash
	}
	newHead, err := RewriteDescendants(ctx, store, base, reordered[changeFrom:])
	if err != nil {
		if verrors.IsErrMergeConflict(err) {
			return nil, verrors.ErrReorderConflict
		}
		return nil, err
	}
	out := b.Clone()
	out.Head = newHead
	out.UpdatedTimestampMs = now.UnixMilli()
	return out, nil
}

// Squash implements squash(b, commit) (spec.md §4.G): commit is combined
// with its parent (parent message then a blank line then commit's own
// message), keeping commit's own tree since it already carries the
// parent's changes cumulatively.
func Squash(ctx context.Context, store capability.ObjectStore, b *vbranch.Branch, commit, baseSHA plumbing.Hash, now time.Time) (*vbranch.Branch, error) {
	c, err := store.ReadCommit(ctx, commit)
	if err != nil {
		return nil, err
	}
	if len(c.Parents) == 0 || c.Parents[0] == baseSHA {
		return nil, verrors.ErrSquashAtBase
	}
	parent, err := store.ReadCommit(ctx, c.Parents[0])
	if err != nil {
		return nil, err
	}

	squashed := &object.Commit{
		Tree:      c.Tree,
		Author:    c.Author,
		Committer: c.Committer,
		Parents:   parent.Parents,
		Message:   fmt.Sprintf("%s\n\n%s", parent.Message, c.Message),
	}
	squashedHash, err := store.WriteCommit(ctx, squashed)
	if err != nil {
		return nil, err
	}

	chain, err := LinearChain(ctx, store, b.Head, plumbing.ZeroHash)
	if err != nil {
		return nil, err
	}
	idx := indexOfHash(chain, commit)
	if idx < 0 {
		return nil, verrors.ErrMoveCommitUnreachable
	}
	newHead, err := RewriteDescendants(ctx, store, squashedHash, chain[idx+1:])
	if err != nil {
		return nil, err
	}
	out := b.Clone()
	out.Head = newHead
	out.UpdatedTimestampMs = now.UnixMilli()
	return out, nil
}

// UpdateCommitMessage implements update_commit_message(b, commit, msg)
// (spec.md §4.G).
func UpdateCommitMessage(ctx context.Context, store capability.ObjectStore, b *vbranch.Branch, commit plumbing.Hash, msg string, now time.Time) (*vbranch.Branch, error) {
	c, err := store.ReadCommit(ctx, commit)
	if err != nil {
		return nil, err
	}
	nc := &object.Commit{
		Tree:         c.Tree,
		Author:       c.Author,
		Committer:    c.Committer,
		Parents:      c.Parents,
		ExtraHeaders: c.ExtraHeaders,
		Message:      msg,
	}
	newHash, err := store.WriteCommit(ctx, nc)
	if err != nil {
		return nil, err
	}

	chain, err := LinearChain(ctx, store, b.Head, plumbing.ZeroHash)
	if err != nil {
		return nil, err
	}
	idx := indexOfHash(chain, commit)
	if idx < 0 {
		return nil, verrors.ErrMoveCommitUnreachable
	}
	newHead, err := RewriteDescendants(ctx, store, newHash, chain[idx+1:])
	if err != nil {
		return nil, err
	}
	out := b.Clone()
	out.Head = newHead
	out.UpdatedTimestampMs = now.UnixMilli()
	return out, nil
}

// MoveCommit implements move_commit(from_b, to_b, commit) (spec.md §4.G):
// commit is removed from fromB (its descendants reapplied without it) and
// cherry-picked onto toB's tip. Either step's conflict aborts the whole
// operation before either clone is used as the caller's new state.
func MoveCommit(ctx context.Context, store capability.ObjectStore, fromB, toB *vbranch.Branch, commit, baseSHA plumbing.Hash, now time.Time) (newFromB, newToB *vbranch.Branch, err error) {
	ok, err := store.IsAncestor(ctx, commit, fromB.Head)
	if err != nil {
		return nil, nil, err
	}
	if !ok || commit == baseSHA {
		return nil, nil, verrors.ErrMoveCommitUnreachable
	}

	chain, err := LinearChain(ctx, store, fromB.Head, plumbing.ZeroHash)
	if err != nil {
		return nil, nil, err
	}
	idx := indexOfHash(chain, commit)
	if idx < 0 {
		return nil, nil, verrors.ErrMoveCommitUnreachable
	}
	var base plumbing.Hash
	if idx > 0 {
		base = chain[idx-1].Hash
	}
	newFromHead, err := RewriteDescendants(ctx, store, base, chain[idx+1:])
	if err != nil {
		return nil, nil, err
	}

	movedCommit, err := store.ReadCommit(ctx, commit)
	if err != nil {
		return nil, nil, err
	}
	newToHead, err := ReapplyCommit(ctx, store, movedCommit, toB.Head)
	if err != nil {
		return nil, nil, err
	}

	outFrom := fromB.Clone()
	outFrom.Head = newFromHead
	outFrom.UpdatedTimestampMs = now.UnixMilli()
	outTo := toB.Clone()
	outTo.Head = newToHead
	outTo.UpdatedTimestampMs = now.UnixMilli()
	return outFrom, outTo, nil
}

// MoveCommitFile implements move_commit_file(b, from_commit, to_commit,
// claim) (spec.md §4.G) at path granularity: every path claim touches is
// moved from fromCommit's tree to toCommit's tree whole, rather than
// splicing the claim's individual line ranges across two different
// commits' line numbering — hunk ranges are only meaningful relative to
// one tree's content, so moving a sub-file range between two arbitrary
// historical trees needs its own re-diff per target, which this operation
// approximates at the path level.
func MoveCommitFile(ctx context.Context, store capability.ObjectStore, b *vbranch.Branch, fromCommit, toCommit plumbing.Hash, claim ownership.Claim, now time.Time) (*vbranch.Branch, error) {
	chain, err := LinearChain(ctx, store, b.Head, plumbing.ZeroHash)
	if err != nil {
		return nil, err
	}
	fromIdx := indexOfHash(chain, fromCommit)
	toIdx := indexOfHash(chain, toCommit)
	if fromIdx < 0 || toIdx < 0 {
		return nil, verrors.ErrMoveCommitUnreachable
	}

	fromC := chain[fromIdx]
	toC := chain[toIdx]
	var fromParent plumbing.Hash
	if len(fromC.Parents) > 0 {
		fromParent = fromC.Parents[0]
	}
	fromParentTree, err := readTree(ctx, store, fromParent)
	if err != nil {
		return nil, err
	}
	fromOwnTree, err := store.ReadTree(ctx, fromC.Tree)
	if err != nil {
		return nil, err
	}
	toOwnTree, err := store.ReadTree(ctx, toC.Tree)
	if err != nil {
		return nil, err
	}

	newFromEntries := append([]capability.TreeEntry{}, fromOwnTree.Entries...)
	newToEntries := append([]capability.TreeEntry{}, toOwnTree.Entries...)
	for _, e := range fromOwnTree.Entries {
		if e.Path != claim.Path {
			continue
		}
		// Revert this path in fromCommit to its parent's content...
		if parentEntry, ok := fromParentTree.Entry(e.Path); ok {
			newFromEntries = replaceEntry(newFromEntries, parentEntry)
		} else {
			newFromEntries = removeEntry(newFromEntries, e.Path)
		}
		// ...and carry the changed content into toCommit.
		newToEntries = replaceEntry(newToEntries, e)
	}

	newFromTreeHash, err := store.WriteTree(ctx, &capability.Tree{Entries: newFromEntries})
	if err != nil {
		return nil, err
	}
	newToTreeHash, err := store.WriteTree(ctx, &capability.Tree{Entries: newToEntries})
	if err != nil {
		return nil, err
	}

	newFromCommit := &object.Commit{
		Tree: newFromTreeHash, Author: fromC.Author, Committer: fromC.Committer,
		Parents: fromC.Parents, ExtraHeaders: fromC.ExtraHeaders, Message: fromC.Message,
	}
	if _, err := store.WriteCommit(ctx, newFromCommit); err != nil {
		return nil, err
	}
	newToCommit := &object.Commit{
		Tree: newToTreeHash, Author: toC.Author, Committer: toC.Committer,
		Parents: toC.Parents, ExtraHeaders: toC.ExtraHeaders, Message: toC.Message,
	}
	if _, err := store.WriteCommit(ctx, newToCommit); err != nil {
		return nil, err
	}

	rewritten := make([]*object.Commit, len(chain))
	copy(rewritten, chain)
	rewritten[fromIdx] = newFromCommit
	rewritten[toIdx] = newToCommit

	lowIdx := min(fromIdx, toIdx)
	var base plumbing.Hash
	if lowIdx > 0 {
		base = chain[lowIdx-1].Hash
	}
	newHead, err := RewriteDescendants(ctx, store, base, rewritten[lowIdx:])
	if err != nil {
		return nil, err
	}
	out := b.Clone()
	out.Head = newHead
	out.UpdatedTimestampMs = now.UnixMilli()
	return out, nil
}

func replaceEntry(entries []capability.TreeEntry, e capability.TreeEntry) []capability.TreeEntry {
	for i, existing := range entries {
		if existing.Path == e.Path {
			entries[i] = e
			return entries
		}
	}
	return append(entries, e)
}

func removeEntry(entries []capability.TreeEntry, path string) []capability.TreeEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.Path != path {
			out = append(out, e)
		}
	}
	return out
}

// diffTrees produces the canonical hunk list between two flattened trees,
// the tree-vs-tree counterpart of hunkdiff.Collect's tree-vs-working-tree
// walk, used by undo_commit/reset_branch to turn a commit's own diff back
// into a branch's uncommitted ownership.
func diffTrees(ctx context.Context, store capability.ObjectStore, oldTree, newTree *capability.Tree) ([]hunkdiff.Hunk, error) {
	paths := map[string]struct{}{}
	for _, e := range oldTree.Entries {
		paths[e.Path] = struct{}{}
	}
	for _, e := range newTree.Entries {
		paths[e.Path] = struct{}{}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	var hunks []hunkdiff.Hunk
	for _, path := range sorted {
		oe, inOld := oldTree.Entry(path)
		ne, inNew := newTree.Entry(path)
		var oldContent, newContent []byte
		oldMode, newMode := filemode.Empty, filemode.Empty
		if inOld {
			c, err := store.ReadBlob(ctx, oe.Hash)
			if err != nil {
				return nil, err
			}
			oldContent, oldMode = c, oe.Mode
		}
		if inNew {
			c, err := store.ReadBlob(ctx, ne.Hash)
			if err != nil {
				return nil, err
			}
			newContent, newMode = c, ne.Mode
		}
		hs, err := hunkdiff.DiffFile(ctx, path, oldContent, newContent, oldMode, newMode, inOld, inNew)
		if err != nil {
			return nil, err
		}
		hunks = append(hunks, hs...)
	}
	return hunks, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
