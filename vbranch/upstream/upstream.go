// Package upstream implements spec.md §4.I: synchronizing virtual branches
// against the remote. This core only issues fetch/push requests through
// capability.RemoteTransport (spec.md §1's explicit scoping) and otherwise
// reuses vbranch/surgery's cherry-pick/rewrite helpers for
// update_base_branch's per-branch rebase, the same way the teacher's own
// fetch/rebase porcelain layers on its worktree_rebase primitives.
package upstream

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/antgroup/zeta-workspace/hunkdiff"
	"github.com/antgroup/zeta-workspace/modules/plumbing"
	"github.com/antgroup/zeta-workspace/modules/plumbing/filemode"
	"github.com/antgroup/zeta-workspace/modules/zeta/object"
	"github.com/antgroup/zeta-workspace/vbranch"
	"github.com/antgroup/zeta-workspace/vbranch/capability"
	"github.com/antgroup/zeta-workspace/vbranch/surgery"
	"github.com/antgroup/zeta-workspace/vbranch/verrors"
	"golang.org/x/sync/errgroup"
)

// FetchResult reports the outcome of one fetch_from_remotes call.
type FetchResult struct {
	At        time.Time
	PerRemote map[string]error
}

// OK reports whether every remote fetched cleanly.
func (r *FetchResult) OK() bool {
	for _, err := range r.PerRemote {
		if err != nil {
			return false
		}
	}
	return true
}

// FetchFromRemotes implements fetch_from_remotes(project, askpass?)
// (spec.md §4.I): remotes plus the target's optional push-remote are
// fetched concurrently under one cancellable group (a slow or hung remote
// never blocks the others), with per-remote pass/fail recorded regardless
// of what the other remotes did.
func FetchFromRemotes(ctx context.Context, transport capability.RemoteTransport, creds capability.Credentials, remotes []string, pushRemote string, now time.Time) (*FetchResult, error) {
	all := append([]string{}, remotes...)
	if pushRemote != "" {
		found := false
		for _, r := range all {
			if r == pushRemote {
				found = true
				break
			}
		}
		if !found {
			all = append(all, pushRemote)
		}
	}

	result := &FetchResult{At: now, PerRemote: map[string]error{}}
	failures := map[string]string{}
	var mu sync.Mutex

	group, gctx := errgroup.WithContext(ctx)
	for _, remote := range all {
		remote := remote
		group.Go(func() error {
			ferr := transport.Fetch(gctx, remote, creds)
			mu.Lock()
			defer mu.Unlock()
			result.PerRemote[remote] = ferr
			if ferr != nil {
				failures[remote] = ferr.Error()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if len(failures) > 0 {
		return result, verrors.NewErrFetchFailed(failures)
	}
	return result, nil
}

// patchID is a stable identity for a commit's own change, independent of
// its parent hash: the sorted hunk hashes of its diff against its first
// parent, rehashed together. Two commits that apply the identical edit
// from different parents (e.g. the original and its upstream-integrated
// copy) produce the same patch-id, the same invariant git's
// patch-id/cherry rely on.
func patchID(ctx context.Context, store capability.ObjectStore, c *object.Commit) (string, error) {
	var parent plumbing.Hash
	if len(c.Parents) > 0 {
		parent = c.Parents[0]
	}
	parentTree, err := readTree(ctx, store, parent)
	if err != nil {
		return "", err
	}
	ownTree, err := store.ReadTree(ctx, c.Tree)
	if err != nil {
		return "", err
	}
	hunks, err := diffTrees(ctx, store, parentTree, ownTree)
	if err != nil {
		return "", err
	}
	hashes := make([]string, 0, len(hunks))
	for _, h := range hunks {
		hashes = append(hashes, h.Hash)
	}
	sort.Strings(hashes)

	hasher := plumbing.NewHasher()
	for _, h := range hashes {
		_, _ = hasher.Write([]byte(h))
	}
	return hasher.Sum().String(), nil
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

// DetectIntegrated implements detect_integrated(b) (spec.md §4.I):
// commits on b's chain from base to head are flagged (not mutated) when
// their patch-id already appears among upstream's own commits between
// base and upstreamHead.
func DetectIntegrated(ctx context.Context, store capability.ObjectStore, base, head, upstreamHead plumbing.Hash) (map[plumbing.Hash]bool, error) {
	upstreamChain, err := surgery.LinearChain(ctx, store, upstreamHead, base)
	if err != nil {
		return nil, err
	}
	upstreamIDs := map[string]bool{}
	for _, c := range upstreamChain {
		id, err := patchID(ctx, store, c)
		if err != nil {
			return nil, err
		}
		upstreamIDs[id] = true
	}

	branchChain, err := surgery.LinearChain(ctx, store, head, base)
	if err != nil {
		return nil, err
	}
	result := map[plumbing.Hash]bool{}
	for _, c := range branchChain {
		id, err := patchID(ctx, store, c)
		if err != nil {
			return nil, err
		}
		result[c.Hash] = upstreamIDs[id]
	}
	return result, nil
}

// CanApply implements can_apply_remote_branch / is_remote_branch_mergeable
// (spec.md §10): a read-only dry-run three-way merge of remoteHead against
// b.Head, discarding the result, answering only whether applying it would
// conflict.
func CanApply(ctx context.Context, store capability.ObjectStore, base, branchHead, remoteHead plumbing.Hash) (bool, error) {
	baseTree, err := readTree(ctx, store, base)
	if err != nil {
		return false, err
	}
	oursTree, err := readTree(ctx, store, branchHead)
	if err != nil {
		return false, err
	}
	theirsTree, err := readTree(ctx, store, remoteHead)
	if err != nil {
		return false, err
	}
	_, conflicts, err := store.MergeTrees(ctx, baseTree, oursTree, theirsTree)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// MergeUpstream implements merge_upstream(b) (spec.md §4.I): a three-way
// merge of b's own changes (ours) and upstreamHead (theirs) against base.
// A conflicting merge still produces the two-parent merge commit with
// inline markers and sets Conflicted, rather than aborting — the user
// resolves and commits it like any other working-tree conflict.
func MergeUpstream(ctx context.Context, store capability.ObjectStore, b *vbranch.Branch, base, upstreamHead plumbing.Hash, now time.Time) (*vbranch.Branch, error) {
	baseTree, err := readTree(ctx, store, base)
	if err != nil {
		return nil, err
	}
	oursTree, err := readTree(ctx, store, b.Head)
	if err != nil {
		return nil, err
	}
	theirsTree, err := readTree(ctx, store, upstreamHead)
	if err != nil {
		return nil, err
	}
	merged, conflicts, err := store.MergeTrees(ctx, baseTree, oursTree, theirsTree)
	if err != nil {
		return nil, err
	}
	treeHash, err := store.WriteTree(ctx, merged)
	if err != nil {
		return nil, err
	}

	sig := object.Signature{Name: "virtual-branch", Email: "virtual-branch@zeta-workspace.local", When: now}
	commit := &object.Commit{
		Tree:      treeHash,
		Author:    sig,
		Committer: sig,
		Parents:   []plumbing.Hash{b.Head, upstreamHead},
		Message:   "Merge upstream into " + b.Name,
	}
	commitHash, err := store.WriteCommit(ctx, commit)
	if err != nil {
		return nil, err
	}

	out := b.Clone()
	out.Head = commitHash
	out.Tree = treeHash
	out.UpstreamHead = upstreamHead
	out.Conflicted = len(conflicts) > 0
	out.UpdatedTimestampMs = now.UnixMilli()
	return out, nil
}

// UpdateBaseBranch implements update_base_branch() (spec.md §4.I): every
// applied branch's chain is rebased from oldBase onto newBase. A branch
// whose rebase conflicts is left untouched but unapplied, and its ID is
// reported to the caller as affected so the UI can prompt for manual
// resolution later, matching the original source's "return branches that
// failed to apply" contract.
func UpdateBaseBranch(ctx context.Context, store capability.ObjectStore, applied []*vbranch.Branch, oldBase, newBase plumbing.Hash, now time.Time) (rebased []*vbranch.Branch, unapplied []vbranch.ID, err error) {
	for _, b := range applied {
		chain, err := surgery.LinearChain(ctx, store, b.Head, oldBase)
		if err != nil {
			return nil, nil, err
		}
		newHead, rerr := surgery.RewriteDescendants(ctx, store, newBase, chain)
		if rerr != nil {
			out := b.Clone()
			out.Applied = false
			out.InWorkspace = false
			out.UpdatedTimestampMs = now.UnixMilli()
			rebased = append(rebased, out)
			unapplied = append(unapplied, b.ID)
			continue
		}
		out := b.Clone()
		out.Head = newHead
		out.UpdatedTimestampMs = now.UnixMilli()
		rebased = append(rebased, out)
	}
	return rebased, unapplied, nil
}

// Push implements push(b, force?) (spec.md §4.I): pushes b.Head to b's
// configured upstream ref. force is only honored when the caller explicitly
// requests it; the concrete transport decides how to enforce fast-forward
// otherwise.
func Push(ctx context.Context, transport capability.RemoteTransport, creds capability.Credentials, remote string, b *vbranch.Branch, force bool) error {
	if err := transport.Push(ctx, remote, b.Upstream, b.Head, force, creds); err != nil {
		return verrors.NewErrPushFailed(err.Error())
	}
	return nil
}
