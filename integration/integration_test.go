package integration

import (
	"context"
	"testing"
	"time"

	"github.com/antgroup/zeta-workspace/modules/plumbing"
	"github.com/antgroup/zeta-workspace/modules/plumbing/filemode"
	"github.com/antgroup/zeta-workspace/modules/zeta/object"
	"github.com/antgroup/zeta-workspace/vbranch"
	"github.com/antgroup/zeta-workspace/vbranch/capability"
	"github.com/antgroup/zeta-workspace/vbranch/memstore"
	"github.com/antgroup/zeta-workspace/vbranch/verrors"
	"github.com/stretchr/testify/require"
)

// fakeWorkTree mirrors vbranch/treebuilder's test fake; kept local since
// sharing a test-only type across packages would need its own exported
// home, and this core has no test-support package to put it in.
type fakeWorkTree struct {
	files map[string][]byte
	modes map[string]filemode.FileMode
}

func newFakeWorkTree() *fakeWorkTree {
	return &fakeWorkTree{files: map[string][]byte{}, modes: map[string]filemode.FileMode{}}
}

func (w *fakeWorkTree) ReadFile(ctx context.Context, path string) ([]byte, filemode.FileMode, error) {
	content, ok := w.files[path]
	if !ok {
		return nil, filemode.Empty, capability.ErrNotExist
	}
	return content, w.modes[path], nil
}

func (w *fakeWorkTree) WriteFile(ctx context.Context, path string, content []byte, mode filemode.FileMode) error {
	w.files[path] = content
	w.modes[path] = mode
	return nil
}

func (w *fakeWorkTree) RemoveFile(ctx context.Context, path string) error {
	delete(w.files, path)
	delete(w.modes, path)
	return nil
}

func (w *fakeWorkTree) ListFiles(ctx context.Context) ([]string, error) {
	var out []string
	for p := range w.files {
		out = append(out, p)
	}
	return out, nil
}

func (w *fakeWorkTree) Checkout(ctx context.Context, t *capability.Tree) error {
	w.files = map[string][]byte{}
	return nil
}

func setupBaseCommit(t *testing.T, ctx context.Context, store *memstore.Store, files map[string]string) plumbing.Hash {
	var entries []capability.TreeEntry
	for path, content := range files {
		h, err := store.WriteBlob(ctx, []byte(content))
		require.NoError(t, err)
		entries = append(entries, capability.TreeEntry{Path: path, Hash: h, Mode: filemode.Regular})
	}
	treeHash, err := store.WriteTree(ctx, &capability.Tree{Entries: entries})
	require.NoError(t, err)
	commit := &object.Commit{Tree: treeHash, Message: "base"}
	h, err := store.WriteCommit(ctx, commit)
	require.NoError(t, err)
	return h
}

func TestRunFoldsAppliedBranchesCleanly(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	wt := newFakeWorkTree()

	base := setupBaseCommit(t, ctx, store, map[string]string{"a.txt": "base\n"})
	require.NoError(t, wt.WriteFile(ctx, "a.txt", []byte("base\n"), filemode.Regular))

	b1 := &vbranch.Branch{ID: vbranch.NewID(), Name: "one", Order: 0, Applied: true, Head: base}

	res, err := Run(ctx, store, wt, "refs/heads/workspace/integration", base, []*vbranch.Branch{b1}, time.Unix(0, 0))
	require.NoError(t, err)
	require.Empty(t, res.Conflicted)

	head, err := store.ResolveRef(ctx, "refs/heads/workspace/integration")
	require.NoError(t, err)
	require.Equal(t, res.Commit, head)

	require.NoError(t, VerifyBranch(ctx, store, "refs/heads/workspace/integration"))
}

func TestRunMarksBranchConflictedWithoutAborting(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	wt := newFakeWorkTree()

	base := setupBaseCommit(t, ctx, store, map[string]string{"a.txt": "l1\nl2\nl3\nl4\n"})

	// b1's commit history already rewrote a.txt to a conflicting value at
	// its own head, independent of the shared working tree, so its T(b)
	// diverges from base without needing per-branch working trees.
	b1Tree := setupBaseCommit(t, ctx, store, map[string]string{"a.txt": "mine\nl2\nl3\nl4\n"})
	b2Tree := setupBaseCommit(t, ctx, store, map[string]string{"a.txt": "theirs\nl2\nl3\nl4\n"})

	b1 := &vbranch.Branch{ID: vbranch.NewID(), Name: "one", Order: 0, Applied: true, Head: b1Tree}
	b2 := &vbranch.Branch{ID: vbranch.NewID(), Name: "two", Order: 1, Applied: true, Head: b2Tree}
	// Neither branch has uncommitted ownership; T(b) is simply each head's
	// own committed tree, so the fold's conflict comes purely from the
	// divergent commit trees, not from treebuilder's hunk splicing.
	require.NoError(t, wt.WriteFile(ctx, "a.txt", []byte("l1\nl2\nl3\nl4\n"), filemode.Regular))

	res, err := Run(ctx, store, wt, "refs/heads/workspace/integration", base, []*vbranch.Branch{b1, b2}, time.Unix(0, 0))
	require.NoError(t, err)
	require.Contains(t, res.Conflicted, b2.ID, "second branch folded in conflicts with the first's accumulated result")

	entry, ok := res.Tree.Entry("a.txt")
	require.True(t, ok)
	content, err := store.ReadBlob(ctx, entry.Hash)
	require.NoError(t, err)
	require.Contains(t, string(content), "<<<<<<< ours")
}

func TestVerifyBranchRejectsNonIntegrationHead(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	h, err := store.WriteBlob(ctx, []byte("x"))
	require.NoError(t, err)
	treeHash, err := store.WriteTree(ctx, &capability.Tree{Entries: []capability.TreeEntry{{Path: "a", Hash: h, Mode: filemode.Regular}}})
	require.NoError(t, err)
	commit := &object.Commit{Tree: treeHash, Message: "a plain commit, not integration"}
	commitHash, err := store.WriteCommit(ctx, commit)
	require.NoError(t, err)
	require.NoError(t, store.CreateRef(ctx, "refs/heads/main", commitHash))

	err = VerifyBranch(ctx, store, "refs/heads/main")
	require.True(t, verrors.IsErrNotOnIntegration(err))
	var target *verrors.ErrNotOnIntegration
	require.ErrorAs(t, err, &target)
	require.Equal(t, "refs/heads/main", target.Ref)
}
