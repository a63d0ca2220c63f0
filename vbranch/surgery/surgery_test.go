package surgery

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
	"github.com/antgroup/zeta-workspace/vbranch/ownership"
	"github.com/antgroup/zeta-workspace/vbranch/verrors"
	"github.com/stretchr/testify/require"
)

// fakeWorkTree mirrors the fakes in vbranch/treebuilder and
// integration; kept local for the same reason those are.
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

func (w *fakeWorkTree) Checkout(ctx context.Context, t *capability.Tree) error { return nil }

func commitFiles(t *testing.T, ctx context.Context, store *memstore.Store, parent plumbing.Hash, message string, files map[string]string) plumbing.Hash {
	var entries []capability.TreeEntry
	for path, content := range files {
		h, err := store.WriteBlob(ctx, []byte(content))
		require.NoError(t, err)
		entries = append(entries, capability.TreeEntry{Path: path, Hash: h, Mode: filemode.Regular})
	}
	treeHash, err := store.WriteTree(ctx, &capability.Tree{Entries: entries})
	require.NoError(t, err)
	var parents []plumbing.Hash
	if !parent.IsZero() {
		parents = []plumbing.Hash{parent}
	}
	c := &object.Commit{Tree: treeHash, Parents: parents, Message: message}
	h, err := store.WriteCommit(ctx, c)
	require.NoError(t, err)
	return h
}

func TestCommitFoldsOwnedHunksAndClearsOwnership(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	wt := newFakeWorkTree()

	base := commitFiles(t, ctx, store, plumbing.ZeroHash, "base", map[string]string{"a.txt": "l1\nl2\n"})
	require.NoError(t, wt.WriteFile(ctx, "a.txt", []byte("changed\nl2\n"), filemode.Regular))

	b := &vbranch.Branch{
		ID: vbranch.NewID(), Name: "feature", Head: base,
		Ownership: ownership.List{{Path: "a.txt", Ranges: []ownership.Range{{Start: 0, End: 1}}}},
	}

	out, err := Commit(ctx, store, wt, b, "my change", nil, Options{}, time.Unix(1, 0))
	require.NoError(t, err)
	require.NotEqual(t, base, out.Head)
	require.Empty(t, out.Ownership)

	c, err := store.ReadCommit(ctx, out.Head)
	require.NoError(t, err)
	require.Equal(t, "my change", c.Message)
	require.Equal(t, []plumbing.Hash{base}, c.Parents)

	tree, err := store.ReadTree(ctx, c.Tree)
	require.NoError(t, err)
	entry, ok := tree.Entry("a.txt")
	require.True(t, ok)
	content, err := store.ReadBlob(ctx, entry.Hash)
	require.NoError(t, err)
	require.Equal(t, "changed\nl2\n", string(content))
}

func TestCommitRejectedByPreCommitHook(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	wt := newFakeWorkTree()
	base := commitFiles(t, ctx, store, plumbing.ZeroHash, "base", map[string]string{"a.txt": "l1\n"})
	require.NoError(t, wt.WriteFile(ctx, "a.txt", []byte("l1\nnew\n"), filemode.Regular))

	b := &vbranch.Branch{
		ID: vbranch.NewID(), Name: "feature", Head: base,
		Ownership: ownership.List{{Path: "a.txt", Ranges: []ownership.Range{{Start: 1, End: 2}}}},
	}

	_, err := Commit(ctx, store, wt, b, "msg", nil, Options{Hooks: rejectingHooks{}, RunHooks: true}, time.Unix(1, 0))
	require.Error(t, err)
	var hookErr *verrors.ErrCommitHookRejected
	require.ErrorAs(t, err, &hookErr)
}

type rejectingHooks struct{}

func (rejectingHooks) RunPreCommit(ctx context.Context, t *capability.Tree) (string, bool, error) {
	return "rejected by policy", true, nil
}
func (rejectingHooks) RunCommitMsg(ctx context.Context, message string) (string, string, bool, error) {
	return "", "", false, nil
}
func (rejectingHooks) RunPostCommit(ctx context.Context, commit plumbing.Hash) {}

func TestAmendRequiresTipCommit(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	wt := newFakeWorkTree()
	root := commitFiles(t, ctx, store, plumbing.ZeroHash, "root", map[string]string{"a.txt": "x\n"})
	tip := commitFiles(t, ctx, store, root, "tip", map[string]string{"a.txt": "y\n"})

	b := &vbranch.Branch{ID: vbranch.NewID(), Head: tip}
	claim := ownership.Claim{Path: "a.txt", Ranges: []ownership.Range{{Start: 0, End: 1}}}

	_, err := Amend(ctx, store, wt, b, root, claim, time.Unix(0, 0))
	require.ErrorIs(t, err, verrors.ErrAmendOnlyTip)
}

func TestUndoCommitReaddsHunksAndMovesHeadBack(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	root := commitFiles(t, ctx, store, plumbing.ZeroHash, "root", map[string]string{"a.txt": "l1\n"})
	tip := commitFiles(t, ctx, store, root, "edit", map[string]string{"a.txt": "l1\nl2\n"})

	b := &vbranch.Branch{ID: vbranch.NewID(), Head: tip}
	out, err := UndoCommit(ctx, store, b, tip, time.Unix(0, 0))
	require.NoError(t, err)
	require.Equal(t, root, out.Head)
	require.NotEmpty(t, out.Ownership)
}

func TestResetBranchRejectsUnreachableTarget(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	root := commitFiles(t, ctx, store, plumbing.ZeroHash, "root", map[string]string{"a.txt": "x\n"})
	other := commitFiles(t, ctx, store, plumbing.ZeroHash, "unrelated", map[string]string{"b.txt": "y\n"})

	b := &vbranch.Branch{ID: vbranch.NewID(), Head: root}
	_, err := ResetBranch(ctx, store, b, other, time.Unix(0, 0))
	require.ErrorIs(t, err, verrors.ErrMoveCommitUnreachable)
}

func TestReorderCommitRewritesDescendants(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	root := commitFiles(t, ctx, store, plumbing.ZeroHash, "root", map[string]string{"a.txt": "base\n"})
	c1 := commitFiles(t, ctx, store, root, "first", map[string]string{"a.txt": "base\n", "one.txt": "1\n"})
	c2 := commitFiles(t, ctx, store, c1, "second", map[string]string{"a.txt": "base\n", "one.txt": "1\n", "two.txt": "2\n"})

	b := &vbranch.Branch{ID: vbranch.NewID(), Head: c2}
	out, err := ReorderCommit(ctx, store, b, c1, 1, time.Unix(0, 0))
	require.NoError(t, err)
	require.NotEqual(t, c2, out.Head)

	finalCommit, err := store.ReadCommit(ctx, out.Head)
	require.NoError(t, err)
	finalTree, err := store.ReadTree(ctx, finalCommit.Tree)
	require.NoError(t, err)
	_, ok := finalTree.Entry("one.txt")
	require.True(t, ok)
	_, ok = finalTree.Entry("two.txt")
	require.True(t, ok)
}

func TestSquashRejectsAtMergeBase(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	base := commitFiles(t, ctx, store, plumbing.ZeroHash, "base", map[string]string{"a.txt": "x\n"})
	tip := commitFiles(t, ctx, store, base, "tip", map[string]string{"a.txt": "y\n"})

	b := &vbranch.Branch{ID: vbranch.NewID(), Head: tip}
	_, err := Squash(ctx, store, b, tip, base, time.Unix(0, 0))
	require.ErrorIs(t, err, verrors.ErrSquashAtBase)
}

func TestSquashCombinesMessages(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	root := commitFiles(t, ctx, store, plumbing.ZeroHash, "root", map[string]string{"a.txt": "x\n"})
	mid := commitFiles(t, ctx, store, root, "middle commit", map[string]string{"a.txt": "y\n"})
	tip := commitFiles(t, ctx, store, mid, "top commit", map[string]string{"a.txt": "z\n"})

	b := &vbranch.Branch{ID: vbranch.NewID(), Head: tip}
	out, err := Squash(ctx, store, b, mid, plumbing.ZeroHash, time.Unix(0, 0))
	require.NoError(t, err)

	finalCommit, err := store.ReadCommit(ctx, out.Head)
	require.NoError(t, err)
	// the squashed commit became mid's replacement and is now finalCommit's
	// parent, carrying both original messages.
	squashedCommit, err := store.ReadCommit(ctx, finalCommit.Parents[0])
	require.NoError(t, err)
	require.Contains(t, squashedCommit.Message, "root")
	require.Contains(t, squashedCommit.Message, "middle commit")
}

func TestMoveCommitTransfersBetweenBranches(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	base := commitFiles(t, ctx, store, plumbing.ZeroHash, "base", map[string]string{"shared.txt": "s\n"})
	fromTip := commitFiles(t, ctx, store, base, "to move", map[string]string{"shared.txt": "s\n", "moved.txt": "m\n"})
	toTip := commitFiles(t, ctx, store, base, "destination tip", map[string]string{"shared.txt": "s\n", "dest.txt": "d\n"})

	fromB := &vbranch.Branch{ID: vbranch.NewID(), Name: "from", Head: fromTip}
	toB := &vbranch.Branch{ID: vbranch.NewID(), Name: "to", Head: toTip}

	newFrom, newTo, err := MoveCommit(ctx, store, fromB, toB, fromTip, base, time.Unix(0, 0))
	require.NoError(t, err)
	require.Equal(t, base, newFrom.Head, "removing the branch's only commit leaves it back at base")

	toCommit, err := store.ReadCommit(ctx, newTo.Head)
	require.NoError(t, err)
	toTree, err := store.ReadTree(ctx, toCommit.Tree)
	require.NoError(t, err)
	_, ok := toTree.Entry("moved.txt")
	require.True(t, ok, "the moved commit's file now appears on the destination branch")
	_, ok = toTree.Entry("dest.txt")
	require.True(t, ok, "destination's own prior content survives the cherry-pick")
}

func TestMoveCommitRejectsUnreachableCommit(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	base := commitFiles(t, ctx, store, plumbing.ZeroHash, "base", map[string]string{"a.txt": "x\n"})
	unrelated := commitFiles(t, ctx, store, plumbing.ZeroHash, "unrelated", map[string]string{"b.txt": "y\n"})

	fromB := &vbranch.Branch{ID: vbranch.NewID(), Head: base}
	toB := &vbranch.Branch{ID: vbranch.NewID(), Head: base}
	_, _, err := MoveCommit(ctx, store, fromB, toB, unrelated, base, time.Unix(0, 0))
	require.ErrorIs(t, err, verrors.ErrMoveCommitUnreachable)
}
