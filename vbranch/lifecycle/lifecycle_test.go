package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/antgroup/zeta-workspace/modules/plumbing/filemode"
	"github.com/antgroup/zeta-workspace/vbranch"
	"github.com/antgroup/zeta-workspace/vbranch/capability"
	"github.com/antgroup/zeta-workspace/vbranch/memstore"
	"github.com/antgroup/zeta-workspace/vbranch/ownership"
	"github.com/antgroup/zeta-workspace/vbranch/verrors"
	"github.com/stretchr/testify/require"
)

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

func writeTree(t *testing.T, ctx context.Context, store *memstore.Store, files map[string]string) *capability.Tree {
	var entries []capability.TreeEntry
	for path, content := range files {
		h, err := store.WriteBlob(ctx, []byte(content))
		require.NoError(t, err)
		entries = append(entries, capability.TreeEntry{Path: path, Hash: h, Mode: filemode.Regular})
	}
	tree := &capability.Tree{Entries: entries}
	_, err := store.WriteTree(ctx, tree)
	require.NoError(t, err)
	return tree
}

func TestUnapplyThenApplyRoundTripsContent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	wt := newFakeWorkTree()

	headTree := writeTree(t, ctx, store, map[string]string{"a.txt": "base\n"})
	require.NoError(t, wt.WriteFile(ctx, "a.txt", []byte("base\nmine\n"), filemode.Regular))

	b := &vbranch.Branch{
		ID: vbranch.NewID(), Name: "feature", Applied: true, InWorkspace: true,
		Ownership: ownership.List{{Path: "a.txt", Ranges: []ownership.Range{{Start: 1, End: 2}}}},
	}

	unapplied, err := Unapply(ctx, store, wt, headTree, b, nil, time.Unix(1, 0))
	require.NoError(t, err)
	require.False(t, unapplied.Applied)
	require.False(t, unapplied.StashTree.IsZero())

	content, _, err := wt.ReadFile(ctx, "a.txt")
	require.NoError(t, err)
	require.Equal(t, "base\n", string(content), "unapply reverts the working tree back to head content")

	applied, err := Apply(ctx, store, wt, headTree, headTree, unapplied, time.Unix(2, 0))
	require.NoError(t, err)
	require.True(t, applied.Applied)
	require.True(t, applied.StashTree.IsZero())
	require.False(t, applied.Conflicted)

	content, _, err = wt.ReadFile(ctx, "a.txt")
	require.NoError(t, err)
	require.Equal(t, "base\nmine\n", string(content), "apply restores the stashed content")
}

func TestUnapplyLeavesPathsOwnedByOtherBranchesAlone(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	wt := newFakeWorkTree()

	headTree := writeTree(t, ctx, store, map[string]string{"shared.txt": "base\n"})
	require.NoError(t, wt.WriteFile(ctx, "shared.txt", []byte("base\nmine\nyours\n"), filemode.Regular))

	b1 := &vbranch.Branch{
		ID: vbranch.NewID(), Applied: true,
		Ownership: ownership.List{{Path: "shared.txt", Ranges: []ownership.Range{{Start: 1, End: 2}}}},
	}
	b2 := &vbranch.Branch{
		ID: vbranch.NewID(), Applied: true,
		Ownership: ownership.List{{Path: "shared.txt", Ranges: []ownership.Range{{Start: 2, End: 3}}}},
	}

	_, err := Unapply(ctx, store, wt, headTree, b1, []*vbranch.Branch{b2}, time.Unix(0, 0))
	require.NoError(t, err)

	content, _, err := wt.ReadFile(ctx, "shared.txt")
	require.NoError(t, err)
	require.Equal(t, "base\nmine\nyours\n", string(content), "a path still owned by another applied branch is untouched")
}

func TestApplyMarksConflictedOnDivergentContent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	wt := newFakeWorkTree()

	base := writeTree(t, ctx, store, map[string]string{"a.txt": "line\n"})
	integration := writeTree(t, ctx, store, map[string]string{"a.txt": "coworker\n"})
	stash := writeTree(t, ctx, store, map[string]string{"a.txt": "mine\n"})
	stashHash, err := store.WriteTree(ctx, stash)
	require.NoError(t, err)

	b := &vbranch.Branch{
		ID: vbranch.NewID(), StashTree: stashHash,
		Ownership: ownership.List{{Path: "a.txt", Ranges: []ownership.Range{{Start: 0, End: 1}}}},
	}

	out, err := Apply(ctx, store, wt, base, integration, b, time.Unix(0, 0))
	require.NoError(t, err)
	require.True(t, out.Conflicted)

	content, _, err := wt.ReadFile(ctx, "a.txt")
	require.NoError(t, err)
	require.Contains(t, string(content), "<<<<<<< ours")
}

func TestDeleteBranchRejectsWhileApplied(t *testing.T) {
	b := &vbranch.Branch{Applied: true}
	err := DeleteBranch(b)
	require.ErrorIs(t, err, verrors.ErrAlreadyApplied)

	b.Applied = false
	require.NoError(t, DeleteBranch(b))
}

func TestConvertToRealBranchRenamesOnCollision(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	h, err := store.WriteBlob(ctx, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, store.CreateRef(ctx, "refs/heads/feature", h))

	name, err := ConvertToRealBranch(ctx, store, "refs/heads/", "feature", h, PolicyRename)
	require.NoError(t, err)
	require.Equal(t, "refs/heads/feature-2", name)
}

func TestConvertToRealBranchOverwritesOnCollision(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	h1, err := store.WriteBlob(ctx, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, store.CreateRef(ctx, "refs/heads/feature", h1))
	h2, err := store.WriteBlob(ctx, []byte("y"))
	require.NoError(t, err)

	name, err := ConvertToRealBranch(ctx, store, "refs/heads/", "feature", h2, PolicyOverwrite)
	require.NoError(t, err)
	require.Equal(t, "refs/heads/feature", name)

	resolved, err := store.ResolveRef(ctx, "refs/heads/feature")
	require.NoError(t, err)
	require.Equal(t, h2, resolved)
}
