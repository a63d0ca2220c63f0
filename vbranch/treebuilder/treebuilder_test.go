package treebuilder

import (
	"context"
	"testing"

	"github.com/antgroup/zeta-workspace/modules/plumbing/filemode"
	"github.com/antgroup/zeta-workspace/vbranch"
	"github.com/antgroup/zeta-workspace/vbranch/capability"
	"github.com/antgroup/zeta-workspace/vbranch/memstore"
	"github.com/antgroup/zeta-workspace/vbranch/ownership"
	"github.com/stretchr/testify/require"
)

// fakeWorkTree is a minimal in-memory capability.WorkTree for these tests;
// memstore.Store already covers the ObjectStore half.
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
	return nil
}

func mustBlob(t *testing.T, store *memstore.Store, content string) (string, capability.TreeEntry) {
	h, err := store.WriteBlob(context.Background(), []byte(content))
	require.NoError(t, err)
	return content, capability.TreeEntry{Path: "a.txt", Hash: h, Mode: filemode.Regular}
}

func TestBuildAppliesOnlyOwnedEdit(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	wt := newFakeWorkTree()

	_, entry := mustBlob(t, store, "one\ntwo\nthree\nfour\nfive\nsix\nseven\neight\nnine\nten\n")
	headTree := &capability.Tree{Entries: []capability.TreeEntry{entry}}

	// Working tree has two independent edits in the same file: line 1
	// changed (owned) and line 10 changed (not owned by this branch). Eight
	// unchanged lines separate them, more than twice the 3-line context, so
	// they land in separate hunks.
	require.NoError(t, wt.WriteFile(ctx, "a.txt", []byte("ONE\ntwo\nthree\nfour\nfive\nsix\nseven\neight\nnine\nTEN\n"), filemode.Regular))

	b := &vbranch.Branch{
		ID: vbranch.NewID(),
		Ownership: ownership.List{
			{Path: "a.txt", Ranges: []ownership.Range{{Start: 0, End: 1}}},
		},
	}

	tree, err := Build(ctx, store, wt, headTree, b)
	require.NoError(t, err)
	out, ok := tree.Entry("a.txt")
	require.True(t, ok)
	content, err := store.ReadBlob(ctx, out.Hash)
	require.NoError(t, err)
	require.Equal(t, "ONE\ntwo\nthree\nfour\nfive\nsix\nseven\neight\nnine\nten\n", string(content), "unowned edit to line 10 must not leak into T(b)")
}

func TestBuildLeavesUnclaimedPathUntouched(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	wt := newFakeWorkTree()

	_, entry := mustBlob(t, store, "unchanged\n")
	headTree := &capability.Tree{Entries: []capability.TreeEntry{entry}}
	require.NoError(t, wt.WriteFile(ctx, "a.txt", []byte("edited elsewhere\n"), filemode.Regular))

	b := &vbranch.Branch{ID: vbranch.NewID()} // no ownership claims at all
	tree, err := Build(ctx, store, wt, headTree, b)
	require.NoError(t, err)
	out, ok := tree.Entry("a.txt")
	require.True(t, ok)
	require.Equal(t, entry.Hash, out.Hash, "path with no claim must stay exactly as in head")
}

func TestBuildOwnedFileAdd(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	wt := newFakeWorkTree()

	headTree := &capability.Tree{}
	require.NoError(t, wt.WriteFile(ctx, "new.txt", []byte("hello\n"), filemode.Regular))

	b := &vbranch.Branch{
		ID:        vbranch.NewID(),
		Ownership: ownership.List{{Path: "new.txt", Ranges: []ownership.Range{{Start: 0, End: 1}}}},
	}
	tree, err := Build(ctx, store, wt, headTree, b)
	require.NoError(t, err)
	out, ok := tree.Entry("new.txt")
	require.True(t, ok)
	content, err := store.ReadBlob(ctx, out.Hash)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(content))
}

func TestBuildOwnedFileDelete(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	wt := newFakeWorkTree()

	_, entry := mustBlob(t, store, "bye\n")
	headTree := &capability.Tree{Entries: []capability.TreeEntry{entry}}
	// working tree has no a.txt: it was deleted.

	b := &vbranch.Branch{
		ID:        vbranch.NewID(),
		Ownership: ownership.List{{Path: "a.txt", Ranges: []ownership.Range{{Start: 0, End: 0}}}},
	}
	tree, err := Build(ctx, store, wt, headTree, b)
	require.NoError(t, err)
	_, ok := tree.Entry("a.txt")
	require.False(t, ok, "owned delete must remove the path from T(b)")
}
