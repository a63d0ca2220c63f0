package memstore

import (
	"context"
	"testing"

	"github.com/antgroup/zeta-workspace/modules/plumbing/filemode"
	"github.com/antgroup/zeta-workspace/vbranch/capability"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, s *Store, files map[string]string) *capability.Tree {
	ctx := context.Background()
	var entries []capability.TreeEntry
	for path, content := range files {
		h, err := s.WriteBlob(ctx, []byte(content))
		require.NoError(t, err)
		entries = append(entries, capability.TreeEntry{Path: path, Hash: h, Mode: filemode.Regular})
	}
	tree := &capability.Tree{Entries: entries}
	_, err := s.WriteTree(ctx, tree)
	require.NoError(t, err)
	return tree
}

func TestWriteBlobIsContentAddressed(t *testing.T) {
	ctx := context.Background()
	s := New()
	h1, err := s.WriteBlob(ctx, []byte("same content"))
	require.NoError(t, err)
	h2, err := s.WriteBlob(ctx, []byte("same content"))
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestMergeTreesCleanNonOverlapping(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := writeTree(t, s, map[string]string{"a.txt": "base\n"})
	ours := writeTree(t, s, map[string]string{"a.txt": "base\n", "ours-only.txt": "mine\n"})
	theirs := writeTree(t, s, map[string]string{"a.txt": "base\n", "theirs-only.txt": "yours\n"})

	merged, conflicts, err := s.MergeTrees(ctx, base, ours, theirs)
	require.NoError(t, err)
	require.Empty(t, conflicts)
	_, ok := merged.Entry("ours-only.txt")
	require.True(t, ok)
	_, ok = merged.Entry("theirs-only.txt")
	require.True(t, ok)
}

func TestMergeTreesConflictingEditProducesMarkers(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := writeTree(t, s, map[string]string{"a.txt": "line\n"})
	ours := writeTree(t, s, map[string]string{"a.txt": "other\n"})
	theirs := writeTree(t, s, map[string]string{"a.txt": "coworker\n"})

	merged, conflicts, err := s.MergeTrees(ctx, base, ours, theirs)
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt"}, conflicts)
	entry, ok := merged.Entry("a.txt")
	require.True(t, ok)
	content, err := s.ReadBlob(ctx, entry.Hash)
	require.NoError(t, err)
	require.Contains(t, string(content), "<<<<<<< ours")
	require.Contains(t, string(content), "=======")
	require.Contains(t, string(content), ">>>>>>> theirs")
}

func TestMergeTreesOneSidedEditWins(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := writeTree(t, s, map[string]string{"a.txt": "line\n"})
	ours := writeTree(t, s, map[string]string{"a.txt": "line\n"})
	theirs := writeTree(t, s, map[string]string{"a.txt": "changed\n"})

	merged, conflicts, err := s.MergeTrees(ctx, base, ours, theirs)
	require.NoError(t, err)
	require.Empty(t, conflicts)
	entry, ok := merged.Entry("a.txt")
	require.True(t, ok)
	content, err := s.ReadBlob(ctx, entry.Hash)
	require.NoError(t, err)
	require.Equal(t, "changed\n", string(content))
}

func TestRefCreateUpdateResolve(t *testing.T) {
	ctx := context.Background()
	s := New()
	h, err := s.WriteBlob(ctx, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, s.CreateRef(ctx, "refs/heads/main", h))
	err = s.CreateRef(ctx, "refs/heads/main", h)
	require.ErrorIs(t, err, capability.ErrRefExists)

	resolved, err := s.ResolveRef(ctx, "refs/heads/main")
	require.NoError(t, err)
	require.Equal(t, h, resolved)

	h2, err := s.WriteBlob(ctx, []byte("y"))
	require.NoError(t, err)
	require.NoError(t, s.UpdateRef(ctx, "refs/heads/main", h2, h))

	err = s.UpdateRef(ctx, "refs/heads/main", h2, h)
	require.Error(t, err, "expectedOld no longer matches current value")
}
