// Package memstore is the reference ObjectStore/WorkTree adapter (SPEC_FULL
// §2 component M): an in-process, content-addressed store built directly on
// the retained modules/plumbing (BLAKE3 hashing), modules/zeta/object
// (Commit encode/decode), and modules/diferenco (three-way text merge)
// packages. It satisfies vbranch/capability's interfaces so tests — and any
// caller without its own backing store — can exercise the virtual-branch
// core without a real on-disk revision store.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/antgroup/zeta-workspace/modules/diferenco"
	"github.com/antgroup/zeta-workspace/modules/plumbing"
	"github.com/antgroup/zeta-workspace/modules/plumbing/filemode"
	"github.com/antgroup/zeta-workspace/modules/zeta/object"
	"github.com/antgroup/zeta-workspace/vbranch/capability"
	"github.com/antgroup/zeta-workspace/vbranch/verrors"
)

// Store is an in-memory ObjectStore.
type Store struct {
	mu      sync.Mutex
	blobs   map[plumbing.Hash][]byte
	trees   map[plumbing.Hash]*capability.Tree
	commits map[plumbing.Hash]*object.Commit
	refs    map[string]plumbing.Hash
}

func New() *Store {
	return &Store{
		blobs:   map[plumbing.Hash][]byte{},
		trees:   map[plumbing.Hash]*capability.Tree{},
		commits: map[plumbing.Hash]*object.Commit{},
		refs:    map[string]plumbing.Hash{},
	}
}

func hashOf(content []byte) plumbing.Hash {
	h := plumbing.NewHasher()
	_, _ = h.Write(content)
	return h.Sum()
}

func (s *Store) ReadBlob(ctx context.Context, h plumbing.Hash) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.blobs[h]
	if !ok {
		return nil, verrors.NewErrObjectStore("blob not found: " + h.String())
	}
	return content, nil
}

func (s *Store) WriteBlob(ctx context.Context, content []byte) (plumbing.Hash, error) {
	h := hashOf(content)
	s.mu.Lock()
	s.blobs[h] = append([]byte{}, content...)
	s.mu.Unlock()
	return h, nil
}

func treeHash(t *capability.Tree) plumbing.Hash {
	sorted := append([]capability.TreeEntry{}, t.Entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	h := plumbing.NewHasher()
	for _, e := range sorted {
		_, _ = h.Write([]byte(e.Path))
		_, _ = h.Write(e.Hash[:])
		_, _ = h.Write([]byte{byte(e.Mode), byte(e.Mode >> 8), byte(e.Mode >> 16), byte(e.Mode >> 24)})
	}
	return h.Sum()
}

func (s *Store) ReadTree(ctx context.Context, h plumbing.Hash) (*capability.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.IsZero() {
		return &capability.Tree{}, nil
	}
	t, ok := s.trees[h]
	if !ok {
		return nil, verrors.NewErrObjectStore("tree not found: " + h.String())
	}
	return t, nil
}

func (s *Store) WriteTree(ctx context.Context, t *capability.Tree) (plumbing.Hash, error) {
	sorted := append([]capability.TreeEntry{}, t.Entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	normalized := &capability.Tree{Entries: sorted}
	h := treeHash(normalized)
	s.mu.Lock()
	s.trees[h] = normalized
	s.mu.Unlock()
	return h, nil
}

func (s *Store) ReadCommit(ctx context.Context, h plumbing.Hash) (*object.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commits[h]
	if !ok {
		return nil, verrors.NewErrObjectStore("commit not found: " + h.String())
	}
	return c, nil
}

// WriteCommit hashes c through its own Encode, the same wire form the
// retained object.Commit already defines, so commit identity stays
// grounded in the teacher's object model rather than an ad hoc scheme.
func (s *Store) WriteCommit(ctx context.Context, c *object.Commit) (plumbing.Hash, error) {
	var buf fixedBuffer
	if err := c.Encode(&buf); err != nil {
		return plumbing.ZeroHash, verrors.NewErrObjectStore(err.Error())
	}
	h := hashOf(buf.b)
	c.Hash = h
	s.mu.Lock()
	s.commits[h] = c
	s.mu.Unlock()
	return h, nil
}

func (s *Store) IsAncestor(ctx context.Context, candidate, of plumbing.Hash) (bool, error) {
	if candidate == of {
		return true, nil
	}
	visited := map[plumbing.Hash]bool{}
	queue := []plumbing.Hash{of}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.IsZero() || visited[cur] {
			continue
		}
		visited[cur] = true
		if cur == candidate {
			return true, nil
		}
		c, err := s.ReadCommit(ctx, cur)
		if err != nil {
			continue
		}
		queue = append(queue, c.Parents...)
	}
	return false, nil
}

func (s *Store) ResolveRef(ctx context.Context, name string) (plumbing.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.refs[name]
	if !ok {
		return plumbing.ZeroHash, verrors.NewErrObjectStore("ref not found: " + name)
	}
	return h, nil
}

func (s *Store) UpdateRef(ctx context.Context, name string, target, expectedOld plumbing.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.refs[name]
	if !expectedOld.IsZero() && cur != expectedOld {
		return verrors.NewErrObjectStore("ref changed concurrently: " + name)
	}
	s.refs[name] = target
	return nil
}

func (s *Store) CreateRef(ctx context.Context, name string, target plumbing.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.refs[name]; exists {
		return capability.ErrRefExists
	}
	s.refs[name] = target
	return nil
}

func (s *Store) RefExists(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.refs[name]
	return ok, nil
}

// MergeTrees three-way merges ours/theirs against base, path by path.
// Text conflicts render with diferenco.DefaultMerge's default ("ours"/
// "theirs") labels — the exact marker form spec.md §8 scenario 4 asserts
// on. Binary conflicts (content differs on both sides, either side
// undecodable as text) keep ours's content and are still reported as
// conflicted so the caller can surface them.
func (s *Store) MergeTrees(ctx context.Context, base, ours, theirs *capability.Tree) (*capability.Tree, []string, error) {
	paths := map[string]struct{}{}
	for _, t := range []*capability.Tree{base, ours, theirs} {
		if t == nil {
			continue
		}
		for _, e := range t.Entries {
			paths[e.Path] = struct{}{}
		}
	}

	var conflicted []string
	entries := map[string]capability.TreeEntry{}
	for path := range paths {
		be, inBase := safeEntry(base, path)
		oe, inOurs := safeEntry(ours, path)
		te, inTheirs := safeEntry(theirs, path)

		switch {
		case inOurs && inTheirs && oe.Hash == te.Hash:
			entries[path] = oe
		case !inOurs && !inTheirs:
			// deleted on both sides
		case inOurs && !inTheirs && inBase && oe.Hash == be.Hash:
			// theirs deleted, ours unchanged: theirs' delete wins
		case inTheirs && !inOurs && (!inBase || te.Hash == be.Hash):
			entries[path] = te
		case inOurs && !inTheirs:
			entries[path] = oe
		case !inOurs && inBase && !inTheirs:
			// both deleted, handled above
		case inBase && inOurs && oe.Hash == be.Hash && inTheirs:
			entries[path] = te
		case inBase && inTheirs && te.Hash == be.Hash && inOurs:
			entries[path] = oe
		case !inBase && inOurs && !inTheirs:
			entries[path] = oe
		case !inBase && inTheirs && !inOurs:
			entries[path] = te
		default:
			merged, mode, isConflict, err := s.mergeContent(ctx, be, oe, te, inBase, inOurs, inTheirs)
			if err != nil {
				return nil, nil, err
			}
			h, err := s.WriteBlob(ctx, merged)
			if err != nil {
				return nil, nil, err
			}
			entries[path] = capability.TreeEntry{Path: path, Hash: h, Mode: mode}
			if isConflict {
				conflicted = append(conflicted, path)
			}
		}
	}

	out := make([]capability.TreeEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	tree := &capability.Tree{Entries: out}
	if _, err := s.WriteTree(ctx, tree); err != nil {
		return nil, nil, err
	}
	return tree, conflicted, nil
}

func safeEntry(t *capability.Tree, path string) (capability.TreeEntry, bool) {
	if t == nil {
		return capability.TreeEntry{}, false
	}
	return t.Entry(path)
}

func (s *Store) mergeContent(ctx context.Context, be, oe, te capability.TreeEntry, inBase, inOurs, inTheirs bool) ([]byte, filemode.FileMode, bool, error) {
	baseContent, ourContent, theirContent := []byte{}, []byte{}, []byte{}
	var err error
	if inBase {
		if baseContent, err = s.ReadBlob(ctx, be.Hash); err != nil {
			return nil, 0, false, err
		}
	}
	if inOurs {
		if ourContent, err = s.ReadBlob(ctx, oe.Hash); err != nil {
			return nil, 0, false, err
		}
	}
	if inTheirs {
		if theirContent, err = s.ReadBlob(ctx, te.Hash); err != nil {
			return nil, 0, false, err
		}
	}
	mode := oe.Mode
	if mode == filemode.Empty {
		mode = te.Mode
	}
	isText := func(b []byte) bool { return utf8.Valid(b) && !strings.ContainsRune(string(b), 0) }
	if inOurs && inTheirs && (!isText(ourContent) || !isText(theirContent)) {
		return ourContent, mode, true, nil
	}
	merged, hasConflict, err := diferenco.DefaultMerge(ctx, string(baseContent), string(ourContent), string(theirContent), "", "ours", "theirs")
	if err != nil {
		return nil, 0, false, err
	}
	return []byte(merged), mode, hasConflict, nil
}

// fixedBuffer is a minimal io.Writer over a growable byte slice, avoiding a
// bytes.Buffer import purely to keep this adapter's surface small.
type fixedBuffer struct{ b []byte }

func (f *fixedBuffer) Write(p []byte) (int, error) {
	f.b = append(f.b, p...)
	return len(p), nil
}
