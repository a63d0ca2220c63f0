// Package capability defines the injected collaborator interfaces this core
// consumes but never implements itself: the revision object store, the
// working-tree filesystem, hook invocation, and credential/transport
// helpers (spec.md §1, §9 "Dynamic dispatch over object-store and
// filesystem"). Every mutating component in this repository is written
// against these interfaces so a caller can supply deterministic test
// doubles without this core depending on a concrete backend.
package capability

import (
	"context"
	"errors"

	"github.com/antgroup/zeta-workspace/modules/plumbing"
	"github.com/antgroup/zeta-workspace/modules/plumbing/filemode"
	"github.com/antgroup/zeta-workspace/modules/zeta/object"
)

// ErrNotExist is returned by WorkTree.ReadFile for a path absent from the
// working tree, distinguishing "deleted" from "unreadable" so callers (the
// diff engine adapter, the classifier) know whether to treat a read
// failure as a deletion or as a skip-and-warn condition.
var ErrNotExist = errors.New("capability: path does not exist")

// ErrRefExists is returned by ObjectStore.CreateRef when name already
// resolves to something (spec.md §4.H's convert_to_real_branch collision).
var ErrRefExists = errors.New("capability: ref already exists")

// TreeEntry is one path's content within a Tree. Unlike the retained
// object.TreeEntry (whose Name is a single path component resolved through
// nested object.Tree lookups), Path here is the full slash-separated
// relative path — trees in this core are always handled in flattened form,
// since tree recursion into nested directory objects is the concrete
// object-store's concern (out of scope per spec.md §1), not this core's.
type TreeEntry struct {
	Path string
	Hash plumbing.Hash
	Mode filemode.FileMode
}

// Tree is a flattened, path-sorted snapshot of a whole working-tree state —
// this core's working vocabulary for "the tree of a commit" and "the tree a
// branch would produce on commit" alike (spec.md §3, §4.E, §4.F).
type Tree struct {
	Entries []TreeEntry
}

// Entry looks up path, returning ok=false if the tree has no such path.
func (t *Tree) Entry(path string) (TreeEntry, bool) {
	if t == nil {
		return TreeEntry{}, false
	}
	for _, e := range t.Entries {
		if e.Path == path {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// ObjectStore is the capability interface over the content-addressed
// revision store (spec.md §1's "revision object store"): blob/tree/commit
// read-write, three-way tree merge, ancestry walk, and ref resolution.
// Implementations decide how flattened Tree values correspond to their own
// nested tree objects; this core never inspects that correspondence.
type ObjectStore interface {
	ReadBlob(ctx context.Context, h plumbing.Hash) ([]byte, error)
	WriteBlob(ctx context.Context, content []byte) (plumbing.Hash, error)

	ReadTree(ctx context.Context, h plumbing.Hash) (*Tree, error)
	WriteTree(ctx context.Context, t *Tree) (plumbing.Hash, error)

	ReadCommit(ctx context.Context, h plumbing.Hash) (*object.Commit, error)
	WriteCommit(ctx context.Context, c *object.Commit) (plumbing.Hash, error)

	// MergeTrees performs a three-way merge of ours/theirs against base,
	// returning the resulting tree and the list of paths left with inline
	// conflict markers (empty when the merge was clean).
	MergeTrees(ctx context.Context, base, ours, theirs *Tree) (*Tree, []string, error)

	// IsAncestor reports whether candidate is an ancestor of (or equal to)
	// of commit, used by reset/move-commit reachability checks.
	IsAncestor(ctx context.Context, candidate, of plumbing.Hash) (bool, error)

	ResolveRef(ctx context.Context, name string) (plumbing.Hash, error)
	UpdateRef(ctx context.Context, name string, target plumbing.Hash, expectedOld plumbing.Hash) error
	// CreateRef creates a new branch ref at target, failing with
	// ErrRefExists if name already resolves to something.
	CreateRef(ctx context.Context, name string, target plumbing.Hash) error
	RefExists(ctx context.Context, name string) (bool, error)
}

// WorkTree is the capability interface over the working-tree filesystem
// (spec.md §1's "working-tree filesystem"): read/write/remove, including
// file modes (symlinks, executables).
type WorkTree interface {
	ReadFile(ctx context.Context, path string) ([]byte, filemode.FileMode, error)
	WriteFile(ctx context.Context, path string, content []byte, mode filemode.FileMode) error
	RemoveFile(ctx context.Context, path string) error
	// ListFiles enumerates every tracked path currently in the working
	// tree, used by the diff engine adapter and the classifier.
	ListFiles(ctx context.Context) ([]string, error)
	// Checkout replaces the working tree's contents with t, used after the
	// integration commit (spec.md §4.F step 5).
	Checkout(ctx context.Context, t *Tree) error
}

// Hooks is the capability interface over external hook invocation
// (spec.md §4.G): pre-commit, commit-msg, post-commit.
type Hooks interface {
	// RunPreCommit runs the pre-commit hook against the given tree,
	// returning its captured stdout and whether it rejected the commit.
	RunPreCommit(ctx context.Context, t *Tree) (stdout string, rejected bool, err error)
	// RunCommitMsg runs the commit-msg hook against message, returning any
	// hook-rewritten message, its stdout, and whether it rejected it.
	RunCommitMsg(ctx context.Context, message string) (rewritten string, stdout string, rejected bool, err error)
	// RunPostCommit runs the post-commit hook; failures are non-fatal
	// (spec.md §4.G), so it has no rejection return.
	RunPostCommit(ctx context.Context, commit plumbing.Hash)
}

// Credentials is the capability interface over credential acquisition for
// fetch/push (spec.md §1's "credential helpers").
type Credentials interface {
	// Askpass prompts for a credential for url, returning the caller's
	// answer (e.g. a password or token) or an error if declined/cancelled.
	Askpass(ctx context.Context, url, prompt string) (string, error)
}

// RemoteTransport is the capability interface over fetch/push, the only
// remote-synchronization surface this core issues requests through
// (spec.md §1: "issuing fetch/push requests" only, never performing the
// transport itself).
type RemoteTransport interface {
	Fetch(ctx context.Context, remote string, creds Credentials) error
	Push(ctx context.Context, remote, ref string, target plumbing.Hash, force bool, creds Credentials) error
}

// SigningKey identifies the key used by vbranch/surgery when a commit's
// caller requests signing (spec.md §4.G). ArmoredPrivateKey carries the
// caller-supplied OpenPGP private key in ASCII-armored form; PassphraseFn is
// consulted only if that key is passphrase-protected.
type SigningKey struct {
	KeyID             string
	ArmoredPrivateKey []byte
	PassphraseFn      func() (string, error)
}

// Signer is the capability interface over commit signing. vbranch/signer
// provides the concrete implementation backed by github.com/ProtonMail/go-crypto.
type Signer interface {
	Sign(ctx context.Context, payload []byte, key SigningKey) (signature []byte, err error)
}
