// Package store persists virtual-branch and target records to the
// consolidated TOML state file of spec.md §6, atomically replacing it on
// every write the same way modules/zeta/config.Encode replaces zeta.toml:
// encode to a sibling temp file, then os.Rename into place.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/antgroup/zeta-workspace/modules/plumbing"
	"github.com/antgroup/zeta-workspace/vbranch"
	"github.com/antgroup/zeta-workspace/vbranch/ownership"
	"github.com/antgroup/zeta-workspace/vbranch/verrors"
)

const stateFileName = "virtual_branches.toml"

// currentVersion is written by this package; ErrVersionConflict is returned
// when a writer's read predates the current on-disk version (spec.md §4.D's
// optimistic read-modify-write gate).
const currentVersion = 2

var ErrVersionConflict = verrors.NewErrIo("branch store: state file changed since it was read (version conflict)")

// targetRecord and branchRecord are the on-disk shapes, TOML-tagged to match
// spec.md §6's canonical form exactly; the in-memory vbranch.Branch/Target
// types use Go-idiomatic field names and plumbing.Hash, so this package is
// the single place that translates between the two.
type targetRecord struct {
	Branch         string `toml:"branch"`
	RemoteURL      string `toml:"remote_url"`
	SHA            string `toml:"sha"`
	PushRemoteName string `toml:"push_remote_name,omitempty"`
}

type branchRecord struct {
	Name                 string   `toml:"name"`
	Notes                string   `toml:"notes"`
	Applied              bool     `toml:"applied"`
	InWorkspace          bool     `toml:"in_workspace"`
	Upstream             string   `toml:"upstream,omitempty"`
	UpstreamHead         string   `toml:"upstream_head,omitempty"`
	Head                 string   `toml:"head"`
	Tree                 string   `toml:"tree"`
	StashTree            string   `toml:"stash_tree,omitempty"`
	Order                int      `toml:"order"`
	SelectedForChanges   int64    `toml:"selected_for_changes,omitempty"`
	CreatedTimestampMs   int64    `toml:"created_timestamp_ms"`
	UpdatedTimestampMs   int64    `toml:"updated_timestamp_ms"`
	Conflicted           bool     `toml:"conflicted,omitempty"`
	Ownership            []string `toml:"ownership"`
}

type state struct {
	Version       int                     `toml:"version"`
	DefaultTarget *targetRecord           `toml:"default_target,omitempty"`
	Branches      map[string]branchRecord `toml:"branches"`
}

// Store is the per-project branch store (spec.md §4.D). It is not itself
// concurrency-safe across processes beyond the atomic-replace + version
// gate; single-process concurrent callers are serialized by
// vbranch/controller.Controller, not by this package.
type Store struct {
	dir         string
	lastVersion int
}

// Open returns a Store rooted at dir, the per-project state directory. It
// does not read the state file; Open never fails on a missing file so a
// fresh project can be created lazily on first Put.
func Open(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path() string {
	return filepath.Join(s.dir, stateFileName)
}

func (s *Store) load() (*state, error) {
	st := &state{Branches: map[string]branchRecord{}}
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			if migrated, merr := s.migrateLegacy(); merr == nil && migrated != nil {
				return migrated, nil
			}
			st.Version = currentVersion
			return st, nil
		}
		return nil, verrors.NewErrIo(err.Error())
	}
	if _, err := toml.Decode(string(data), st); err != nil {
		return nil, verrors.NewErrIo(fmt.Sprintf("decode state: %v", err))
	}
	if st.Branches == nil {
		st.Branches = map[string]branchRecord{}
	}
	return st, nil
}

// atomicWrite mirrors modules/zeta/config.atomicEncode: write to a unique
// sibling temp file, then rename into place so readers never observe a
// half-written file.
func (s *Store) atomicWrite(st *state) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return verrors.NewErrIo(err.Error())
	}
	tmp := filepath.Join(s.dir, fmt.Sprintf(".virtual_branches-%d.toml", time.Now().UnixNano()))
	fd, err := os.Create(tmp)
	if err != nil {
		return verrors.NewErrIo(err.Error())
	}
	enc := toml.NewEncoder(fd)
	enc.Indent = ""
	encErr := enc.Encode(st)
	closeErr := fd.Close()
	if encErr != nil {
		_ = os.Remove(tmp)
		return verrors.NewErrIo(encErr.Error())
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return verrors.NewErrIo(closeErr.Error())
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		_ = os.Remove(tmp)
		return verrors.NewErrIo(err.Error())
	}
	return nil
}

// List returns every branch record sorted by Order, lowest first
// (spec.md's "order, lower = higher in UI").
func (s *Store) List() ([]*vbranch.Branch, error) {
	st, err := s.load()
	if err != nil {
		return nil, err
	}
	s.lastVersion = st.Version
	out := make([]*vbranch.Branch, 0, len(st.Branches))
	for idHex, rec := range st.Branches {
		b, err := decodeBranch(idHex, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// Get returns one branch record by id.
func (s *Store) Get(id vbranch.ID) (*vbranch.Branch, error) {
	st, err := s.load()
	if err != nil {
		return nil, err
	}
	s.lastVersion = st.Version
	rec, ok := st.Branches[id.String()]
	if !ok {
		return nil, verrors.ErrUnknownBranch
	}
	return decodeBranch(id.String(), rec)
}

// Put persists b, overwriting any existing record with the same id. The
// whole state file is rewritten atomically (spec.md §4.D).
func (s *Store) Put(b *vbranch.Branch) error {
	st, err := s.load()
	if err != nil {
		return err
	}
	if s.lastVersion != 0 && st.Version > s.lastVersion {
		return ErrVersionConflict
	}
	st.Branches[b.ID.String()] = encodeBranch(b)
	st.Version = currentVersion
	if err := s.atomicWrite(st); err != nil {
		return err
	}
	s.lastVersion = st.Version
	return nil
}

// Remove deletes a branch record.
func (s *Store) Remove(id vbranch.ID) error {
	st, err := s.load()
	if err != nil {
		return err
	}
	delete(st.Branches, id.String())
	st.Version = currentVersion
	return s.atomicWrite(st)
}

// DefaultTarget returns the project's target record, or nil if unset.
func (s *Store) DefaultTarget() (*vbranch.Target, error) {
	st, err := s.load()
	if err != nil {
		return nil, err
	}
	if st.DefaultTarget == nil {
		return nil, nil
	}
	return &vbranch.Target{
		Branch:         st.DefaultTarget.Branch,
		RemoteURL:      st.DefaultTarget.RemoteURL,
		SHA:            plumbing.NewHash(st.DefaultTarget.SHA),
		PushRemoteName: st.DefaultTarget.PushRemoteName,
	}, nil
}

// SetDefaultTarget persists t as the project's target record.
func (s *Store) SetDefaultTarget(t *vbranch.Target) error {
	st, err := s.load()
	if err != nil {
		return err
	}
	st.DefaultTarget = &targetRecord{
		Branch:         t.Branch,
		RemoteURL:      t.RemoteURL,
		SHA:            t.SHA.String(),
		PushRemoteName: t.PushRemoteName,
	}
	st.Version = currentVersion
	return s.atomicWrite(st)
}

func decodeBranch(idHex string, rec branchRecord) (*vbranch.Branch, error) {
	id, err := vbranch.ParseID(idHex)
	if err != nil {
		return nil, err
	}
	b := &vbranch.Branch{
		ID:                 id,
		Name:               rec.Name,
		Notes:              rec.Notes,
		Order:              rec.Order,
		Applied:            rec.Applied,
		InWorkspace:        rec.InWorkspace,
		Upstream:           rec.Upstream,
		UpstreamHead:       plumbing.NewHash(rec.UpstreamHead),
		Head:               plumbing.NewHash(rec.Head),
		Tree:               plumbing.NewHash(rec.Tree),
		StashTree:          plumbing.NewHash(rec.StashTree),
		Conflicted:         rec.Conflicted,
		CreatedTimestampMs: rec.CreatedTimestampMs,
		UpdatedTimestampMs: rec.UpdatedTimestampMs,
	}
	if rec.SelectedForChanges != 0 {
		v := rec.SelectedForChanges
		b.SelectedForChanges = &v
	}
	claims := make(ownership.List, 0, len(rec.Ownership))
	for _, raw := range rec.Ownership {
		claim, err := ownership.Parse(raw)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	b.Ownership = ownership.Normalize(claims)
	return b, nil
}

func encodeBranch(b *vbranch.Branch) branchRecord {
	rec := branchRecord{
		Name:               b.Name,
		Notes:              b.Notes,
		Applied:            b.Applied,
		InWorkspace:        b.InWorkspace,
		Upstream:           b.Upstream,
		Head:               b.Head.String(),
		Tree:               b.Tree.String(),
		Order:              b.Order,
		Conflicted:         b.Conflicted,
		CreatedTimestampMs: b.CreatedTimestampMs,
		UpdatedTimestampMs: b.UpdatedTimestampMs,
	}
	if !b.UpstreamHead.IsZero() {
		rec.UpstreamHead = b.UpstreamHead.String()
	}
	if !b.StashTree.IsZero() {
		rec.StashTree = b.StashTree.String()
	}
	if b.SelectedForChanges != nil {
		rec.SelectedForChanges = *b.SelectedForChanges
	}
	for _, c := range b.Ownership {
		rec.Ownership = append(rec.Ownership, c.String())
	}
	return rec
}
