// Index accelerates repeated Pass calls against the same working set of
// branches with an exact-hash shortcut (spec.md §4.C: "O(H × claims) with
// hash-index shortcut; expected near-linear"). A long-running editor session
// re-runs Pass on every filesystem event, and most hunks on most passes are
// byte-identical to the previous pass (only a small edited region changed),
// so remembering "this hash already belongs to this branch" turns the
// repeat case into a single-branch check instead of a full scan of every
// applied branch's claim list.
package classify

import (
	"sort"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/antgroup/zeta-workspace/hunkdiff"
	"github.com/antgroup/zeta-workspace/modules/plumbing"
	"github.com/antgroup/zeta-workspace/vbranch"
	"github.com/antgroup/zeta-workspace/vbranch/ownership"
)

// Index is an optional, caller-held accelerator threaded through successive
// Pass calls for the same project. It is safe for concurrent use, but a
// project's classify passes are already serialized by vbranch/controller,
// so that safety is not load-bearing here.
type Index struct {
	cache *ristretto.Cache[string, vbranch.ID]
}

// NewIndex builds an Index sized for a typical editing session: a few
// thousand distinct hunk hashes is already generous, so the cost counter
// tracks hash-string bytes rather than entry count.
func NewIndex() (*Index, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, vbranch.ID]{
		NumCounters: 100_000,
		MaxCost:     10_000_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Index{cache: cache}, nil
}

// Close releases the underlying cache's background goroutines. Safe to call
// on a nil *Index.
func (idx *Index) Close() {
	if idx == nil || idx.cache == nil {
		return
	}
	idx.cache.Close()
}

func (idx *Index) lookup(hash string) (vbranch.ID, bool) {
	if idx == nil || idx.cache == nil || hash == "" {
		return vbranch.ID{}, false
	}
	return idx.cache.Get(hash)
}

func (idx *Index) remember(hash string, id vbranch.ID) {
	if idx == nil || idx.cache == nil || hash == "" {
		return
	}
	idx.cache.Set(hash, id, int64(len(hash)))
}

// PassIndexed runs the same classification as Pass, consulting idx for each
// hunk's exact hash before falling back to the full matchCandidates scan. A
// cache hit naming a branch still present in applied is checked directly
// against that one branch's ownership (ownership.Contains, O(claims) for a
// single branch rather than O(branches×claims)); a hash match there is taken
// immediately. A miss — or a hit whose branch no longer owns that hash,
// because the claim moved since the entry was written — falls through to
// the ordinary full scan, whose outcome re-primes the cache. idx may be nil,
// in which case this behaves exactly like Pass (useful for callers that
// have not opted into the accelerator).
func PassIndexed(idx *Index, hunks []hunkdiff.Hunk, applied []*vbranch.Branch, baseSHA plumbing.Hash, now int64) *Result {
	working := make(map[vbranch.ID]*vbranch.Branch, len(applied))
	order := make([]vbranch.ID, 0, len(applied))
	for _, b := range applied {
		working[b.ID] = b.Clone()
		order = append(order, b.ID)
	}
	changed := map[vbranch.ID]bool{}
	var created *vbranch.Branch
	var assignments []Assignment

	assign := func(target *vbranch.Branch, h hunkdiff.Hunk) {
		target.Ownership = ownership.Take(target.Ownership, h.Path, h.NewRange, h.Hash)
		target.UpdatedTimestampMs = now
		changed[target.ID] = true
		assignments = append(assignments, Assignment{BranchID: target.ID, Hunk: h})
		idx.remember(h.Hash, target.ID)
	}

	for _, h := range hunks {
		if cachedID, ok := idx.lookup(h.Hash); ok {
			if cached, present := working[cachedID]; present {
				if kind, _ := ownership.Contains(cached.Ownership, h.Path, h.NewRange, h.Hash); kind == ownership.HashMatch {
					assign(cached, h)
					continue
				}
			}
		}

		cands := matchCandidates(working, h)
		if len(cands) > 0 {
			winner := cands[0]
			wb := working[winner.id]
			for _, loser := range cands[1:] {
				lb := working[loser.id]
				lb.Ownership = ownership.Minus(lb.Ownership, ownership.Claim{Path: h.Path, Ranges: []ownership.Range{h.NewRange}})
				changed[loser.id] = true
			}
			assign(wb, h)
			continue
		}

		target := routeUnclaimed(working, order)
		if target == nil {
			target = newDefaultBranch(working, baseSHA, now)
			working[target.ID] = target
			order = append(order, target.ID)
			created = target
		}
		assign(target, h)
	}

	updated := make([]*vbranch.Branch, 0, len(changed))
	for id := range changed {
		updated = append(updated, working[id])
	}
	sort.Slice(updated, func(i, j int) bool { return updated[i].Order < updated[j].Order })
	return &Result{Updated: updated, Created: created, Assignments: assignments}
}
