// Package classify implements the hunk-to-branch classifier of spec.md
// §4.C: matching claims against the current hunk set, resolving conflicts
// via the ownership tie-break, and routing unclaimed hunks to a default
// branch. The pass itself is pure and in-memory (spec.md §5: "the
// classifier's internal loop does not suspend"); callers persist the
// returned branches through vbranch/store.
package classify

import (
	"fmt"
	"sort"

	"github.com/antgroup/zeta-workspace/hunkdiff"
	"github.com/antgroup/zeta-workspace/modules/plumbing"
	"github.com/antgroup/zeta-workspace/vbranch"
	"github.com/antgroup/zeta-workspace/vbranch/ownership"
)

// Assignment records which branch ended up owning a given hunk, the
// information callers need to report a classify pass's outcome.
type Assignment struct {
	BranchID vbranch.ID
	Hunk     hunkdiff.Hunk
}

// Result is the outcome of one classify pass.
type Result struct {
	// Updated holds every branch whose ownership changed, including a
	// freshly created branch if one was needed.
	Updated []*vbranch.Branch
	// Created is non-nil when no applied branch existed to receive an
	// unclaimed hunk and a new one was minted.
	Created *vbranch.Branch
	// Assignments is the full path×branch decision log for this pass.
	Assignments []Assignment
}

// priority orders match kinds for the tie-break: exact-hash beats
// range-overlap beats no match, independent of ownership.MatchKind's own
// numeric values (spec.md §4.A's tie-break order, not iota order).
func priority(k ownership.MatchKind) int {
	switch k {
	case ownership.HashMatch:
		return 2
	case ownership.OverlapMatch:
		return 1
	default:
		return 0
	}
}

type candidate struct {
	id      vbranch.ID
	kind    ownership.MatchKind
	overlap int
}

// Pass classifies hunks against applied, returning the updated branch set.
// applied must contain only applied branches; baseSHA seeds a freshly
// created branch's head when no applied branch exists to receive an
// unclaimed hunk (spec.md §4.C step 3). now is unix millis, used both as
// the new branch's SelectedForChanges/created/updated timestamps and as
// the tie-break's "most recent wins" reference when ages are compared.
func Pass(hunks []hunkdiff.Hunk, applied []*vbranch.Branch, baseSHA plumbing.Hash, now int64) *Result {
	working := make(map[vbranch.ID]*vbranch.Branch, len(applied))
	order := make([]vbranch.ID, 0, len(applied))
	for _, b := range applied {
		working[b.ID] = b.Clone()
		order = append(order, b.ID)
	}
	changed := map[vbranch.ID]bool{}
	var created *vbranch.Branch
	var assignments []Assignment

	for _, h := range hunks {
		cands := matchCandidates(working, h)
		if len(cands) > 0 {
			winner := cands[0]
			wb := working[winner.id]
			for _, loser := range cands[1:] {
				lb := working[loser.id]
				lb.Ownership = ownership.Minus(lb.Ownership, ownership.Claim{Path: h.Path, Ranges: []ownership.Range{h.NewRange}})
				changed[loser.id] = true
			}
			wb.Ownership = ownership.Take(wb.Ownership, h.Path, h.NewRange, h.Hash)
			wb.UpdatedTimestampMs = now
			changed[winner.id] = true
			assignments = append(assignments, Assignment{BranchID: winner.id, Hunk: h})
			continue
		}

		target := routeUnclaimed(working, order)
		if target == nil {
			target = newDefaultBranch(working, baseSHA, now)
			working[target.ID] = target
			order = append(order, target.ID)
			created = target
		}
		target.Ownership = ownership.Take(target.Ownership, h.Path, h.NewRange, h.Hash)
		target.UpdatedTimestampMs = now
		changed[target.ID] = true
		assignments = append(assignments, Assignment{BranchID: target.ID, Hunk: h})
	}

	updated := make([]*vbranch.Branch, 0, len(changed))
	for id := range changed {
		updated = append(updated, working[id])
	}
	sort.Slice(updated, func(i, j int) bool { return updated[i].Order < updated[j].Order })
	return &Result{Updated: updated, Created: created, Assignments: assignments}
}

// matchCandidates finds every branch whose ownership matches h, sorted by
// the spec.md §4.A tie-break: exact-hash over overlap, larger overlap over
// smaller, most-recently-updated over older, lowest order over higher.
func matchCandidates(working map[vbranch.ID]*vbranch.Branch, h hunkdiff.Hunk) []candidate {
	var cands []candidate
	for id, b := range working {
		kind, overlap := ownership.Contains(b.Ownership, h.Path, h.NewRange, h.Hash)
		if kind == ownership.NoMatch {
			continue
		}
		cands = append(cands, candidate{id: id, kind: kind, overlap: overlap})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		ci, cj := cands[i], cands[j]
		if pi, pj := priority(ci.kind), priority(cj.kind); pi != pj {
			return pi > pj
		}
		if ci.overlap != cj.overlap {
			return ci.overlap > cj.overlap
		}
		bi, bj := working[ci.id], working[cj.id]
		if bi.UpdatedTimestampMs != bj.UpdatedTimestampMs {
			return bi.UpdatedTimestampMs > bj.UpdatedTimestampMs
		}
		return bi.Order < bj.Order
	})
	return cands
}

// routeUnclaimed picks the destination for a hunk no branch claims: the
// applied branch with the most recent SelectedForChanges, else the
// lowest-order applied branch, else nil (the caller mints a new one).
func routeUnclaimed(working map[vbranch.ID]*vbranch.Branch, order []vbranch.ID) *vbranch.Branch {
	var selected *vbranch.Branch
	for _, id := range order {
		b := working[id]
		if b.SelectedForChanges == nil {
			continue
		}
		if selected == nil || *b.SelectedForChanges > *selected.SelectedForChanges {
			selected = b
		}
	}
	if selected != nil {
		return selected
	}
	var lowest *vbranch.Branch
	for _, id := range order {
		b := working[id]
		if lowest == nil || b.Order < lowest.Order {
			lowest = b
		}
	}
	return lowest
}

// newDefaultBranch mints "Virtual branch [order+1]" as spec.md §4.C step 3
// requires when no applied branch exists to claim an unclaimed hunk.
func newDefaultBranch(working map[vbranch.ID]*vbranch.Branch, baseSHA plumbing.Hash, now int64) *vbranch.Branch {
	maxOrder := -1
	for _, b := range working {
		if b.Order > maxOrder {
			maxOrder = b.Order
		}
	}
	nextOrder := maxOrder + 1
	sel := now
	return &vbranch.Branch{
		ID:                 vbranch.NewID(),
		Name:               fmt.Sprintf("Virtual branch %d", nextOrder+1),
		Order:              nextOrder,
		Applied:            true,
		InWorkspace:        true,
		Head:               baseSHA,
		Tree:               baseSHA,
		SelectedForChanges: &sel,
		CreatedTimestampMs: now,
		UpdatedTimestampMs: now,
	}
}
