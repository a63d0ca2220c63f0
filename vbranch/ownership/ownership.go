// Package ownership implements the hunk-claim arithmetic that underlies the
// virtual-branch classifier: parsing, normalizing, and comparing the ranges
// of new-file lines a branch has claimed within a path.
//
// All operations here are pure and in-memory; no component in this package
// touches the object store or the working tree.
package ownership

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/antgroup/zeta-workspace/vbranch/verrors"
)

// maxHashHistory bounds how many hunk hashes a single range remembers (O3).
const maxHashHistory = 3

// Range is a half-open span of new-file line numbers, [Start, End).
type Range struct {
	Start int
	End   int
	// Hashes records the hunk-body hashes that have matched this range,
	// most recent first, bounded to maxHashHistory entries.
	Hashes []string
}

// Overlaps reports whether r and o share at least one line.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}

// Adjacent reports whether r and o touch or overlap, so they should be
// merged during normalization.
func (r Range) Adjacent(o Range) bool {
	return r.Start <= o.End && o.Start <= r.End
}

// overlapLen returns the number of lines r and o share.
func (r Range) overlapLen(o Range) int {
	start := max(r.Start, o.Start)
	end := min(r.End, o.End)
	if end <= start {
		return 0
	}
	return end - start
}

// HasHash reports whether hash is present in r's history.
func (r Range) HasHash(hash string) bool {
	for _, h := range r.Hashes {
		if h == hash {
			return true
		}
	}
	return false
}

// pushHash prepends hash to r's history, bounding it to maxHashHistory.
func (r *Range) pushHash(hash string) {
	if hash == "" {
		return
	}
	if r.HasHash(hash) {
		return
	}
	r.Hashes = append([]string{hash}, r.Hashes...)
	if len(r.Hashes) > maxHashHistory {
		r.Hashes = r.Hashes[:maxHashHistory]
	}
}

// Claim is one path's set of owned ranges, in first-seen order.
type Claim struct {
	Path   string
	Ranges []Range
}

// List is an ordered set of per-path claims, in first-claim order — a
// branch's ownership.
type List []Claim

// indexOf returns the index of the claim for path, or -1.
func (l List) indexOf(path string) int {
	for i := range l {
		if l[i].Path == path {
			return i
		}
	}
	return -1
}

// Parse decodes the external textual claim form:
//
//	path:a1-b1,a2-b2[-hash1][-hash2]
//
// a/b are 1-based and inclusive; a<=b. A trailing "-hex" segment (after the
// last numeric range) attaches a hunk-hash to that range's history. Hashes
// are listed most recent first and kept in that order on the Range.
func Parse(s string) (Claim, error) {
	colon := strings.IndexByte(s, ':')
	if colon <= 0 || colon == len(s)-1 {
		return Claim{}, &verrors.ErrMalformedClaim{Input: s}
	}
	path := s[:colon]
	rest := s[colon+1:]

	var claim Claim
	claim.Path = path
	for _, seg := range strings.Split(rest, ",") {
		r, err := parseRangeSegment(seg)
		if err != nil {
			return Claim{}, &verrors.ErrMalformedClaim{Input: s}
		}
		claim.Ranges = append(claim.Ranges, r)
	}
	if len(claim.Ranges) == 0 {
		return Claim{}, &verrors.ErrMalformedClaim{Input: s}
	}
	return claim, nil
}

// parseRangeSegment parses one "a-b[-hash1][-hash2]" segment into a Range
// stored as half-open [a-1, b).
func parseRangeSegment(seg string) (Range, error) {
	parts := strings.Split(seg, "-")
	if len(parts) < 2 {
		return Range{}, fmt.Errorf("malformed range segment %q", seg)
	}
	a, err := strconv.Atoi(parts[0])
	if err != nil {
		return Range{}, err
	}
	b, err := strconv.Atoi(parts[1])
	if err != nil {
		return Range{}, err
	}
	if a > b {
		return Range{}, fmt.Errorf("inverted range %q", seg)
	}
	r := Range{Start: a - 1, End: b}
	// Remaining dash-separated parts are hunk-hashes, listed most recent
	// first; pushing them from the last one back keeps that order.
	for i := len(parts) - 1; i >= 2; i-- {
		r.pushHash(parts[i])
	}
	return r, nil
}

// String renders a Claim back to its external textual form. Hash history is
// rendered most-recent-first, matching Parse's storage order.
func (c Claim) String() string {
	var b strings.Builder
	b.WriteString(c.Path)
	b.WriteByte(':')
	for i, r := range c.Ranges {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d-%d", r.Start+1, r.End)
		for _, h := range r.Hashes {
			b.WriteByte('-')
			b.WriteString(h)
		}
	}
	return b.String()
}

// Normalize merges adjacent/overlapping ranges within each path's claim,
// preserving path insertion order (O2).
func Normalize(list List) List {
	out := make(List, 0, len(list))
	for _, claim := range list {
		out = append(out, Claim{Path: claim.Path, Ranges: normalizeRanges(claim.Ranges)})
	}
	return out
}

func normalizeRanges(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []Range{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if last.Adjacent(r) {
			if r.End > last.End {
				last.End = r.End
			}
			if r.Start < last.Start {
				last.Start = r.Start
			}
			for _, h := range r.Hashes {
				last.pushHash(h)
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// Minus removes claim's ranges from owner's ownership, splitting ranges
// where necessary so unclaimed portions are preserved.
func Minus(owner List, claim Claim) List {
	idx := owner.indexOf(claim.Path)
	if idx < 0 {
		return owner
	}
	out := make(List, len(owner))
	copy(out, owner)

	remaining := out[idx].Ranges
	for _, cr := range claim.Ranges {
		remaining = subtractRange(remaining, cr)
	}
	if len(remaining) == 0 {
		out = append(out[:idx], out[idx+1:]...)
		return out
	}
	entry := out[idx]
	entry.Ranges = remaining
	out[idx] = entry
	return out
}

func subtractRange(ranges []Range, cut Range) []Range {
	var out []Range
	for _, r := range ranges {
		if !r.Overlaps(cut) {
			out = append(out, r)
			continue
		}
		if r.Start < cut.Start {
			out = append(out, Range{Start: r.Start, End: cut.Start, Hashes: r.Hashes})
		}
		if r.End > cut.End {
			out = append(out, Range{Start: cut.End, End: r.End, Hashes: r.Hashes})
		}
	}
	return out
}

// MatchKind describes how a claim matched a candidate hunk range.
type MatchKind int

const (
	NoMatch MatchKind = iota
	HashMatch
	OverlapMatch
)

// Contains reports whether owner claims hunkRange at path, either by exact
// hash (HashMatch) or by line overlap (OverlapMatch), and the overlap
// length (full range length for a hash match).
func Contains(owner List, path string, hunkRange Range, hunkHash string) (MatchKind, int) {
	idx := owner.indexOf(path)
	if idx < 0 {
		return NoMatch, 0
	}
	best := NoMatch
	bestLen := 0
	for _, r := range owner[idx].Ranges {
		if hunkHash != "" && r.HasHash(hunkHash) {
			return HashMatch, hunkRange.End - hunkRange.Start
		}
		if n := r.overlapLen(hunkRange); n > 0 && n > bestLen {
			best = OverlapMatch
			bestLen = n
		}
	}
	return best, bestLen
}

// Take adds hunkRange (with hunkHash, if any) at path to target's
// ownership, merging it with adjacent or overlapping ranges, and returns
// target's updated List. It changes no other branch's ownership: List has
// no branch identity of its own, so removing the range from other branches
// is left to the caller (e.g. with Minus).
func Take(target List, path string, hunkRange Range, hunkHash string) List {
	idx := target.indexOf(path)
	if idx < 0 {
		out := make(List, len(target), len(target)+1)
		copy(out, target)
		r := hunkRange
		r.pushHash(hunkHash)
		return append(out, Claim{Path: path, Ranges: []Range{r}})
	}
	out := make(List, len(target))
	copy(out, target)
	entry := out[idx]
	ranges := append([]Range{}, entry.Ranges...)
	ranges = append(ranges, hunkRange)
	entry.Ranges = normalizeRanges(ranges)
	for i := range entry.Ranges {
		if entry.Ranges[i].Overlaps(hunkRange) {
			entry.Ranges[i].pushHash(hunkHash)
		}
	}
	out[idx] = entry
	return out
}
