// Package hunkdiff adapts modules/diferenco's unified-diff engine into the
// canonical hunk list of spec.md §4.B: stable identities, 3-line context,
// binary/mode-only sentinels, and add/delete as a full-range hunk rather
// than a line-by-line diff.
package hunkdiff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/antgroup/zeta-workspace/internal/obslog"
	"github.com/antgroup/zeta-workspace/modules/diferenco"
	"github.com/antgroup/zeta-workspace/modules/plumbing"
	"github.com/antgroup/zeta-workspace/modules/plumbing/filemode"
	"github.com/antgroup/zeta-workspace/vbranch/capability"
	"github.com/antgroup/zeta-workspace/vbranch/ownership"
	"golang.org/x/sync/errgroup"
)

// Kind distinguishes the sentinel shapes spec.md §4.B calls out alongside
// ordinary text hunks.
type Kind int

const (
	KindText Kind = iota
	KindBinary
	KindModeOnly
)

// Hunk is one canonical, contiguous diff region for one path.
type Hunk struct {
	Path string
	Kind Kind

	// OldRange/NewRange are half-open [start, end) line spans, 0-based,
	// matching ownership.Range's storage convention. NewRange is the
	// "range" used for ownership purposes (spec.md §3).
	OldRange ownership.Range
	NewRange ownership.Range

	OldMode filemode.FileMode
	NewMode filemode.FileMode

	// Hash is the hex BLAKE3 digest of the hunk body: for text hunks, the
	// inserted/deleted lines only, never context or the positional @@ header
	// (so context drift never changes identity); for binary hunks, the new
	// blob's hash.
	Hash string

	// Body is the unified-diff text of this hunk (header + all three kinds
	// of line), used by vbranch/treebuilder to apply only this hunk onto a
	// branch's head content.
	Body string
}

// Range returns h's new-file range, the one ownership.Contains/Take compare
// against claims.
func (h Hunk) Range() ownership.Range { return h.NewRange }

// isBinary reports whether content looks binary: a NUL byte in the first
// 8000 bytes, the same heuristic modules/diferenco's own callers use before
// attempting a line-oriented diff.
func isBinary(content []byte) bool {
	n := len(content)
	if n > 8000 {
		n = 8000
	}
	return bytes.IndexByte(content[:n], 0) >= 0
}

// DiffFile produces the canonical hunk list for one path given its content
// and mode at the base tree (oldContent/oldMode, both zero for a file add)
// and in the working tree (newContent/newMode, both zero for a file
// delete).
func DiffFile(ctx context.Context, path string, oldContent, newContent []byte, oldMode, newMode filemode.FileMode, oldExists, newExists bool) ([]Hunk, error) {
	switch {
	case !oldExists && !newExists:
		return nil, nil
	case isBinary(oldContent) || isBinary(newContent):
		return []Hunk{binaryHunk(path, newContent, newExists, oldMode, newMode)}, nil
	}

	u, err := diferenco.DoUnified(ctx, &diferenco.Options{S1: string(oldContent), S2: string(newContent)})
	if err != nil {
		return nil, err
	}

	if len(u.Hunks) == 0 {
		if oldMode != newMode {
			return []Hunk{modeOnlyHunk(path, oldMode, newMode)}, nil
		}
		return nil, nil
	}

	out := make([]Hunk, 0, len(u.Hunks))
	for i, dh := range u.Hunks {
		h := fromDiffHunk(path, dh, oldExists, newExists)
		// Mode changes attach to the first hunk of the file, per spec.md §4.B.
		if i == 0 && oldMode != newMode {
			h.OldMode = oldMode
			h.NewMode = newMode
		}
		out = append(out, h)
	}
	return out, nil
}

func fromDiffHunk(path string, dh *diferenco.Hunk, oldExists, newExists bool) Hunk {
	fromCount, toCount := 0, 0
	for _, l := range dh.Lines {
		switch l.Kind {
		case diferenco.Delete:
			fromCount++
		case diferenco.Insert:
			toCount++
		default:
			fromCount++
			toCount++
		}
	}

	oldRange := ownership.Range{Start: dh.FromLine - 1, End: dh.FromLine - 1 + fromCount}
	newRange := ownership.Range{Start: dh.ToLine - 1, End: dh.ToLine - 1 + toCount}
	if !newExists || toCount == 0 {
		// Pure deletion: spec.md §4.B encodes the new range as 0..0.
		newRange = ownership.Range{Start: 0, End: 0}
	}
	if !oldExists || fromCount == 0 {
		// Pure addition: spec.md §4.B encodes the old range as 0..0.
		oldRange = ownership.Range{Start: 0, End: 0}
	}

	body := renderHunkBody(dh)
	return Hunk{
		Path:     path,
		Kind:     KindText,
		OldRange: oldRange,
		NewRange: newRange,
		Hash:     hashHunkBody(dh),
		Body:     body,
	}
}

// renderHunkBody renders the unified-diff text for one hunk, header plus
// every line (context included, for the patch-application consumer).
func renderHunkBody(dh *diferenco.Hunk) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "@@ -%d +%d @@\n", dh.FromLine, dh.ToLine)
	for _, l := range dh.Lines {
		switch l.Kind {
		case diferenco.Delete:
			fmt.Fprintf(&b, "-%s", l.Content)
		case diferenco.Insert:
			fmt.Fprintf(&b, "+%s", l.Content)
		default:
			fmt.Fprintf(&b, " %s", l.Content)
		}
	}
	return b.String()
}

// hashHunkBody hashes only the inserted/deleted lines, skipping context and
// the line-numbered header, so a hunk's identity survives surrounding-line
// drift.
func hashHunkBody(dh *diferenco.Hunk) string {
	h := plumbing.NewHasher()
	for _, l := range dh.Lines {
		switch l.Kind {
		case diferenco.Delete:
			fmt.Fprintf(h, "-%s", l.Content)
		case diferenco.Insert:
			fmt.Fprintf(h, "+%s", l.Content)
		}
	}
	return h.Sum().String()
}

func binaryHunk(path string, newContent []byte, newExists bool, oldMode, newMode filemode.FileMode) Hunk {
	h := plumbing.NewHasher()
	_, _ = h.Write(newContent)
	hash := h.Sum()
	newRange := ownership.Range{Start: 0, End: 1}
	if !newExists {
		newRange = ownership.Range{Start: 0, End: 0}
	}
	return Hunk{
		Path:     path,
		Kind:     KindBinary,
		OldRange: ownership.Range{Start: 0, End: 0},
		NewRange: newRange,
		OldMode:  oldMode,
		NewMode:  newMode,
		Hash:     hash.String(),
		Body:     hash.String(),
	}
}

func modeOnlyHunk(path string, oldMode, newMode filemode.FileMode) Hunk {
	h := plumbing.NewHasher()
	fmt.Fprintf(h, "mode %o -> %o", oldMode, newMode)
	return Hunk{
		Path:     path,
		Kind:     KindModeOnly,
		OldRange: ownership.Range{Start: 0, End: 0},
		NewRange: ownership.Range{Start: 0, End: 0},
		OldMode:  oldMode,
		NewMode:  newMode,
		Hash:     h.Sum().String(),
	}
}

// pathResult holds one path's outcome so Collect can fan the per-path diff
// out across goroutines while still folding results back in the original
// sorted path order, keeping Collect's output deterministic regardless of
// goroutine scheduling.
type pathResult struct {
	hunks   []Hunk
	warning string
}

// Collect walks the union of paths present in base and working, producing
// every path's canonical hunks. Renames are not detected at this layer
// (spec.md §4.B): a rename surfaces as a delete hunk for the old path and
// an add hunk for the new path. A path whose content cannot be read is
// logged via obslog.Warnf, recorded in warnings, and skipped rather than
// aborting the whole pass (spec.md §4.C's failure mode).
func Collect(ctx context.Context, base *capability.Tree, wt capability.WorkTree, store capability.ObjectStore) (hunks []Hunk, warnings []string, err error) {
	working, err := wt.ListFiles(ctx)
	if err != nil {
		return nil, nil, err
	}

	paths := map[string]struct{}{}
	for _, e := range base.Entries {
		paths[e.Path] = struct{}{}
	}
	for _, p := range working {
		paths[p] = struct{}{}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	results := make([]pathResult, len(sorted))
	group, gctx := errgroup.WithContext(ctx)
	for i, path := range sorted {
		i, path := i, path
		group.Go(func() error {
			baseEntry, inBase := base.Entry(path)
			var oldContent []byte
			var oldMode filemode.FileMode
			if inBase {
				content, rerr := store.ReadBlob(gctx, baseEntry.Hash)
				if rerr != nil {
					obslog.Warnf("%s: read base blob: %v", path, rerr)
					results[i] = pathResult{warning: fmt.Sprintf("%s: read base blob: %v", path, rerr)}
					return nil
				}
				oldContent, oldMode = content, baseEntry.Mode
			}

			newContent, newMode, werr := wt.ReadFile(gctx, path)
			newExists := werr == nil
			if werr != nil && !errors.Is(werr, capability.ErrNotExist) {
				// Present at base, unreadable now for a reason other than
				// deletion: skip this path and warn (spec.md §4.C).
				obslog.Warnf("%s: read working file: %v", path, werr)
				results[i] = pathResult{warning: fmt.Sprintf("%s: read working file: %v", path, werr)}
				return nil
			}

			fileHunks, derr := DiffFile(gctx, path, oldContent, newContent, oldMode, newMode, inBase, newExists)
			if derr != nil {
				obslog.Warnf("%s: diff: %v", path, derr)
				results[i] = pathResult{warning: fmt.Sprintf("%s: diff: %v", path, derr)}
				return nil
			}
			results[i] = pathResult{hunks: fileHunks}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	for _, r := range results {
		if r.warning != "" {
			warnings = append(warnings, r.warning)
			continue
		}
		hunks = append(hunks, r.hunks...)
	}
	return hunks, warnings, nil
}
