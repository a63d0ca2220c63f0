// Package treebuilder implements spec.md §4.E: for one applied branch,
// build the synthetic tree representing "the branch's committed head plus
// its uncommitted, owned hunks" — T(b) in the spec's notation.
package treebuilder

import (
	"bytes"
	"context"
	"errors"
	"sort"

	"github.com/antgroup/zeta-workspace/hunkdiff"
	"github.com/antgroup/zeta-workspace/modules/plumbing/filemode"
	"github.com/antgroup/zeta-workspace/vbranch"
	"github.com/antgroup/zeta-workspace/vbranch/capability"
	"github.com/antgroup/zeta-workspace/vbranch/ownership"
)

// Build constructs T(b): headTree's entries, with every path b owns
// replaced by a blob assembled from only b's owned hunks applied onto that
// path's content at b.Head (spec.md §4.E steps 1-4). Paths b does not claim
// at all are left exactly as they are in headTree, so unowned edits never
// leak into T(b) even when ownership within a single file is partial.
func Build(ctx context.Context, store capability.ObjectStore, wt capability.WorkTree, headTree *capability.Tree, b *vbranch.Branch) (*capability.Tree, error) {
	entries := map[string]capability.TreeEntry{}
	for _, e := range headTree.Entries {
		entries[e.Path] = e
	}

	for _, claim := range b.Ownership {
		path := claim.Path
		headEntry, inHead := headTree.Entry(path)
		var headContent []byte
		headMode := filemode.Empty
		if inHead {
			content, err := store.ReadBlob(ctx, headEntry.Hash)
			if err != nil {
				return nil, err
			}
			headContent = content
			headMode = headEntry.Mode
		}

		workingContent, workingMode, werr := wt.ReadFile(ctx, path)
		workingExists := werr == nil
		if werr != nil && !errors.Is(werr, capability.ErrNotExist) {
			return nil, werr
		}

		hunks, err := hunkdiff.DiffFile(ctx, path, headContent, workingContent, headMode, workingMode, inHead, workingExists)
		if err != nil {
			return nil, err
		}
		owned := filterOwned(hunks, claim)
		if len(owned) == 0 {
			continue
		}

		content, mode, deleted := applyOwnedHunks(headContent, workingContent, headMode, workingMode, owned, workingExists)
		if deleted {
			delete(entries, path)
			continue
		}
		hash, err := store.WriteBlob(ctx, content)
		if err != nil {
			return nil, err
		}
		entries[path] = capability.TreeEntry{Path: path, Hash: hash, Mode: mode}
	}

	out := make([]capability.TreeEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return &capability.Tree{Entries: out}, nil
}

// filterOwned keeps only the hunks claim actually covers. A claim's ranges
// are kept in sync with the current hunk set by the classifier (drift
// tracking), so an overlap or hash match against the live hunk set is
// sufficient; whole-file sentinel hunks (deletes, binary changes,
// mode-only changes) carry an empty new-range that can never overlap
// anything, so they're matched by falling back to "claim owns this path
// at all" — a file-level event can't be split across branches.
func filterOwned(hunks []hunkdiff.Hunk, claim ownership.Claim) []hunkdiff.Hunk {
	var out []hunkdiff.Hunk
	for _, h := range hunks {
		sentinel := h.NewRange.Start == h.NewRange.End
		matched := false
		for _, r := range claim.Ranges {
			if r.HasHash(h.Hash) || (!sentinel && r.Overlaps(h.NewRange)) {
				matched = true
				break
			}
		}
		if !matched && sentinel && len(claim.Ranges) > 0 {
			matched = true
		}
		if matched {
			out = append(out, h)
		}
	}
	return out
}

// applyOwnedHunks reconstructs path's content at T(b): headContent with
// only owned applied, using a line-indexed patcher (spec.md §4.E step 2).
func applyOwnedHunks(headContent, workingContent []byte, headMode, workingMode filemode.FileMode, owned []hunkdiff.Hunk, workingExists bool) (content []byte, mode filemode.FileMode, deleted bool) {
	mode = headMode
	if mode == filemode.Empty {
		mode = workingMode
	}
	for _, h := range owned {
		if h.NewMode != filemode.Empty {
			mode = h.NewMode
		}
	}

	for _, h := range owned {
		if h.Kind == hunkdiff.KindBinary {
			if !workingExists {
				return nil, mode, true
			}
			return workingContent, mode, false
		}
	}

	var textOwned []hunkdiff.Hunk
	for _, h := range owned {
		if h.Kind == hunkdiff.KindText {
			textOwned = append(textOwned, h)
		}
	}
	if len(textOwned) == 0 {
		// Mode-only ownership: content is unchanged, only the mode moved.
		return headContent, mode, false
	}

	headLines := splitLines(headContent)
	workingLines := splitLines(workingContent)
	sort.Slice(textOwned, func(i, j int) bool { return textOwned[i].OldRange.Start > textOwned[j].OldRange.Start })
	for _, h := range textOwned {
		newSlice := workingLines[h.NewRange.Start:h.NewRange.End]
		rebuilt := make([]string, 0, len(headLines)-(h.OldRange.End-h.OldRange.Start)+len(newSlice))
		rebuilt = append(rebuilt, headLines[:h.OldRange.Start]...)
		rebuilt = append(rebuilt, newSlice...)
		rebuilt = append(rebuilt, headLines[h.OldRange.End:]...)
		headLines = rebuilt
	}

	if len(headLines) == 0 && !workingExists {
		return nil, mode, true
	}
	var buf bytes.Buffer
	for _, l := range headLines {
		buf.WriteString(l)
	}
	return buf.Bytes(), mode, false
}

// splitLines splits content on '\n', keeping the terminator attached to
// each line (except possibly the final fragment), matching the line count
// modules/diferenco's NEWLINE_RAW sink (the one DoUnified uses) produces
// for the same content so
// hunk line indices computed by hunkdiff index consistently here.
func splitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	var lines []string
	start := 0
	for i, c := range content {
		if c == '\n' {
			lines = append(lines, string(content[start:i+1]))
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, string(content[start:]))
	}
	return lines
}
