package diferenco

import (
	"context"
	"fmt"
)

// Algorithm selects the line-matching strategy a diff pass uses.
type Algorithm int

const (
	Unspecified Algorithm = iota
	Histogram
	Myers
	ONP
	Patience
)

func (a Algorithm) String() string {
	switch a {
	case Unspecified:
		return "Unspecified"
	case Histogram:
		return "Histogram"
	case Myers:
		return "Myers"
	case ONP:
		return "ONP"
	case Patience:
		return "Patience"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// diffInternal computes the change list between a and b using algo,
// respecting ctx cancellation before doing any work. It is the single
// dispatch point shared by DoUnified and the three-way merge machinery in
// merge.go/merge_new.go, so every caller sees the same per-algorithm
// behavior.
func diffInternal[E comparable](ctx context.Context, a, b []E, algo Algorithm) ([]Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch algo {
	case Histogram:
		return HistogramDiff(a, b), nil
	case Myers:
		return MyersDiff(a, b), nil
	case ONP:
		return OnpDiff(a, b), nil
	case Patience:
		return dfioToChanges(PatienceDiff(a, b)), nil
	default:
		return nil, fmt.Errorf("diferenco: unsupported algorithm %d", algo)
	}
}

// dfioToChanges converts PatienceDiff's run-length Dfio output into the
// positional Change form the rest of the package operates on. Adjacent
// Delete/Insert runs at the same position are folded into a single Change,
// matching the convention the other algorithms already produce.
func dfioToChanges[E comparable](diffs []Dfio[E]) []Change {
	var changes []Change
	p1, p2 := 0, 0
	for _, d := range diffs {
		n := len(d.E)
		switch d.T {
		case Equal:
			p1 += n
			p2 += n
		case Delete:
			if last := lastChangeAt(changes, p1, p2); last != nil {
				last.Del += n
			} else {
				changes = append(changes, Change{P1: p1, P2: p2, Del: n})
			}
			p1 += n
		case Insert:
			if last := lastChangeAt(changes, p1, p2); last != nil {
				last.Ins += n
			} else {
				changes = append(changes, Change{P1: p1, P2: p2, Ins: n})
			}
			p2 += n
		}
	}
	return changes
}

// lastChangeAt returns a pointer to the trailing Change if it starts at
// (p1, p2), so a Delete immediately followed by an Insert (or vice versa)
// folds into one replace-shaped Change.
func lastChangeAt(changes []Change, p1, p2 int) *Change {
	if len(changes) == 0 {
		return nil
	}
	last := &changes[len(changes)-1]
	if last.P1+last.Del == p1 && last.P2+last.Ins == p2 {
		return last
	}
	return nil
}
