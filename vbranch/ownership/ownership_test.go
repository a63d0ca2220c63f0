package ownership

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	claim, err := Parse("test.txt:1-6,16-22-deadbeef")
	require.NoError(t, err)
	require.Equal(t, "test.txt", claim.Path)
	require.Len(t, claim.Ranges, 2)
	require.Equal(t, Range{Start: 0, End: 6}, claim.Ranges[0])
	require.Equal(t, []string{"deadbeef"}, claim.Ranges[1].Hashes)
	require.Equal(t, "test.txt:1-6,16-22-deadbeef", claim.String())
}

func TestParseMalformed(t *testing.T) {
	for _, s := range []string{"nopath", "a:1", "a:b-1", "a:5-1"} {
		_, err := Parse(s)
		require.Error(t, err, s)
	}
}

func TestNormalizeMergesOverlapping(t *testing.T) {
	list := List{
		{Path: "a.txt", Ranges: []Range{{Start: 0, End: 5}, {Start: 4, End: 10}, {Start: 20, End: 22}}},
	}
	out := Normalize(list)
	require.Len(t, out[0].Ranges, 2)
	require.Equal(t, Range{Start: 0, End: 10}, out[0].Ranges[0])
	require.Equal(t, Range{Start: 20, End: 22}, out[0].Ranges[1])
}

func TestMinusSplitsRange(t *testing.T) {
	owner := List{{Path: "a.txt", Ranges: []Range{{Start: 0, End: 10}}}}
	cut := Claim{Path: "a.txt", Ranges: []Range{{Start: 3, End: 6}}}
	out := Minus(owner, cut)
	require.Len(t, out[0].Ranges, 2)
	require.Equal(t, Range{Start: 0, End: 3}, out[0].Ranges[0])
	require.Equal(t, Range{Start: 6, End: 10}, out[0].Ranges[1])
}

func TestMinusRemovesEmptyClaim(t *testing.T) {
	owner := List{{Path: "a.txt", Ranges: []Range{{Start: 0, End: 10}}}}
	cut := Claim{Path: "a.txt", Ranges: []Range{{Start: 0, End: 10}}}
	out := Minus(owner, cut)
	require.Len(t, out, 0)
}

func TestContainsHashWinsOverOverlap(t *testing.T) {
	owner := List{{Path: "a.txt", Ranges: []Range{{Start: 0, End: 5, Hashes: []string{"h1"}}}}}
	kind, _ := Contains(owner, "a.txt", Range{Start: 2, End: 4}, "h1")
	require.Equal(t, HashMatch, kind)
	kind, n := Contains(owner, "a.txt", Range{Start: 2, End: 4}, "other")
	require.Equal(t, OverlapMatch, kind)
	require.Equal(t, 2, n)
}

func TestTakeAddsNewClaim(t *testing.T) {
	out := Take(nil, "a.txt", Range{Start: 0, End: 5}, "h1")
	require.Len(t, out, 1)
	require.Equal(t, []string{"h1"}, out[0].Ranges[0].Hashes)
}

func TestHunkExpansionStaysWithOwner(t *testing.T) {
	// Regression: a claimed range that grows (drift) must still match by
	// overlap even though its bounds moved, independent of branch order.
	owner := List{{Path: "test.txt", Ranges: []Range{{Start: 0, End: 2}}}}
	kind, _ := Contains(owner, "test.txt", Range{Start: 0, End: 3}, "")
	require.Equal(t, OverlapMatch, kind)
}
