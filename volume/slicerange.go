package volume

import (
	"fmt"

	"github.com/carbocation/cbctmar"
)

// SliceRange lists the slice indices selected by (start, end, every) over an
// axis of s slices. start is clamped to >= 0; a negative end means the last
// slice, otherwise end is clamped to s-1. The result is empty, not an error,
// when end < start.
func SliceRange(start, end, every, s int) ([]int, error) {
	if every < 1 {
		return nil, fmt.Errorf("every must be >= 1, got %d: %w", every, cbctmar.ErrInvalidArgument)
	}

	if start < 0 {
		start = 0
	}
	if end < 0 || end > s-1 {
		end = s - 1
	}

	var out []int
	for i := start; i <= end; i += every {
		out = append(out, i)
	}

	return out, nil
}

// CommonSlices is the number of slices two sources can be compared over.
func CommonSlices(a, b SliceSource) int {
	_, _, sa := a.Shape()
	_, _, sb := b.Shape()
	if sa < sb {
		return sa
	}

	return sb
}
