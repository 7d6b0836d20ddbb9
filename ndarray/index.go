package ndarray

import (
	"fmt"
	"math"
)

type indexKind int

const (
	allIndex indexKind = iota
	scalarIndex
	spanIndex
)

// Index selects positions along one axis. Build one with At, Span, From, To
// or All.
type Index struct {
	kind        indexKind
	start, stop int
}

// At selects the single position k. Negative k counts from the end.
func At(k int) Index {
	return Index{kind: scalarIndex, start: k}
}

// Span selects [start, stop) with slice semantics: negative bounds count from
// the end and out of range bounds are clamped.
func Span(start, stop int) Index {
	return Index{kind: spanIndex, start: start, stop: stop}
}

// From selects [start, end of axis).
func From(start int) Index {
	return Span(start, math.MaxInt)
}

// To selects [0, stop).
func To(stop int) Index {
	return Span(0, stop)
}

// All selects the whole axis.
func All() Index {
	return Index{kind: allIndex}
}

func (x Index) String() string {
	switch x.kind {
	case scalarIndex:
		return fmt.Sprintf("%d", x.start)
	case spanIndex:
		return fmt.Sprintf("%d:%d", x.start, x.stop)
	}
	return ":"
}

// Normalize converts an index expression into a Region of a, one half-open
// interval per axis. A scalar index k becomes [k, k+1). Missing trailing
// axes select the whole axis.
func (a *Array) Normalize(idx ...Index) (Region, error) {
	if len(idx) > len(a.shape) {
		return nil, fmt.Errorf("%w: %d indices for %d-dimensional array", ErrIndex, len(idx), len(a.shape))
	}
	r := make(Region, len(a.shape))
	for axis, n := range a.shape {
		x := All()
		if axis < len(idx) {
			x = idx[axis]
		}
		switch x.kind {
		case allIndex:
			r[axis] = Interval{Start: 0, Stop: n}
		case scalarIndex:
			k := x.start
			if k < 0 {
				k += n
			}
			if k < 0 || k >= n {
				return nil, fmt.Errorf("%w: index %d on axis %d of length %d", ErrIndex, x.start, axis, n)
			}
			r[axis] = Interval{Start: k, Stop: k + 1}
		case spanIndex:
			start, stop := clampBound(x.start, n), clampBound(x.stop, n)
			if stop < start {
				stop = start
			}
			r[axis] = Interval{Start: start, Stop: stop}
		}
	}
	return r, nil
}

func clampBound(b, n int) int {
	if b < 0 {
		b += n
		if b < 0 {
			return 0
		}
		return b
	}
	return min(b, n)
}
