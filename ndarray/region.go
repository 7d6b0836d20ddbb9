package ndarray

import (
	"fmt"
	"strings"
)

// Interval is the half-open range [Start, Stop) along one axis.
type Interval struct {
	Start int `json:"start"`
	Stop  int `json:"stop"`
}

// Len returns the number of positions in the interval.
func (iv Interval) Len() int {
	if iv.Stop < iv.Start {
		return 0
	}
	return iv.Stop - iv.Start
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%d:%d]", iv.Start, iv.Stop)
}

// Region is an axis-aligned box, one Interval per axis.
type Region []Interval

// Shape returns the lengths of the region's intervals.
func (r Region) Shape() []int {
	shape := make([]int, len(r))
	for i, iv := range r {
		shape[i] = iv.Len()
	}
	return shape
}

// Size returns the number of positions in the region.
func (r Region) Size() int {
	n := 1
	for _, iv := range r {
		n *= iv.Len()
	}
	return n
}

// Empty reports whether the region contains no position.
func (r Region) Empty() bool {
	return r.Size() == 0
}

// Contains reports whether pos lies within r.
func (r Region) Contains(pos ...int) bool {
	if len(pos) != len(r) {
		return false
	}
	for i, p := range pos {
		if p < r[i].Start || p >= r[i].Stop {
			return false
		}
	}
	return true
}

// Union returns the smallest region containing both r and o. A nil r is
// the empty box and yields a copy of o.
func (r Region) Union(o Region) Region {
	if r == nil {
		return o.Clone()
	}
	res := r.Clone()
	for i, iv := range o {
		res[i].Start = min(res[i].Start, iv.Start)
		res[i].Stop = max(res[i].Stop, iv.Stop)
	}
	return res
}

// Clone returns a copy of r.
func (r Region) Clone() Region {
	if r == nil {
		return nil
	}
	res := make(Region, len(r))
	copy(res, r)
	return res
}

// Equal reports whether r and o describe the same box.
func (r Region) Equal(o Region) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if r[i] != o[i] {
			return false
		}
	}
	return true
}

func (r Region) String() string {
	parts := make([]string, len(r))
	for i, iv := range r {
		parts[i] = fmt.Sprintf("%d:%d", iv.Start, iv.Stop)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
