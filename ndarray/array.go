package ndarray

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	// ErrShape is returned when array shapes or element counts do not agree.
	ErrShape = errors.New("shape mismatch")
	// ErrIndex is returned for an index expression outside an array.
	ErrIndex = errors.New("index out of range")
)

// Array is a dense row-major n-dimensional array of float64.
//
// The zero value is not usable; construct arrays with [Zeros], [FromSlice],
// [Arange], [Scalar] or [FromNested].
type Array struct {
	shape   []int
	strides []int
	data    []float64
}

// Zeros returns a zero-filled array of the given shape. It panics if a
// dimension is negative.
func Zeros(shape ...int) *Array {
	n := 1
	for _, d := range shape {
		if d < 0 {
			panic(fmt.Sprintf("ndarray: negative dimension %d in shape %v", d, shape))
		}
		n *= d
	}
	return newArray(slices.Clone(shape), make([]float64, n))
}

// Scalar returns a zero-dimensional array holding v.
func Scalar(v float64) *Array {
	return newArray(nil, []float64{v})
}

// FromSlice returns an array of the given shape holding a copy of data.
// With no shape the array is one-dimensional.
func FromSlice(data []float64, shape ...int) (*Array, error) {
	if len(shape) == 0 {
		shape = []int{len(data)}
	}
	n := 1
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("%w: negative dimension in %v", ErrShape, shape)
		}
		n *= d
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d elements do not fit shape %v", ErrShape, len(data), shape)
	}
	return newArray(slices.Clone(shape), slices.Clone(data)), nil
}

// Arange returns the one-dimensional array [0, 1, ..., n-1].
func Arange(n int) *Array {
	a := Zeros(n)
	for i := range a.data {
		a.data[i] = float64(i)
	}
	return a
}

func newArray(shape []int, data []float64) *Array {
	return &Array{shape: shape, strides: stridesOf(shape), data: data}
}

func stridesOf(shape []int) []int {
	strides := make([]int, len(shape))
	s := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= shape[i]
	}
	return strides
}

// Shape returns a copy of the array's shape.
func (a *Array) Shape() []int {
	return slices.Clone(a.shape)
}

// NDim returns the number of axes.
func (a *Array) NDim() int {
	return len(a.shape)
}

// Dim returns the length of axis i.
func (a *Array) Dim(i int) int {
	return a.shape[i]
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.data)
}

// Values returns a copy of the elements in row-major order.
func (a *Array) Values() []float64 {
	return slices.Clone(a.data)
}

// Clone returns a deep copy of a.
func (a *Array) Clone() *Array {
	return newArray(slices.Clone(a.shape), slices.Clone(a.data))
}

// Reshape returns a copy of a with a new shape holding the same number of
// elements. A single dimension may be -1 and is then inferred.
func (a *Array) Reshape(shape ...int) (*Array, error) {
	shape = slices.Clone(shape)
	infer := -1
	n := 1
	for i, d := range shape {
		switch {
		case d == -1 && infer == -1:
			infer = i
		case d < 0:
			return nil, fmt.Errorf("%w: invalid dimension %d in %v", ErrShape, d, shape)
		default:
			n *= d
		}
	}
	if infer >= 0 {
		if n == 0 || len(a.data)%n != 0 {
			return nil, fmt.Errorf("%w: cannot infer dimension of %v from %d elements", ErrShape, shape, len(a.data))
		}
		shape[infer] = len(a.data) / n
		n = len(a.data)
	}
	if n != len(a.data) {
		return nil, fmt.Errorf("%w: cannot reshape %v into %v", ErrShape, a.shape, shape)
	}
	return newArray(shape, slices.Clone(a.data)), nil
}

// SameShape reports whether a and b have identical shapes.
func (a *Array) SameShape(b *Array) bool {
	return slices.Equal(a.shape, b.shape)
}

// Equal reports whether a and b have the same shape and elements. NaN
// elements compare equal to each other.
func (a *Array) Equal(b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !a.SameShape(b) {
		return false
	}
	for i, v := range a.data {
		w := b.data[i]
		if v != w && !(math.IsNaN(v) && math.IsNaN(w)) {
			return false
		}
	}
	return true
}

// At returns the element at pos. It panics if pos is not a valid position.
func (a *Array) At(pos ...int) float64 {
	return a.data[a.offset(pos)]
}

// SetAt stores v at pos. It panics if pos is not a valid position.
func (a *Array) SetAt(v float64, pos ...int) {
	a.data[a.offset(pos)] = v
}

func (a *Array) offset(pos []int) int {
	if len(pos) != len(a.shape) {
		panic(fmt.Sprintf("ndarray: %d indices for %d-dimensional array", len(pos), len(a.shape)))
	}
	off := 0
	for i, p := range pos {
		if p < 0 || p >= a.shape[i] {
			panic(fmt.Sprintf("ndarray: index %d out of range for axis %d of length %d", p, i, a.shape[i]))
		}
		off += p * a.strides[i]
	}
	return off
}

// Map returns a new array of the same shape holding f applied to every
// element. i is the row-major element index.
func (a *Array) Map(f func(i int, v float64) float64) *Array {
	res := newArray(slices.Clone(a.shape), make([]float64, len(a.data)))
	for i, v := range a.data {
		res.data[i] = f(i, v)
	}
	return res
}

// MapErr is like Map but stops at the first error returned by f.
func (a *Array) MapErr(f func(i int, v float64) (float64, error)) (*Array, error) {
	res := newArray(slices.Clone(a.shape), make([]float64, len(a.data)))
	for i, v := range a.data {
		w, err := f(i, v)
		if err != nil {
			return nil, err
		}
		res.data[i] = w
	}
	return res, nil
}

// Full returns the region covering all of a.
func (a *Array) Full() Region {
	r := make(Region, len(a.shape))
	for i, d := range a.shape {
		r[i] = Interval{Start: 0, Stop: d}
	}
	return r
}

// Sub returns a copy of the elements of a within r. Every axis is kept, so
// the result's shape is r.Shape(). It panics if r is not within a.
func (a *Array) Sub(r Region) *Array {
	a.mustContain(r)
	res := newArray(r.Shape(), make([]float64, r.Size()))
	i := 0
	a.eachRun(r, func(off, n int) {
		i += copy(res.data[i:], a.data[off:off+n])
	})
	return res
}

// SetRegion copies src into the elements of a within r, in row-major order.
// src must hold exactly r.Size() elements; its shape is otherwise ignored.
func (a *Array) SetRegion(r Region, src *Array) error {
	if err := a.checkRegion(r); err != nil {
		return err
	}
	if src.Len() != r.Size() {
		return fmt.Errorf("%w: %d elements for region %v of size %d", ErrShape, src.Len(), r, r.Size())
	}
	i := 0
	a.eachRun(r, func(off, n int) {
		i += copy(a.data[off:off+n], src.data[i:i+n])
	})
	return nil
}

// FillRegion sets every element of a within r to v.
func (a *Array) FillRegion(r Region, v float64) error {
	if err := a.checkRegion(r); err != nil {
		return err
	}
	a.eachRun(r, func(off, n int) {
		row := a.data[off : off+n]
		for i := range row {
			row[i] = v
		}
	})
	return nil
}

func (a *Array) checkRegion(r Region) error {
	if len(r) != len(a.shape) {
		return fmt.Errorf("%w: region %v has %d axes, array has %d", ErrIndex, r, len(r), len(a.shape))
	}
	for i, iv := range r {
		if iv.Start < 0 || iv.Stop < iv.Start || iv.Stop > a.shape[i] {
			return fmt.Errorf("%w: interval %v on axis %d of length %d", ErrIndex, iv, i, a.shape[i])
		}
	}
	return nil
}

func (a *Array) mustContain(r Region) {
	if err := a.checkRegion(r); err != nil {
		panic("ndarray: " + err.Error())
	}
}

// eachRun calls fn with the data offset and length of every contiguous
// innermost run of r, in row-major order.
func (a *Array) eachRun(r Region, fn func(off, n int)) {
	nd := len(r)
	if nd == 0 {
		fn(0, 1)
		return
	}
	if r.Size() == 0 {
		return
	}
	last := r[nd-1]
	pos := make([]int, nd-1)
	for i := range pos {
		pos[i] = r[i].Start
	}
	for {
		off := last.Start
		for i, p := range pos {
			off += p * a.strides[i]
		}
		fn(off, last.Len())
		// odometer increment over the outer axes
		ax := nd - 2
		for ; ax >= 0; ax-- {
			pos[ax]++
			if pos[ax] < r[ax].Stop {
				break
			}
			pos[ax] = r[ax].Start
		}
		if ax < 0 {
			return
		}
	}
}

// String formats a as nested lists.
func (a *Array) String() string {
	return fmt.Sprint(a.Nested())
}
