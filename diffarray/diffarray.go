// Package diffarray provides an n-dimensional array that records the
// bounding box of every write made to it since the last reset.
//
// The goal is to keep the serialized size of repeated transmissions small
// without growing local memory much. A single whole-array bounding box is
// kept: scattered writes over-approximate the changed set, never
// under-approximate it.
//
// # Identity
//
// Every Array carries an identity token, a random UUID assigned at creation.
// It survives in-place writes and patches, and Copy assigns a new one.
// Reading a region returns an untracked [ndarray.Array] copy with no identity.
package diffarray

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/signadot/scenesync/ndarray"
)

// ErrNotModified is returned by DiffRegion when no write has been recorded
// since the last reset. Check IsModified first.
var ErrNotModified = errors.New("no modifications recorded")

// Array is an n-dimensional float64 array tracking the bounding box of the
// writes made to it. It is not safe for concurrent use.
type Array struct {
	id  string
	buf *ndarray.Array
	// box is nil when clean, otherwise it holds one interval per axis.
	box ndarray.Region
}

// New returns a clean Array holding a copy of buf with a fresh identity.
// buf must have at least one axis.
func New(buf *ndarray.Array) (*Array, error) {
	return newWithID(NewID(), buf.Clone())
}

// FromSlice is New on ndarray.FromSlice(data, shape...).
func FromSlice(data []float64, shape ...int) (*Array, error) {
	buf, err := ndarray.FromSlice(data, shape...)
	if err != nil {
		return nil, err
	}
	return newWithID(NewID(), buf)
}

// WithID returns a clean Array owning buf under an existing identity. It is
// used when reconstructing arrays received from a peer.
func WithID(id string, buf *ndarray.Array) (*Array, error) {
	if id == "" {
		return nil, fmt.Errorf("empty identity")
	}
	return newWithID(id, buf)
}

func newWithID(id string, buf *ndarray.Array) (*Array, error) {
	if buf.NDim() == 0 {
		return nil, fmt.Errorf("%w: diff tracking needs at least one axis", ndarray.ErrShape)
	}
	return &Array{id: id, buf: buf}, nil
}

// NewID returns a new identity token.
func NewID() string {
	return uuid.NewString()
}

// ID returns the array's identity token.
func (a *Array) ID() string { return a.id }

// Shape returns a copy of the array's shape.
func (a *Array) Shape() []int { return a.buf.Shape() }

// NDim returns the number of axes.
func (a *Array) NDim() int { return a.buf.NDim() }

// Len returns the number of elements.
func (a *Array) Len() int { return a.buf.Len() }

// At returns the element at pos.
func (a *Array) At(pos ...int) float64 { return a.buf.At(pos...) }

// Array returns an untracked copy of the array's contents.
func (a *Array) Array() *ndarray.Array { return a.buf.Clone() }

// Region returns an untracked copy of the elements selected by idx.
func (a *Array) Region(idx ...ndarray.Index) (*ndarray.Array, error) {
	r, err := a.buf.Normalize(idx...)
	if err != nil {
		return nil, err
	}
	return a.buf.Sub(r), nil
}

// Write copies value into the region selected by idx. value must hold as
// many elements as the region, in row-major order.
func (a *Array) Write(value *ndarray.Array, idx ...ndarray.Index) error {
	r, err := a.buf.Normalize(idx...)
	if err != nil {
		return err
	}
	if value.Len() != r.Size() {
		return fmt.Errorf("%w: %d elements written to region %v of size %d", ndarray.ErrShape, value.Len(), r, r.Size())
	}
	a.track(r)
	return a.buf.SetRegion(r, value)
}

// Fill sets every element of the region selected by idx to v.
func (a *Array) Fill(v float64, idx ...ndarray.Index) error {
	r, err := a.buf.Normalize(idx...)
	if err != nil {
		return err
	}
	a.track(r)
	return a.buf.FillRegion(r, v)
}

// Set stores v at pos. Negative positions count from the end of an axis.
func (a *Array) Set(v float64, pos ...int) error {
	if len(pos) != a.buf.NDim() {
		return fmt.Errorf("%w: %d indices for %d-dimensional array", ndarray.ErrIndex, len(pos), a.buf.NDim())
	}
	idx := make([]ndarray.Index, len(pos))
	for i, p := range pos {
		idx[i] = ndarray.At(p)
	}
	return a.Fill(v, idx...)
}

// track grows the dirty box to cover r. It costs O(ndim).
func (a *Array) track(r ndarray.Region) {
	if r.Empty() {
		return
	}
	a.box = a.box.Union(r)
}

// IsModified reports whether a write has been recorded since the last reset.
func (a *Array) IsModified() bool {
	return a.box != nil
}

// Bounds returns the recorded [lo, hi) bounds of the dirty box on axis. ok
// is false when the array is clean.
func (a *Array) Bounds(axis int) (lo, hi int, ok bool) {
	if a.box == nil {
		return 0, 0, false
	}
	return a.box[axis].Start, a.box[axis].Stop, true
}

// DiffRegion returns the dirty box and a copy of the elements inside it.
// It returns ErrNotModified when the array is clean.
func (a *Array) DiffRegion() (ndarray.Region, *ndarray.Array, error) {
	if a.box == nil {
		return nil, nil, ErrNotModified
	}
	return a.box.Clone(), a.buf.Sub(a.box), nil
}

// ResetDiff forgets the recorded writes. The data is unchanged.
func (a *Array) ResetDiff() {
	a.box = nil
}

// ApplyPatch writes sub into region r without recording it: a patch is a
// synchronization event, not a local edit.
func (a *Array) ApplyPatch(r ndarray.Region, sub *ndarray.Array) error {
	return a.buf.SetRegion(r, sub)
}

// Replace overwrites the whole contents of a with a copy of buf, which may
// have a different shape, and clears the dirty box. The identity is kept.
func (a *Array) Replace(buf *ndarray.Array) error {
	if buf.NDim() == 0 {
		return fmt.Errorf("%w: diff tracking needs at least one axis", ndarray.ErrShape)
	}
	if a.buf.SameShape(buf) {
		if err := a.buf.SetRegion(a.buf.Full(), buf); err != nil {
			return err
		}
	} else {
		a.buf = buf.Clone()
	}
	a.box = nil
	return nil
}

// Copy returns a deep copy of a with a new identity. The dirty box is
// carried over: the copy has the same pending changes as a.
func (a *Array) Copy() *Array {
	return &Array{id: NewID(), buf: a.buf.Clone(), box: a.box.Clone()}
}

// Equal reports whether the contents of a equal b.
func (a *Array) Equal(b *ndarray.Array) bool {
	return a.buf.Equal(b)
}

func (a *Array) String() string {
	return a.buf.String()
}
