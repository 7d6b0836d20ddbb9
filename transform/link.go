package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/signadot/scenesync/debug"
	"github.com/signadot/scenesync/ndarray"
)

var (
	// ErrValidation is matched by every parameter or shape check failure.
	ErrValidation = errors.New("validation error")
	// ErrAlreadyLinked is returned by Chain when either side is taken.
	ErrAlreadyLinked = errors.New("link already chained")
	ErrUnknownType   = errors.New("unknown transform type")
	ErrUnknownFunc   = errors.New("unknown transform function")
	ErrEmptyChain    = errors.New("empty transform chain")
)

// UnknownTypeError reports a serialized link whose type is not registered.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown transform type %q", e.Type)
}

func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}

// ShapeError is returned by AssertShape when its input has the wrong shape.
type ShapeError struct {
	Expected []int
	Got      []int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape mismatch: expected %v, got %v", e.Expected, e.Got)
}

func (e *ShapeError) Is(target error) bool {
	return target == ErrValidation
}

// Link is one step of a computation chain.
//
// Implementations embed [Chainable], which holds the neighbour pointers.
type Link interface {
	// Type returns the name the link kind is registered under.
	Type() string
	// Params returns the JSON-encodable parameters of the link, an object.
	Params() any
	// Transform computes the link's output from its predecessor's output.
	Transform(ctx context.Context, in *ndarray.Array) (*ndarray.Array, error)

	Prev() Link
	Next() Link

	chainable() *Chainable
}

// Chainable holds the neighbours of a link. It is embedded by every Link
// implementation.
type Chainable struct {
	prev, next Link
}

func (c *Chainable) Prev() Link { return c.prev }
func (c *Chainable) Next() Link { return c.next }

func (c *Chainable) chainable() *Chainable { return c }

// Chain makes next the successor of prev and returns next.
func Chain(prev, next Link) (Link, error) {
	pc, nc := prev.chainable(), next.chainable()
	if pc.next != nil || nc.prev != nil {
		return nil, ErrAlreadyLinked
	}
	for l := next; l != nil; l = l.Next() {
		if l == prev {
			return nil, fmt.Errorf("%w: chaining %s after %s forms a cycle", ErrAlreadyLinked, next.Type(), prev.Type())
		}
	}
	pc.next = next
	nc.prev = prev
	return next, nil
}

// Head returns the first link of the chain containing l.
func Head(l Link) Link {
	for l.Prev() != nil {
		l = l.Prev()
	}
	return l
}

// Tail returns the last link of the chain containing l.
func Tail(l Link) Link {
	for l.Next() != nil {
		l = l.Next()
	}
	return l
}

// Len returns the number of links in the chain containing l.
func Len(l Link) int {
	n := 0
	for cur := Head(l); cur != nil; cur = cur.Next() {
		n++
	}
	return n
}

// Run evaluates the whole chain containing l, from its head, and returns
// the output of its tail. The head receives an empty one dimensional array.
func Run(ctx context.Context, l Link) (*ndarray.Array, error) {
	out := ndarray.Zeros(0)
	i := 0
	for cur := Head(l); cur != nil; cur = cur.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := cur.Transform(ctx, out)
		if err != nil {
			return nil, fmt.Errorf("link %d (%s): %w", i, cur.Type(), err)
		}
		if debug.Transform() {
			debug.Logf("transform %d %s -> shape %v\n", i, cur.Type(), res.Shape())
		}
		out = res
		i++
	}
	return out, nil
}
