package transform

import (
	"context"

	"github.com/signadot/scenesync/ndarray"
)

// Builder assembles a chain link by link. The first error encountered is
// kept and reported by Head and Run; later calls are no-ops.
//
//	out, err := transform.NewBuilder(x).MathOp("add", 2).MathOp("mul", 3).Run(ctx)
type Builder struct {
	head, tail Link
	err        error
}

// NewBuilder starts a chain. A non-nil initial array becomes an Immediate
// head link.
func NewBuilder(initial *ndarray.Array) *Builder {
	b := &Builder{}
	if initial != nil {
		b.Then(NewImmediate(initial))
	}
	return b
}

// Then appends l to the chain.
func (b *Builder) Then(l Link) *Builder {
	if b.err != nil {
		return b
	}
	if b.tail == nil {
		if l.Prev() != nil || l.Next() != nil {
			b.err = ErrAlreadyLinked
			return b
		}
		b.head, b.tail = l, l
		return b
	}
	if _, err := Chain(b.tail, l); err != nil {
		b.err = err
		return b
	}
	b.tail = l
	return b
}

func (b *Builder) Load(uri string, f Fetcher) *Builder {
	return b.Then(NewLoad(uri, f))
}

func (b *Builder) Immediate(a *ndarray.Array) *Builder {
	return b.Then(NewImmediate(a))
}

func (b *Builder) MathOp(op string, operand float64) *Builder {
	if b.err != nil {
		return b
	}
	l, err := NewMathOp(op, operand)
	if err != nil {
		b.err = err
		return b
	}
	return b.Then(l)
}

func (b *Builder) AssertShape(shape ...int) *Builder {
	return b.Then(NewAssertShape(shape...))
}

func (b *Builder) Expr(src string) *Builder {
	if b.err != nil {
		return b
	}
	l, err := NewExpr(src)
	if err != nil {
		b.err = err
		return b
	}
	return b.Then(l)
}

func (b *Builder) Func(name string, fn ArrayFunc) *Builder {
	return b.Then(NewFunc(name, fn))
}

// Head returns the head of the chain built so far.
func (b *Builder) Head() (Link, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.head == nil {
		return nil, ErrEmptyChain
	}
	return b.head, nil
}

// Run evaluates the chain. An empty chain yields an empty array.
func (b *Builder) Run(ctx context.Context) (*ndarray.Array, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.head == nil {
		return ndarray.Zeros(0), nil
	}
	return Run(ctx, b.head)
}
