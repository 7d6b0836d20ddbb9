package transform

import (
	"context"
	"fmt"

	"github.com/signadot/scenesync/ndarray"
)

// ArrayFunc is a Go function usable as a computation step.
type ArrayFunc func(ctx context.Context, in *ndarray.Array) (*ndarray.Array, error)

// Func calls a named ArrayFunc. Only the name is serialized: the receiving
// side must have a function registered under the same name.
type Func struct {
	Chainable
	Name string

	fn ArrayFunc
}

type funcParams struct {
	Name string `json:"name"`
}

func NewFunc(name string, fn ArrayFunc) *Func {
	return &Func{Name: name, fn: fn}
}

func (l *Func) Type() string { return TypeFunc }
func (l *Func) Params() any  { return funcParams{Name: l.Name} }

func (l *Func) Transform(ctx context.Context, in *ndarray.Array) (*ndarray.Array, error) {
	if l.fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunc, l.Name)
	}
	return l.fn(ctx, in)
}
