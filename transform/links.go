package transform

import (
	"context"
	"fmt"
	"slices"

	"github.com/signadot/scenesync/ndarray"
)

const (
	TypeLoad        = "TransformLoad"
	TypeImmediate   = "TransformImmediate"
	TypeMathOp      = "TransformMathOp"
	TypeAssertShape = "TransformAssertShape"
	TypeExpr        = "TransformExpr"
	TypeFunc        = "TransformFunc"
)

// Immediate ignores its input and yields a copy of Array.
type Immediate struct {
	Chainable
	Array *ndarray.Array
}

type immediateParams struct {
	NPArray *ndarray.Array `json:"np_array"`
}

func NewImmediate(a *ndarray.Array) *Immediate {
	return &Immediate{Array: a.Clone()}
}

func (l *Immediate) Type() string { return TypeImmediate }
func (l *Immediate) Params() any  { return immediateParams{NPArray: l.Array} }

func (l *Immediate) Transform(_ context.Context, _ *ndarray.Array) (*ndarray.Array, error) {
	return l.Array.Clone(), nil
}

// Math operations supported by MathOp.
const (
	OpAdd = "add"
	OpSub = "sub"
	OpMul = "mul"
	OpDiv = "div"
)

// MathOp applies a binary operation between each element and Operand.
// Division by zero follows IEEE 754.
type MathOp struct {
	Chainable
	Operation string
	Operand   float64
}

type mathOpParams struct {
	Operation string  `json:"operation"`
	Operand   float64 `json:"operand"`
}

// NewMathOp returns a MathOp, or an ErrValidation error for an unknown
// operation.
func NewMathOp(op string, operand float64) (*MathOp, error) {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv:
	default:
		return nil, fmt.Errorf("%w: unknown math operation %q", ErrValidation, op)
	}
	return &MathOp{Operation: op, Operand: operand}, nil
}

func (l *MathOp) Type() string { return TypeMathOp }
func (l *MathOp) Params() any {
	return mathOpParams{Operation: l.Operation, Operand: l.Operand}
}

func (l *MathOp) Transform(_ context.Context, in *ndarray.Array) (*ndarray.Array, error) {
	y := l.Operand
	var f func(int, float64) float64
	switch l.Operation {
	case OpAdd:
		f = func(_ int, x float64) float64 { return x + y }
	case OpSub:
		f = func(_ int, x float64) float64 { return x - y }
	case OpMul:
		f = func(_ int, x float64) float64 { return x * y }
	case OpDiv:
		f = func(_ int, x float64) float64 { return x / y }
	default:
		return nil, fmt.Errorf("%w: unknown math operation %q", ErrValidation, l.Operation)
	}
	return in.Map(f), nil
}

// AssertShape passes its input through unchanged if it has shape Expected.
type AssertShape struct {
	Chainable
	Expected []int
}

type assertShapeParams struct {
	ExpectedShape []int `json:"expected_shape"`
}

func NewAssertShape(shape ...int) *AssertShape {
	return &AssertShape{Expected: slices.Clone(shape)}
}

func (l *AssertShape) Type() string { return TypeAssertShape }
func (l *AssertShape) Params() any {
	exp := l.Expected
	if exp == nil {
		exp = []int{}
	}
	return assertShapeParams{ExpectedShape: exp}
}

func (l *AssertShape) Transform(_ context.Context, in *ndarray.Array) (*ndarray.Array, error) {
	got := in.Shape()
	if !slices.Equal(got, l.Expected) {
		return nil, &ShapeError{Expected: slices.Clone(l.Expected), Got: got}
	}
	return in, nil
}
