package transform

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/signadot/scenesync/ndarray"
)

// Expr maps each element through an expr-lang expression. The expression
// sees the element value as x, its flat row-major index as i and the
// element count as n, and must yield a number or a boolean.
//
//	x * 2 + 1
//	i % 2 == 0 ? x : -x
//	max(x, 0)
type Expr struct {
	Chainable
	Expression string

	program *vm.Program
}

type exprParams struct {
	Expression string `json:"expression"`
}

func exprEnv() map[string]any {
	return map[string]any{"x": 0.0, "i": 0, "n": 0}
}

// NewExpr compiles src, returning an ErrValidation error if it does not
// compile against the element environment.
func NewExpr(src string) (*Expr, error) {
	program, err := expr.Compile(src, expr.Env(exprEnv()))
	if err != nil {
		return nil, fmt.Errorf("%w: expression %q: %w", ErrValidation, src, err)
	}
	return &Expr{Expression: src, program: program}, nil
}

func (l *Expr) Type() string { return TypeExpr }
func (l *Expr) Params() any  { return exprParams{Expression: l.Expression} }

func (l *Expr) Transform(ctx context.Context, in *ndarray.Array) (*ndarray.Array, error) {
	if l.program == nil {
		program, err := expr.Compile(l.Expression, expr.Env(exprEnv()))
		if err != nil {
			return nil, fmt.Errorf("%w: expression %q: %w", ErrValidation, l.Expression, err)
		}
		l.program = program
	}
	env := exprEnv()
	env["n"] = in.Len()
	return in.MapErr(func(i int, x float64) (float64, error) {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		env["x"] = x
		env["i"] = i
		out, err := vm.Run(l.program, env)
		if err != nil {
			return 0, fmt.Errorf("expression %q at element %d: %w", l.Expression, i, err)
		}
		return exprResult(out)
	})
}

func exprResult(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w: expression result %v of type %T is not numeric", ErrValidation, v, v)
}
