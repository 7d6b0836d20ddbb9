package ndarray

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Nested returns a as nested []any lists of float64, or a bare float64 for a
// zero-dimensional array.
func (a *Array) Nested() any {
	if len(a.shape) == 0 {
		return a.data[0]
	}
	res, _ := a.nest(0, 0)
	return res
}

func (a *Array) nest(axis, off int) (any, int) {
	n := a.shape[axis]
	res := make([]any, n)
	if axis == len(a.shape)-1 {
		for i := range n {
			res[i] = a.data[off+i]
		}
		return res, off + n
	}
	for i := range n {
		res[i], off = a.nest(axis+1, off)
	}
	return res, off
}

// FromNested builds an array from nested lists of numbers as produced by
// encoding/json. A bare number yields a zero-dimensional array. The lists
// must be rectangular; an empty list ends the shape at that depth.
func FromNested(v any) (*Array, error) {
	var shape []int
	first := v
	for {
		l, ok := first.([]any)
		if !ok {
			break
		}
		shape = append(shape, len(l))
		if len(l) == 0 {
			break
		}
		first = l[0]
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]float64, 0, n)
	data, err := flatten(data, v, shape)
	if err != nil {
		return nil, err
	}
	return newArray(shape, data), nil
}

func flatten(dst []float64, v any, shape []int) ([]float64, error) {
	if len(shape) == 0 {
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return append(dst, f), nil
	}
	l, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected list of length %d, got %T", ErrShape, shape[0], v)
	}
	if len(l) != shape[0] {
		return nil, fmt.Errorf("%w: ragged nested list, length %d where %d expected", ErrShape, len(l), shape[0])
	}
	var err error
	for _, e := range l {
		dst, err = flatten(dst, e, shape[1:])
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		// non-finite values are carried as strings, see MarshalJSON
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: non numeric element %q", ErrShape, x)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: non numeric element of type %T", ErrShape, v)
}

// MarshalJSON encodes a as nested lists. Non-finite elements, which JSON
// cannot represent, are encoded as the strings "NaN", "+Inf" and "-Inf".
func (a *Array) MarshalJSON() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 8*len(a.data)+2))
	if len(a.shape) == 0 {
		writeFloat(buf, a.data[0])
		return buf.Bytes(), nil
	}
	a.writeNested(buf, 0, 0)
	return buf.Bytes(), nil
}

func (a *Array) writeNested(buf *bytes.Buffer, axis, off int) int {
	n := a.shape[axis]
	buf.WriteByte('[')
	for i := range n {
		if i > 0 {
			buf.WriteByte(',')
		}
		if axis == len(a.shape)-1 {
			writeFloat(buf, a.data[off])
			off++
			continue
		}
		off = a.writeNested(buf, axis+1, off)
	}
	buf.WriteByte(']')
	return off
}

func writeFloat(buf *bytes.Buffer, f float64) {
	switch {
	case math.IsNaN(f):
		buf.WriteString(`"NaN"`)
		return
	case math.IsInf(f, 1):
		buf.WriteString(`"+Inf"`)
		return
	case math.IsInf(f, -1):
		buf.WriteString(`"-Inf"`)
		return
	}
	// same formatting as encoding/json so re-marshalled snapshots are
	// byte-identical
	var scratch [32]byte
	format := byte('f')
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	b := strconv.AppendFloat(scratch[:0], f, format, -1, 64)
	if format == 'e' {
		// clean up e-09 to e-9
		if n := len(b); n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
	}
	buf.Write(b)
}

// UnmarshalJSON decodes nested lists into a.
func (a *Array) UnmarshalJSON(d []byte) error {
	var v any
	if err := json.Unmarshal(d, &v); err != nil {
		return err
	}
	res, err := FromNested(v)
	if err != nil {
		return err
	}
	*a = *res
	return nil
}
