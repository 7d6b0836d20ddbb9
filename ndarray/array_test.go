package ndarray

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func grid(t *testing.T, n, m int) *Array {
	t.Helper()
	a, err := Arange(n * m).Reshape(n, m)
	if err != nil {
		t.Fatalf("reshape: %v", err)
	}
	return a
}

func TestNormalize(t *testing.T) {
	a := grid(t, 3, 4)
	tests := []struct {
		name string
		idx  []Index
		want Region
		err  error
	}{
		{name: "scalars", idx: []Index{At(2), At(1)}, want: Region{{2, 3}, {1, 2}}},
		{name: "negative scalar", idx: []Index{At(-1), At(-4)}, want: Region{{2, 3}, {0, 1}}},
		{name: "trailing axes", idx: []Index{At(0)}, want: Region{{0, 1}, {0, 4}}},
		{name: "no index", idx: nil, want: Region{{0, 3}, {0, 4}}},
		{name: "span", idx: []Index{Span(1, 3), Span(-3, -1)}, want: Region{{1, 3}, {1, 3}}},
		{name: "clamped span", idx: []Index{Span(-10, 10), From(2)}, want: Region{{0, 3}, {2, 4}}},
		{name: "reversed span is empty", idx: []Index{Span(2, 1)}, want: Region{{2, 2}, {0, 4}}},
		{name: "to", idx: []Index{All(), To(2)}, want: Region{{0, 3}, {0, 2}}},
		{name: "scalar out of range", idx: []Index{At(3)}, err: ErrIndex},
		{name: "too many indices", idx: []Index{At(0), At(0), At(0)}, err: ErrIndex},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := a.Normalize(tc.idx...)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("region mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSubAndSetRegion(t *testing.T) {
	a := grid(t, 3, 3)
	r := Region{{1, 3}, {0, 2}}
	sub := a.Sub(r)
	if diff := cmp.Diff([]int{2, 2}, sub.Shape()); diff != "" {
		t.Fatalf("shape mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{3, 4, 6, 7}, sub.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	patch, _ := FromSlice([]float64{-1, -2, -3, -4}, 2, 2)
	if err := a.SetRegion(r, patch); err != nil {
		t.Fatalf("set region: %v", err)
	}
	want := []float64{0, 1, 2, -1, -2, 5, -3, -4, 8}
	if diff := cmp.Diff(want, a.Values()); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	if err := a.SetRegion(r, Arange(3)); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for wrong element count, got %v", err)
	}
	if err := a.SetRegion(Region{{0, 4}, {0, 1}}, Arange(4)); !errors.Is(err, ErrIndex) {
		t.Errorf("expected ErrIndex for region outside array, got %v", err)
	}
}

func TestFillRegion(t *testing.T) {
	a := Zeros(2, 3, 2)
	if err := a.FillRegion(Region{{1, 2}, {1, 3}, {0, 1}}, 7); err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, v := range a.Values() {
		if v == 7 {
			n++
		}
	}
	if n != 2 {
		t.Errorf("expected 2 filled elements, got %d", n)
	}
	if a.At(1, 2, 0) != 7 || a.At(1, 2, 1) != 0 {
		t.Errorf("unexpected fill %v", a)
	}
}

func TestReshape(t *testing.T) {
	a, err := Arange(12).Reshape(-1, 4)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{3, 4}, a.Shape()); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
	if _, err := Arange(12).Reshape(5, -1); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	a := grid(t, 2, 3)
	a.SetAt(0.5, 0, 0)
	a.SetAt(1e-9, 1, 2)
	d, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	if string(d) != "[[0.5,1,2],[3,4,1e-9]]" {
		t.Errorf("unexpected encoding %s", d)
	}
	// must agree with encoding/json on the nested form
	d2, err := json.Marshal(a.Nested())
	if err != nil {
		t.Fatal(err)
	}
	if string(d) != string(d2) {
		t.Errorf("encoding differs from encoding/json: %s vs %s", d, d2)
	}
	b := &Array{}
	if err := json.Unmarshal(d, b); err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Errorf("round trip mismatch: %v vs %v", a, b)
	}
}

func TestJSONNonFinite(t *testing.T) {
	a, _ := FromSlice([]float64{math.NaN(), math.Inf(1), -1})
	d, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	b := &Array{}
	if err := json.Unmarshal(d, b); err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Errorf("round trip mismatch: %s", d)
	}
}

func TestFromNested(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		shape []int
		err   bool
	}{
		{name: "scalar", in: `3`, shape: nil},
		{name: "vector", in: `[1,2,3]`, shape: []int{3}},
		{name: "matrix", in: `[[1,2],[3,4],[5,6]]`, shape: []int{3, 2}},
		{name: "empty", in: `[]`, shape: []int{0}},
		{name: "empty rows", in: `[[],[]]`, shape: []int{2, 0}},
		{name: "ragged", in: `[[1,2],[3]]`, err: true},
		{name: "mixed depth", in: `[[1,2],3]`, err: true},
		{name: "not numeric", in: `["a"]`, err: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var v any
			if err := json.Unmarshal([]byte(tc.in), &v); err != nil {
				t.Fatal(err)
			}
			a, err := FromNested(v)
			if tc.err {
				if !errors.Is(err, ErrShape) {
					t.Fatalf("expected ErrShape, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.shape, a.Shape()); diff != "" {
				t.Errorf("shape mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNPYRoundTrip(t *testing.T) {
	a := grid(t, 2, 5)
	b, err := DecodeNPY(EncodeNPY(a))
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Errorf("npy round trip mismatch: %v vs %v", a, b)
	}
}

func TestNPYFortranInt32(t *testing.T) {
	header := "{'descr': '<i4', 'fortran_order': True, 'shape': (2, 3), }"
	d := append([]byte("\x93NUMPY\x01\x00"), byte(len(header)), 0)
	d = append(d, header...)
	// column-major storage of [[0 1 2] [3 4 5]]
	for _, v := range []byte{0, 3, 1, 4, 2, 5} {
		d = append(d, v, 0, 0, 0)
	}
	a, err := DecodeNPY(d)
	if err != nil {
		t.Fatal(err)
	}
	want := grid(t, 2, 3)
	if !a.Equal(want) {
		t.Errorf("expected %v, got %v", want, a)
	}
}

func TestNPYErrors(t *testing.T) {
	if _, err := DecodeNPY([]byte("nope")); !errors.Is(err, ErrNPY) {
		t.Errorf("expected ErrNPY, got %v", err)
	}
	header := "{'descr': '<c16', 'fortran_order': False, 'shape': (1,), }"
	d := append([]byte("\x93NUMPY\x01\x00"), byte(len(header)), 0)
	d = append(d, header...)
	if _, err := DecodeNPY(d); !errors.Is(err, ErrNPY) {
		t.Errorf("expected ErrNPY for complex dtype, got %v", err)
	}
}
