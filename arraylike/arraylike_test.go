package arraylike

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signadot/scenesync/diffarray"
	"github.com/signadot/scenesync/ndarray"
	"github.com/signadot/scenesync/transform"
)

func newDiffable(t *testing.T) *diffarray.Array {
	t.Helper()
	a, err := diffarray.FromSlice([]float64{0, 1, 2, 3, 4, 5, 6, 7, 8}, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

// transmit encodes v, passes the envelope through JSON, and decodes it.
func transmit(t *testing.T, enc *Encoder, dec *Decoder, v any) (*Envelope, any, error) {
	t.Helper()
	env, err := enc.Encode(v)
	if err != nil {
		t.Fatal(err)
	}
	d, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	var wire Envelope
	if err := json.Unmarshal(d, &wire); err != nil {
		t.Fatal(err)
	}
	res, err := dec.Decode(&wire)
	return env, res, err
}

func payload(t *testing.T, env *Envelope) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(env.Data, &m); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestDiffableSequence(t *testing.T) {
	enc, dec := NewEncoder(), NewDecoder(nil)
	a := newDiffable(t)

	env, got, err := transmit(t, enc, dec, a)
	if err != nil {
		t.Fatal(err)
	}
	if p := payload(t, env); p["slices"] != nil || p["data"] == nil {
		t.Fatalf("first encoding must be full, got %s", env.Data)
	}
	b := got.(*diffarray.Array)
	if b.ID() != a.ID() || !b.Equal(a.Array()) {
		t.Fatalf("decoded %v (%s), want %v (%s)", b, b.ID(), a, a.ID())
	}
	if a.IsModified() {
		t.Error("encoding must reset the dirty box")
	}

	env, got, err = transmit(t, enc, dec, a)
	if err != nil {
		t.Fatal(err)
	}
	if p := payload(t, env); p["slices"] != nil || p["data"] != nil {
		t.Fatalf("unchanged array must encode without data, got %s", env.Data)
	}
	if got.(*diffarray.Array) != b {
		t.Error("unchanged decode must return the stored array")
	}

	a.Set(100, 2, 2)
	env, got, err = transmit(t, enc, dec, a)
	if err != nil {
		t.Fatal(err)
	}
	var p Diffable
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(ndarray.Region{{Start: 2, Stop: 3}, {Start: 2, Stop: 3}}, p.Slices); diff != "" {
		t.Errorf("slices mismatch (-want +got):\n%s", diff)
	}
	if string(env.Data) != `{"uuid":"`+a.ID()+`","slices":[{"start":2,"stop":3},{"start":2,"stop":3}],"data":[[100]]}` {
		t.Errorf("unexpected wire form %s", env.Data)
	}
	if !got.(*diffarray.Array).Equal(a.Array()) {
		t.Errorf("decoded %v, want %v", got, a)
	}
	if b.IsModified() {
		t.Error("applying a patch must not mark the decoded array modified")
	}
}

// A sequence of arbitrary writes, each followed by an encode and decode,
// keeps the decoded array equal to the source.
func TestDiffableConverges(t *testing.T) {
	enc, dec := NewEncoder(), NewDecoder(nil)
	a, _ := diffarray.New(ndarray.Zeros(6, 4))
	writes := []func(){
		func() { a.Set(1, 0, 0) },
		func() { a.Fill(2, ndarray.Span(2, 4), ndarray.From(1)) },
		func() {},
		func() { a.Set(3, -1, -1); a.Set(4, 1, 0) },
		func() { a.Fill(5, ndarray.At(3)) },
	}
	for i, w := range writes {
		w()
		_, got, err := transmit(t, enc, dec, a)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if !got.(*diffarray.Array).Equal(a.Array()) {
			t.Fatalf("step %d: decoded %v, want %v", i, got, a)
		}
	}
}

func TestIdentityNotFound(t *testing.T) {
	enc := NewEncoder()
	a := newDiffable(t)
	// the receiving side never sees the full encoding
	if _, err := enc.Encode(a); err != nil {
		t.Fatal(err)
	}
	dec := NewDecoder(nil)
	_, _, err := transmit(t, enc, dec, a)
	var inf *IdentityNotFoundError
	if !errors.As(err, &inf) || inf.ID != a.ID() {
		t.Fatalf("expected IdentityNotFoundError for %s, got %v", a.ID(), err)
	}

	a.Set(7, 0, 0)
	if _, _, err := transmit(t, enc, dec, a); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound for region, got %v", err)
	}

	// a fresh encoder resends everything in full
	enc.Store.Reset()
	if _, _, err := transmit(t, enc, dec, a); err != nil {
		t.Fatal(err)
	}
}

func TestFullOverwrite(t *testing.T) {
	dec := NewDecoder(nil)
	id := diffarray.NewID()
	decode := func(data string) *diffarray.Array {
		t.Helper()
		got, err := dec.Decode(&Envelope{Type: KindDiffable, Data: json.RawMessage(`{"uuid":"` + id + `","slices":null,"data":` + data + `}`)})
		if err != nil {
			t.Fatal(err)
		}
		return got.(*diffarray.Array)
	}
	first := decode(`[1,2,3]`)
	second := decode(`[4,5,6]`)
	if first != second {
		t.Error("same shape overwrite must reuse the stored array")
	}
	third := decode(`[[1],[2]]`)
	if diff := cmp.Diff([]int{2, 1}, third.Shape()); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
	if dec.Store.Len() != 1 {
		t.Errorf("expected one stored identity, got %d", dec.Store.Len())
	}
}

func TestMalformed(t *testing.T) {
	dec := NewDecoder(nil)
	id := diffarray.NewID()
	if _, err := dec.Decode(&Envelope{Type: KindDiffable, Data: json.RawMessage(`{"uuid":"` + id + `","data":[1,2]}`)}); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		env  Envelope
	}{
		{"slices without data", Envelope{Type: KindDiffable, Data: json.RawMessage(`{"uuid":"` + id + `","slices":[{"start":0,"stop":1}],"data":null}`)}},
		{"no uuid", Envelope{Type: KindDiffable, Data: json.RawMessage(`{"data":[1]}`)}},
		{"wrong slice count", Envelope{Type: KindDiffable, Data: json.RawMessage(`{"uuid":"` + id + `","slices":[{"start":0,"stop":1},{"start":0,"stop":1}],"data":[[1]]}`)}},
		{"region out of range", Envelope{Type: KindDiffable, Data: json.RawMessage(`{"uuid":"` + id + `","slices":[{"start":1,"stop":3}],"data":[1,2]}`)}},
		{"region size mismatch", Envelope{Type: KindDiffable, Data: json.RawMessage(`{"uuid":"` + id + `","slices":[{"start":0,"stop":2}],"data":[1]}`)}},
		{"unknown kind", Envelope{Type: "tensor", Data: json.RawMessage(`[1]`)}},
		{"ragged ndarray", Envelope{Type: KindNDArray, Data: json.RawMessage(`[[1],[2,3]]`)}},
		{"null ndarray", Envelope{Type: KindNDArray, Data: json.RawMessage(`null`)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := dec.Decode(&tc.env); !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestPlainAndTransform(t *testing.T) {
	ctx := context.Background()
	enc, dec := NewEncoder(), NewDecoder(nil)
	x, _ := ndarray.FromSlice([]float64{1, 2, 3}, 3)

	env, got, err := transmit(t, enc, dec, x)
	if err != nil {
		t.Fatal(err)
	}
	if env.Type != KindNDArray || string(env.Data) != "[1,2,3]" {
		t.Errorf("unexpected envelope %s %s", env.Type, env.Data)
	}
	if !got.(*ndarray.Array).Equal(x) {
		t.Errorf("decoded %v, want %v", got, x)
	}

	head, err := transform.NewBuilder(x).MathOp(transform.OpAdd, 2).MathOp(transform.OpMul, 3).Head()
	if err != nil {
		t.Fatal(err)
	}
	env, got, err = transmit(t, enc, dec, head)
	if err != nil {
		t.Fatal(err)
	}
	if env.Type != KindTransform {
		t.Errorf("unexpected envelope type %s", env.Type)
	}
	out, err := Materialize(ctx, got)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{9, 12, 15}, out.Values()); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	if _, err := dec.Decode(&Envelope{Type: KindTransform, Data: json.RawMessage(`[{"type":"TransformNope"}]`)}); !errors.Is(err, transform.ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestUnsupported(t *testing.T) {
	if _, err := NewEncoder().Encode([]float64{1}); !errors.Is(err, ErrUnsupportedValue) {
		t.Errorf("expected ErrUnsupportedValue, got %v", err)
	}
	if _, err := Materialize(context.Background(), "x"); !errors.Is(err, ErrUnsupportedValue) {
		t.Errorf("expected ErrUnsupportedValue, got %v", err)
	}
}

func TestEmptyArraysKeepShape(t *testing.T) {
	enc, dec := NewEncoder(), NewDecoder(nil)

	env, got, err := transmit(t, enc, dec, ndarray.Zeros(0, 3))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{0, 3}, env.Shape); diff != "" {
		t.Errorf("envelope shape mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 3}, got.(*ndarray.Array).Shape()); diff != "" {
		t.Errorf("plain shape mismatch (-want +got):\n%s", diff)
	}

	a, err := diffarray.New(ndarray.Zeros(2, 0, 4))
	if err != nil {
		t.Fatal(err)
	}
	_, got, err = transmit(t, enc, dec, a)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{2, 0, 4}, got.(*diffarray.Array).Shape()); diff != "" {
		t.Errorf("diffable shape mismatch (-want +got):\n%s", diff)
	}
	// unchanged afterwards, no shape needed
	env, got, err = transmit(t, enc, dec, a)
	if err != nil {
		t.Fatal(err)
	}
	if env.Shape != nil || len(got.(*diffarray.Array).Shape()) != 3 {
		t.Errorf("unexpected unchanged envelope %+v", env)
	}

	// non empty arrays carry no shape
	env, _, err = transmit(t, enc, dec, ndarray.Zeros(1, 3))
	if err != nil {
		t.Fatal(err)
	}
	if env.Shape != nil {
		t.Errorf("unexpected shape %v", env.Shape)
	}
}

func TestEmptyShapeMalformed(t *testing.T) {
	dec := NewDecoder(nil)
	tests := []Envelope{
		{Type: KindNDArray, Data: json.RawMessage(`[1]`), Shape: []int{0, 1}},
		{Type: KindNDArray, Data: json.RawMessage(`[]`), Shape: []int{2, 3}},
		{Type: KindNDArray, Data: json.RawMessage(`[]`), Shape: []int{-1, 0}},
		{Type: KindDiffable, Data: json.RawMessage(`{"uuid":"u","slices":null,"data":null}`), Shape: []int{0}},
	}
	for i, env := range tests {
		if _, err := dec.Decode(&env); !errors.Is(err, ErrMalformed) {
			t.Errorf("envelope %d: expected ErrMalformed, got %v", i, err)
		}
	}
}
