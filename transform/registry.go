package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Constructor builds a link of one kind from its serialized record. The
// record still holds its "type" field.
type Constructor func(r *Registry, record json.RawMessage) (Link, error)

// Registry maps serialized link types to constructors and holds the named
// functions available to Func links. The zero value is not usable; create
// registries with NewRegistry.
type Registry struct {
	ctors   map[string]Constructor
	order   []string
	funcs   map[string]ArrayFunc
	fetcher Fetcher
}

// Option configures a Registry.
type Option func(*Registry)

// WithFetcher sets the Fetcher of decoded Load links.
func WithFetcher(f Fetcher) Option {
	return func(r *Registry) { r.fetcher = f }
}

// WithFunc registers fn under name. It panics on duplicate names.
func WithFunc(name string, fn ArrayFunc) Option {
	return func(r *Registry) {
		if err := r.RegisterFunc(name, fn); err != nil {
			panic(err)
		}
	}
}

// NewRegistry returns a registry holding the built-in link kinds.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		ctors:   map[string]Constructor{},
		funcs:   map[string]ArrayFunc{},
		fetcher: DefaultFetcher,
	}
	for _, b := range []struct {
		name string
		ctor Constructor
	}{
		{TypeLoad, decodeLoad},
		{TypeImmediate, decodeImmediate},
		{TypeMathOp, decodeMathOp},
		{TypeAssertShape, decodeAssertShape},
		{TypeExpr, decodeExpr},
		{TypeFunc, decodeFunc},
	} {
		if err := r.Register(b.name, b.ctor); err != nil {
			panic(err)
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a link kind. Registering a name twice is an error.
func (r *Registry) Register(name string, ctor Constructor) error {
	if name == "" || ctor == nil {
		return fmt.Errorf("invalid registration of %q", name)
	}
	if _, present := r.ctors[name]; present {
		return fmt.Errorf("transform type %q already registered", name)
	}
	r.ctors[name] = ctor
	r.order = append(r.order, name)
	return nil
}

// RegisterFunc makes fn available to Func links under name.
func (r *Registry) RegisterFunc(name string, fn ArrayFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("invalid function registration of %q", name)
	}
	if _, present := r.funcs[name]; present {
		return fmt.Errorf("transform function %q already registered", name)
	}
	r.funcs[name] = fn
	return nil
}

// Types returns the registered type names in registration order.
func (r *Registry) Types() []string {
	return slices.Clone(r.order)
}

// Funcs returns the registered function names, sorted.
func (r *Registry) Funcs() []string {
	return slices.Sorted(maps.Keys(r.funcs))
}

// Func returns a Func link calling the function registered under name.
func (r *Registry) Func(name string) (*Func, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunc, name)
	}
	return NewFunc(name, fn), nil
}

// Unmarshal rebuilds a chain from its head to tail records and returns its
// head.
func (r *Registry) Unmarshal(records []json.RawMessage) (Link, error) {
	if len(records) == 0 {
		return nil, ErrEmptyChain
	}
	var head, prev Link
	for i, rec := range records {
		var h struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(rec, &h); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		ctor, ok := r.ctors[h.Type]
		if !ok {
			return nil, &UnknownTypeError{Type: h.Type}
		}
		l, err := ctor(r, rec)
		if err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, h.Type, err)
		}
		if prev == nil {
			head = l
		} else if _, err := Chain(prev, l); err != nil {
			return nil, err
		}
		prev = l
	}
	return head, nil
}

// Decode is Unmarshal on a JSON list of records.
func (r *Registry) Decode(d []byte) (Link, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(d, &records); err != nil {
		return nil, err
	}
	return r.Unmarshal(records)
}

// Marshal serializes the chain containing l, head to tail. Each record is
// the link's parameters with a "type" field added.
func Marshal(l Link) ([]json.RawMessage, error) {
	var res []json.RawMessage
	for cur := Head(l); cur != nil; cur = cur.Next() {
		rec, err := marshalLink(cur)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, nil
}

// Encode is Marshal rendered as one JSON list.
func Encode(l Link) ([]byte, error) {
	records, err := Marshal(l)
	if err != nil {
		return nil, err
	}
	return json.Marshal(records)
}

func marshalLink(l Link) (json.RawMessage, error) {
	p, err := json.Marshal(l.Params())
	if err != nil {
		return nil, fmt.Errorf("%s params: %w", l.Type(), err)
	}
	fields := map[string]json.RawMessage{}
	if !bytes.Equal(p, []byte("null")) {
		if err := json.Unmarshal(p, &fields); err != nil {
			return nil, fmt.Errorf("%s params must encode as an object: %w", l.Type(), err)
		}
	}
	t, _ := json.Marshal(l.Type())
	fields["type"] = t
	return json.Marshal(fields)
}

func decodeParams(record json.RawMessage, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(record))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

func decodeLoad(r *Registry, record json.RawMessage) (Link, error) {
	var p loadParams
	if err := decodeParams(record, &p); err != nil {
		return nil, err
	}
	if p.DataURL == "" {
		return nil, fmt.Errorf("%w: missing data_url", ErrValidation)
	}
	if c, ok := r.fetcher.(Checker); ok {
		if err := c.Check(p.DataURL); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}
	return NewLoad(p.DataURL, r.fetcher), nil
}

func decodeImmediate(_ *Registry, record json.RawMessage) (Link, error) {
	var p immediateParams
	if err := decodeParams(record, &p); err != nil {
		return nil, err
	}
	if p.NPArray == nil {
		return nil, fmt.Errorf("%w: missing np_array", ErrValidation)
	}
	return &Immediate{Array: p.NPArray}, nil
}

func decodeMathOp(_ *Registry, record json.RawMessage) (Link, error) {
	var p mathOpParams
	if err := decodeParams(record, &p); err != nil {
		return nil, err
	}
	return NewMathOp(p.Operation, p.Operand)
}

func decodeAssertShape(_ *Registry, record json.RawMessage) (Link, error) {
	var p struct {
		ExpectedShape *[]int `json:"expected_shape"`
	}
	if err := decodeParams(record, &p); err != nil {
		return nil, err
	}
	if p.ExpectedShape == nil {
		return nil, fmt.Errorf("%w: missing expected_shape", ErrValidation)
	}
	for _, d := range *p.ExpectedShape {
		if d < 0 {
			return nil, fmt.Errorf("%w: negative dimension in expected_shape %v", ErrValidation, *p.ExpectedShape)
		}
	}
	return NewAssertShape(*p.ExpectedShape...), nil
}

func decodeExpr(_ *Registry, record json.RawMessage) (Link, error) {
	var p exprParams
	if err := decodeParams(record, &p); err != nil {
		return nil, err
	}
	return NewExpr(p.Expression)
}

func decodeFunc(r *Registry, record json.RawMessage) (Link, error) {
	var p funcParams
	if err := decodeParams(record, &p); err != nil {
		return nil, err
	}
	return r.Func(p.Name)
}
