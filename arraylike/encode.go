package arraylike

import (
	"encoding/json"
	"fmt"

	"github.com/signadot/scenesync/debug"
	"github.com/signadot/scenesync/diffarray"
	"github.com/signadot/scenesync/ndarray"
	"github.com/signadot/scenesync/transform"
)

// Encoder produces envelopes. Encoding a diff tracking array resets its
// recorded changes: they are considered delivered once encoded.
type Encoder struct {
	Store *Store
}

func NewEncoder() *Encoder {
	return &Encoder{Store: NewStore()}
}

func (e *Encoder) Encode(v any) (*Envelope, error) {
	switch x := v.(type) {
	case *ndarray.Array:
		env, err := envelope(KindNDArray, x)
		if err != nil {
			return nil, err
		}
		env.Shape = emptyShape(x)
		return env, nil
	case *diffarray.Array:
		p := e.diffable(x)
		env, err := envelope(KindDiffable, p)
		if err != nil {
			return nil, err
		}
		if p.Data != nil && p.Slices == nil {
			env.Shape = emptyShape(p.Data)
		}
		return env, nil
	case transform.Link:
		records, err := transform.Marshal(x)
		if err != nil {
			return nil, err
		}
		return envelope(KindTransform, records)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

func (e *Encoder) diffable(a *diffarray.Array) *Diffable {
	res := &Diffable{UUID: a.ID()}
	known, ok := e.Store.Get(a.ID())
	switch {
	case !ok || known != a:
		e.Store.Put(a)
		res.Data = a.Array()
		if debug.Encode() {
			debug.Logf("encode %s full %v\n", a.ID(), a.Shape())
		}
	case a.IsModified():
		r, sub, _ := a.DiffRegion()
		res.Slices, res.Data = r, sub
		if debug.Encode() {
			debug.Logf("encode %s region %v\n", a.ID(), r)
		}
	default:
		if debug.Encode() {
			debug.Logf("encode %s unchanged\n", a.ID())
		}
	}
	a.ResetDiff()
	return res
}

func envelope(k Kind, data any) (*Envelope, error) {
	d, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Envelope{Type: k, Data: d}, nil
}

// emptyShape returns the shape of a when it has no elements, nil otherwise.
func emptyShape(a *ndarray.Array) []int {
	if a.Len() != 0 {
		return nil
	}
	return a.Shape()
}
