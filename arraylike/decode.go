package arraylike

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/signadot/scenesync/debug"
	"github.com/signadot/scenesync/diffarray"
	"github.com/signadot/scenesync/ndarray"
	"github.com/signadot/scenesync/transform"
)

// Decoder rebuilds values from envelopes. Diff tracking arrays are returned
// from, and kept in, the decoder's Store.
type Decoder struct {
	Store    *Store
	Registry *transform.Registry
}

// NewDecoder returns a Decoder with an empty store. A nil registry means
// transform.NewRegistry().
func NewDecoder(reg *transform.Registry) *Decoder {
	if reg == nil {
		reg = transform.NewRegistry()
	}
	return &Decoder{Store: NewStore(), Registry: reg}
}

// Decode returns a *ndarray.Array, a *diffarray.Array or a transform.Link.
func (d *Decoder) Decode(env *Envelope) (any, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: missing envelope", ErrMalformed)
	}
	switch env.Type {
	case KindNDArray:
		if isNull(env.Data) {
			return nil, fmt.Errorf("%w: missing ndarray data", ErrMalformed)
		}
		a := &ndarray.Array{}
		if err := json.Unmarshal(env.Data, a); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return reshapeEmpty(a, env.Shape)
	case KindDiffable:
		var p Diffable
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if env.Shape != nil {
			if p.Data == nil || p.Slices != nil {
				return nil, fmt.Errorf("%w: shape given for a diffable not sent whole", ErrMalformed)
			}
			data, err := reshapeEmpty(p.Data, env.Shape)
			if err != nil {
				return nil, err
			}
			p.Data = data
		}
		return d.diffable(&p)
	case KindTransform:
		var records []json.RawMessage
		if err := json.Unmarshal(env.Data, &records); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return d.Registry.Unmarshal(records)
	}
	return nil, fmt.Errorf("%w: unknown envelope type %q", ErrMalformed, env.Type)
}

func (d *Decoder) diffable(p *Diffable) (*diffarray.Array, error) {
	if p.UUID == "" {
		return nil, fmt.Errorf("%w: diffable without uuid", ErrMalformed)
	}
	a, known := d.Store.Get(p.UUID)
	switch {
	case p.Slices == nil && p.Data != nil:
		if debug.Decode() {
			debug.Logf("decode %s full %v\n", p.UUID, p.Data.Shape())
		}
		if known {
			if err := a.Replace(p.Data); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			return a, nil
		}
		a, err := diffarray.WithID(p.UUID, p.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		d.Store.Put(a)
		return a, nil

	case p.Slices == nil:
		if !known {
			return nil, &IdentityNotFoundError{ID: p.UUID}
		}
		if debug.Decode() {
			debug.Logf("decode %s unchanged\n", p.UUID)
		}
		return a, nil

	case p.Data != nil:
		if !known {
			return nil, &IdentityNotFoundError{ID: p.UUID}
		}
		if len(p.Slices) != a.NDim() {
			return nil, fmt.Errorf("%w: %d slices for %d-dimensional array %s", ErrMalformed, len(p.Slices), a.NDim(), p.UUID)
		}
		if debug.Decode() {
			debug.Logf("decode %s region %v\n", p.UUID, p.Slices)
		}
		if err := a.ApplyPatch(p.Slices, p.Data); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return a, nil
	}
	return nil, fmt.Errorf("%w: slices without data for %s", ErrMalformed, p.UUID)
}

// reshapeEmpty gives a, decoded from an empty nested list, the shape sent
// alongside it.
func reshapeEmpty(a *ndarray.Array, shape []int) (*ndarray.Array, error) {
	if shape == nil {
		return a, nil
	}
	if a.Len() != 0 {
		return nil, fmt.Errorf("%w: shape %v given for non empty data", ErrMalformed, shape)
	}
	n := 1
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("%w: negative dimension in shape %v", ErrMalformed, shape)
		}
		n *= d
	}
	if n != 0 {
		return nil, fmt.Errorf("%w: shape %v does not describe an empty array", ErrMalformed, shape)
	}
	return ndarray.Zeros(shape...), nil
}

func isNull(d json.RawMessage) bool {
	d = bytes.TrimSpace(d)
	return len(d) == 0 || bytes.Equal(d, []byte("null"))
}
