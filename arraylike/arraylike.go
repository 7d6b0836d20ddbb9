// Package arraylike encodes array valued attributes for the wire.
//
// A value is a plain [ndarray.Array], a diff tracking [diffarray.Array] or a
// [transform.Link] chain. Each is carried in an [Envelope] tagged with its
// kind. Diff tracking arrays are sent in full the first time their identity
// is seen by an [Encoder] and as changed regions afterwards; the matching
// [Decoder] keeps its own copy of every identity it has received and
// applies the regions to it.
//
// Encoder and Decoder each own a [Store]. The stores of the two sides of a
// session evolve in lockstep and are never shared.
//
// # Related Packages
//
//   - github.com/signadot/scenesync/diffarray for change tracking.
//   - github.com/signadot/scenesync/transform for chains.
//   - github.com/signadot/scenesync/scene for the documents embedding envelopes.
package arraylike

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/signadot/scenesync/diffarray"
	"github.com/signadot/scenesync/ndarray"
	"github.com/signadot/scenesync/transform"
)

// Kind tags the content of an Envelope.
type Kind string

const (
	KindNDArray   Kind = "ndarray"
	KindDiffable  Kind = "diffable"
	KindTransform Kind = "transform_links"
)

var (
	// ErrMalformed is matched by decoding errors caused by invalid content.
	ErrMalformed = errors.New("malformed array encoding")
	// ErrIdentityNotFound is matched by IdentityNotFoundError.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrUnsupportedValue is returned when encoding anything but the three
	// array like kinds.
	ErrUnsupportedValue = errors.New("unsupported array value")
)

// IdentityNotFoundError reports an unchanged or partial diffable encoding
// whose identity the decoder has never received in full. The peers are out
// of sync.
type IdentityNotFoundError struct {
	ID string
}

func (e *IdentityNotFoundError) Error() string {
	return fmt.Sprintf("identity %s not found", e.ID)
}

func (e *IdentityNotFoundError) Is(target error) bool {
	return target == ErrIdentityNotFound
}

// Envelope is the wire form of an array like value.
//
// Nested lists cannot tell the shape of an array without elements: (0, 3)
// and (0,) both read back as []. Shape is set for such arrays, whether
// plain or sent whole as a diffable.
type Envelope struct {
	Type  Kind            `json:"type"`
	Data  json.RawMessage `json:"data"`
	Shape []int           `json:"shape,omitempty"`
}

// Diffable is the data of a KindDiffable envelope.
//
//   - Slices nil, Data set: full contents.
//   - Slices nil, Data nil: unchanged since last sent.
//   - Slices set, Data set: Data replaces the region Slices.
//
// Slices set with Data nil is malformed.
type Diffable struct {
	UUID   string         `json:"uuid"`
	Slices ndarray.Region `json:"slices"`
	Data   *ndarray.Array `json:"data"`
}

// Store maps identities to the diff tracking arrays of one side of a
// session. It is not safe for concurrent use.
type Store struct {
	m map[string]*diffarray.Array
}

func NewStore() *Store {
	return &Store{m: map[string]*diffarray.Array{}}
}

func (s *Store) Get(id string) (*diffarray.Array, bool) {
	a, ok := s.m[id]
	return a, ok
}

func (s *Store) Put(a *diffarray.Array) {
	s.m[a.ID()] = a
}

func (s *Store) Delete(id string) {
	delete(s.m, id)
}

// Reset forgets every identity.
func (s *Store) Reset() {
	clear(s.m)
}

func (s *Store) Len() int {
	return len(s.m)
}

// Materialize returns the concrete array a value stands for: a plain array
// itself, a copy of a diff tracking array's contents, or the result of
// running a chain.
func Materialize(ctx context.Context, v any) (*ndarray.Array, error) {
	switch x := v.(type) {
	case *ndarray.Array:
		return x, nil
	case *diffarray.Array:
		return x.Array(), nil
	case transform.Link:
		return transform.Run(ctx, x)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}
