package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/signadot/scenesync/debug"
	"github.com/signadot/scenesync/jsondiff"
	"github.com/signadot/scenesync/scene"
	"github.com/signadot/scenesync/system/syncd/api"
)

// State is the synchronization state of a Renderer.
type State int

const (
	// Fresh means the server is assumed to hold nothing for the client.
	Fresh State = iota
	// Synced means the server holds the last snapshot sent.
	Synced
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Synced:
		return "synced"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options configure a Renderer.
type Options struct {
	// ClientID identifies the session to the server, a random UUID when
	// empty.
	ClientID string
	// DisableDiff sends every frame as an absolute payload.
	DisableDiff bool
	// Transport is required.
	Transport Transport
	Log       *slog.Logger
}

// Renderer sends successive scene frames to a sync server, as patches
// against the last accepted frame whenever it can.
//
// A Renderer is not safe for concurrent use.
type Renderer struct {
	opts  Options
	enc   *scene.Encoder
	state State
	base  []byte
}

// New creates a Renderer in the Fresh state.
func New(opts Options) (*Renderer, error) {
	if opts.Transport == nil {
		return nil, errors.New("client: transport is required")
	}
	if opts.ClientID == "" {
		opts.ClientID = uuid.NewString()
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.DiscardHandler)
	}
	return &Renderer{opts: opts, enc: scene.NewEncoder()}, nil
}

func (r *Renderer) ClientID() string { return r.opts.ClientID }
func (r *Renderer) State() State     { return r.state }

// Reset forgets everything sent so far. The next frame is absolute with
// full array encodings.
func (r *Renderer) Reset() {
	r.enc.Reset()
	r.state = Fresh
	r.base = nil
}

// Render sends the current state of c and returns the server's artifact.
//
// Encoding clears the modification tracking of the diff tracking arrays in
// c, also when sending fails. A failed send other than a resync request is
// returned as is and leaves the Renderer Fresh.
func (r *Renderer) Render(ctx context.Context, c *scene.Canvas) ([]byte, error) {
	snap, err := r.enc.Encode(c)
	if err != nil {
		r.Reset()
		return nil, fmt.Errorf("encode scene: %w", err)
	}
	p := &api.Payload{ClientID: r.opts.ClientID, Type: api.Absolute, Data: snap}
	if r.state == Synced && !r.opts.DisableDiff {
		ops, err := jsondiff.Diff(r.base, snap)
		if err != nil {
			return nil, fmt.Errorf("diff scene: %w", err)
		}
		p.Type = api.Patch
		p.Data = ops
	}
	if debug.Sync() {
		debug.Logf("client %s sends %s (%d bytes of %d)\n", r.opts.ClientID, p.Type, len(p.Data), len(snap))
	}

	out, err := r.opts.Transport.Send(ctx, p)
	if errors.Is(err, api.ErrResyncRequired) {
		r.opts.Log.Info("server requested resync", "client", r.opts.ClientID, "type", p.Type)
		return r.resync(ctx, c)
	}
	if err != nil {
		// the frame's array encodings are spent, start over with full ones
		r.Reset()
		return nil, err
	}
	// the server caches the reconstructed snapshot after patches too
	r.base = snap
	r.state = Synced
	return out, nil
}

func (r *Renderer) resync(ctx context.Context, c *scene.Canvas) ([]byte, error) {
	r.Reset()
	snap, err := r.enc.Encode(c)
	if err != nil {
		return nil, fmt.Errorf("encode scene: %w", err)
	}
	out, err := r.opts.Transport.Send(ctx, &api.Payload{ClientID: r.opts.ClientID, Type: api.Absolute, Data: snap})
	if err != nil {
		r.Reset()
		return nil, fmt.Errorf("resync: %w", err)
	}
	r.base = snap
	r.state = Synced
	return out, nil
}
