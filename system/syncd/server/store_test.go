package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/signadot/scenesync/diffarray"
	"github.com/signadot/scenesync/jsondiff"
	"github.com/signadot/scenesync/ndarray"
	"github.com/signadot/scenesync/scene"
	"github.com/signadot/scenesync/system/syncd/api"
)

// sceneClient plays the client side of the protocol by hand.
type sceneClient struct {
	t      *testing.T
	id     string
	canvas *scene.Canvas
	pos    *diffarray.Array
	enc    *scene.Encoder
	base   []byte
}

func newSceneClient(t *testing.T, id string) *sceneClient {
	t.Helper()
	pos, err := diffarray.New(ndarray.Zeros(4, 3))
	if err != nil {
		t.Fatal(err)
	}
	c := scene.NewCanvas(64, 64, 100)
	vp := scene.NewViewport(0, 0, 64, 64)
	vp.Add(scene.NewPixels(pos, ndarray.Scalar(2), ndarray.Zeros(1, 4)))
	c.Add(vp)
	return &sceneClient{t: t, id: id, canvas: c, pos: pos, enc: scene.NewEncoder()}
}

func (c *sceneClient) snapshot() []byte {
	c.t.Helper()
	d, err := c.enc.Encode(c.canvas)
	if err != nil {
		c.t.Fatal(err)
	}
	return d
}

func (c *sceneClient) absolute() (*api.Payload, []byte) {
	d := c.snapshot()
	return &api.Payload{ClientID: c.id, Type: api.Absolute, Data: d}, d
}

func (c *sceneClient) patch() (*api.Payload, []byte) {
	c.t.Helper()
	d := c.snapshot()
	ops, err := jsondiff.Diff(c.base, d)
	if err != nil {
		c.t.Fatal(err)
	}
	return &api.Payload{ClientID: c.id, Type: api.Patch, Data: ops}, d
}

func newTestStore(cfg *Config, now func() time.Time) *Store {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return NewStore(cfg, nil, now)
}

func TestResyncProtocol(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(nil, nil)
	c := newSceneClient(t, "c1")

	// first contact with a patch
	c.base = []byte(`{}`)
	p, _ := c.patch()
	if _, err := s.Handle(ctx, p); !errors.Is(err, api.ErrResyncRequired) {
		t.Fatalf("expected ErrResyncRequired, got %v", err)
	}

	// the client resets and resends absolute
	c.enc.Reset()
	p, snap := c.absolute()
	if _, err := s.Handle(ctx, p); err != nil {
		t.Fatal(err)
	}
	c.base = snap

	for step := range 3 {
		c.pos.Set(float64(step+1)/10, step, 0)
		p, snap = c.patch()
		res, err := s.Handle(ctx, p)
		if err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		c.base = snap
		if !jsondiff.Equal(res.Snapshot, snap) {
			t.Fatalf("step %d: server snapshot %s differs from client %s", step, res.Snapshot, snap)
		}
		got := res.Canvas.Viewports[0].Visuals[0].(*scene.Pixels).Positions.(*diffarray.Array)
		if !got.Equal(c.pos.Array()) {
			t.Fatalf("step %d: server positions %v, client %v", step, got, c.pos)
		}
	}
}

func TestPatchFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(nil, nil)
	c := newSceneClient(t, "c1")
	p, _ := c.absolute()
	if _, err := s.Handle(ctx, p); err != nil {
		t.Fatal(err)
	}
	bad := &api.Payload{ClientID: "c1", Type: api.Patch, Data: json.RawMessage(`[{"op":"remove","path":"/canvas/nope/0"}]`)}
	_, err := s.Handle(ctx, bad)
	var pe *PatchError
	if !errors.As(err, &pe) || !errors.Is(err, api.ErrPatchFailed) {
		t.Fatalf("expected PatchError, got %v", err)
	}
	if errors.Is(err, api.ErrResyncRequired) {
		t.Error("patch failure must be distinct from resync")
	}
	// the cached snapshot is untouched
	if _, ok := s.Snapshot("c1"); !ok {
		t.Error("failed patch must not drop the cached snapshot")
	}

	// a patch producing an invalid scene is a patch failure too
	breaks := &api.Payload{ClientID: "c1", Type: api.Patch, Data: json.RawMessage(`[{"op":"replace","path":"/canvas/width","value":0}]`)}
	if _, err := s.Handle(ctx, breaks); !errors.Is(err, api.ErrPatchFailed) {
		t.Fatalf("expected ErrPatchFailed, got %v", err)
	}
}

func TestIdentityNotFoundForcesResync(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(nil, nil)
	c := newSceneClient(t, "c1")
	// the server never sees the full encoding of the positions
	c.snapshot()
	c.pos.Set(1, 0, 0)
	p, _ := c.absolute()
	if _, err := s.Handle(ctx, p); !errors.Is(err, api.ErrResyncRequired) {
		t.Fatalf("expected ErrResyncRequired, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("entry must be evicted, have %d", s.Len())
	}
}

func TestInvalidPayload(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(nil, nil)
	tests := []*api.Payload{
		{ClientID: "", Type: api.Absolute, Data: json.RawMessage(`{}`)},
		{ClientID: "c", Type: "delta", Data: json.RawMessage(`{}`)},
		{ClientID: "c", Type: api.Absolute, Data: json.RawMessage(`{"canvas":null}`)},
	}
	for i, p := range tests {
		if _, err := s.Handle(ctx, p); !errors.Is(err, api.ErrInvalidPayload) {
			t.Errorf("payload %d: expected ErrInvalidPayload, got %v", i, err)
		}
	}
}

func TestLRUEviction(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.MaxClients = 2
	s := newTestStore(cfg, nil)
	var evicted []string
	s.OnEvict(func(id, reason string) {
		if reason != EvictLRU {
			t.Errorf("unexpected reason %s", reason)
		}
		evicted = append(evicted, id)
	})
	clients := map[string]*sceneClient{}
	send := func(id string) {
		t.Helper()
		c, ok := clients[id]
		if !ok {
			c = newSceneClient(t, id)
			clients[id] = c
		}
		c.enc.Reset()
		p, _ := c.absolute()
		if _, err := s.Handle(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	send("a")
	send("b")
	send("a")
	send("c")
	if s.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", s.Len())
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("expected b evicted, got %v", evicted)
	}
	c := clients["b"]
	_, c.base = c.absolute()
	c.pos.Set(1, 1, 1)
	p, _ := c.patch()
	if _, err := s.Handle(ctx, p); !errors.Is(err, api.ErrResyncRequired) {
		t.Errorf("evicted client must resync, got %v", err)
	}
}

func TestTTLSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cfg := DefaultConfig()
	cfg.ClientTTL = time.Minute
	s := newTestStore(cfg, clock)

	for _, id := range []string{"old", "new"} {
		p, _ := newSceneClient(t, id).absolute()
		if _, err := s.Handle(ctx, p); err != nil {
			t.Fatal(err)
		}
		now = now.Add(45 * time.Second)
	}
	// old idle 90s, new idle 45s
	if n := s.Sweep(); n != 1 {
		t.Fatalf("expected one expired entry, got %d", n)
	}
	if _, ok := s.Snapshot("old"); ok {
		t.Error("old entry must be expired")
	}
	if _, ok := s.Snapshot("new"); !ok {
		t.Error("new entry must be kept")
	}
}

func TestConcurrentClients(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(nil, nil)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := range 8 {
		c := newSceneClient(t, fmt.Sprintf("client-%d", i))
		p, snap := c.absolute()
		c.base = snap
		patches := make([]*api.Payload, 0, 5)
		snaps := make([][]byte, 0, 5)
		for step := range 5 {
			c.pos.Set(float64(i*10+step), step%4, step%3)
			p, snap := c.patch()
			c.base = snap
			patches = append(patches, p)
			snaps = append(snaps, snap)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Handle(ctx, p); err != nil {
				errs <- err
				return
			}
			for k, pp := range patches {
				res, err := s.Handle(ctx, pp)
				if err != nil {
					errs <- err
					return
				}
				if !jsondiff.Equal(res.Snapshot, snaps[k]) {
					errs <- fmt.Errorf("%s step %d: snapshot mismatch", pp.ClientID, k)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
